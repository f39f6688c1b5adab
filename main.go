package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"git.0xdad.com/tblyler/medreminder/db"
	"git.0xdad.com/tblyler/medreminder/report"
	"github.com/google/uuid"
)

const deliveriesLimit = 20

func errLog(messages ...interface{}) {
	fmt.Fprintln(os.Stderr, messages...)
}

func log(messages ...interface{}) {
	fmt.Println(messages...)
}

func help() {
	errLog(`usage: medreminder <command> [subcommand]

commands:
  run                      run the reminder and missed dose passes once
  serve                    run the passes on the trigger crontab
  report                   generate an adherence report
  user add|get|list        manage users
  medicine add|list        manage a user's medicines
  schedule add|list        manage a medicine's schedules
  log list|taken           list dose logs or mark one taken
  deliveries               list recent notification deliveries`)
}

type prompter struct {
	scanner *bufio.Scanner
}

// ask for a line of input, empty answers are allowed
func (p *prompter) ask(label string) string {
	fmt.Print(label + ": ")
	p.scanner.Scan()

	return string(bytes.TrimSpace(p.scanner.Bytes()))
}

// require a non-empty line of input
func (p *prompter) require(label string) (string, error) {
	val := p.ask(label)
	if val == "" {
		return "", fmt.Errorf("failed to get %s from STDIN prompt: %w", label, p.scanner.Err())
	}

	return val, nil
}

// confirm a yes/no question, fallback is used for an empty answer
func (p *prompter) confirm(label string, fallback bool) bool {
	hint := "y/N"
	if fallback {
		hint = "Y/n"
	}

	switch strings.ToLower(p.ask(label + " [" + hint + "]")) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	}

	return fallback
}

func (p *prompter) user(b *db.Badger) (*db.User, error) {
	username, err := p.require("username")
	if err != nil {
		return nil, err
	}

	user, err := b.GetUser(username)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup username %s: %w", username, err)
	}

	if user == nil {
		return nil, fmt.Errorf("username %s doesn't exist", username)
	}

	return user, nil
}

func (p *prompter) medicine(b *db.Badger, user *db.User) (*db.Medicine, error) {
	name, err := p.require("medicine name")
	if err != nil {
		return nil, err
	}

	medicines, err := b.ListMedicinesForUser(user)
	if err != nil {
		return nil, err
	}

	for _, medicine := range medicines {
		if strings.EqualFold(medicine.Name, name) {
			return medicine, nil
		}
	}

	return nil, fmt.Errorf("medicine %s doesn't exist for user %s", name, user.Name)
}

func (p *prompter) date(label string, loc *time.Location) (*time.Time, error) {
	val := p.ask(label + " (YYYY-MM-DD, blank for the report type's period)")
	if val == "" {
		return nil, nil
	}

	t, err := time.ParseInLocation("2006-01-02", val, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", label, val, err)
	}

	return &t, nil
}

func parseWeekdays(val string) ([]int, error) {
	var weekdays []int
	for _, field := range strings.Split(val, ",") {
		weekday, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q: %w", field, err)
		}

		weekdays = append(weekdays, weekday)
	}

	return weekdays, nil
}

func printReport(r *report.Report) {
	log(r.Period, fmt.Sprintf("adherence %.1f%%", r.Summary.AdherenceRate),
		"scheduled", r.Summary.TotalScheduled,
		"taken", r.Summary.TotalTaken,
		"missed", r.Summary.TotalMissed,
	)

	for _, medicine := range r.Medicines {
		log(" ", medicine.MedicineName, fmt.Sprintf("%.1f%%", medicine.AdherenceRate), "missed at", strings.Join(medicine.MissedTimes, ", "))
	}

	for _, recommendation := range r.Recommendations {
		log(" ", recommendation)
	}

	if r.ArtifactPath != "" {
		log("saved to", r.ArtifactPath)
	}
}

func main() {
	lenArgs := len(os.Args)
	if lenArgs <= 1 {
		help()
		errLog("must supply at least one argument")
		os.Exit(1)
	}

	err := func() error {
		p := &prompter{scanner: bufio.NewScanner(os.Stdin)}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}

		defer logger.Sync()

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}

		defer a.Close()

		b := a.badger
		ctx := context.Background()

		switch os.Args[1] {
		case "run":
			return tick(ctx, a)

		case "serve":
			return serve(a)

		case "report":
			user, err := p.user(b)
			if err != nil {
				return err
			}

			req := report.Request{
				UserID: user.ID,
				Type:   report.Type(p.ask("report type (daily, weekly, monthly)")),
			}

			if req.StartDate, err = p.date("start date", a.loc); err != nil {
				return err
			}

			if req.StartDate != nil {
				if req.EndDate, err = p.date("end date", a.loc); err != nil {
					return err
				}
			}

			req.SendNotification = p.confirm("send notification", false)

			engine, err := a.engine()
			if err != nil {
				return err
			}

			r, err := engine.Generate(ctx, req, time.Now())
			if err != nil {
				return err
			}

			printReport(r)

		case "user":
			if lenArgs < 3 {
				return errors.New("must supply an argument to the user command")
			}

			switch os.Args[2] {
			case "add":
				username, err := p.require("username")
				if err != nil {
					return err
				}

				recipient := p.ask("notification recipient (pushover user key or telegram chat id, blank for none)")
				enabled := p.confirm("enable notifications", true)

				id := uuid.New()

				err = b.AddUser(&db.User{
					ID:                   id,
					Name:                 username,
					Recipient:            recipient,
					NotificationsEnabled: enabled,
					CreatedAt:            time.Now(),
				})
				if err != nil {
					return fmt.Errorf("failed to insert username %s: %w", username, err)
				}

				log("created user id", id)

			case "get":
				user, err := p.user(b)
				if err != nil {
					return err
				}

				log(user.ID, user.Name, "recipient", user.Recipient, "notifications", user.NotificationsEnabled)

			case "list":
				users, err := b.ListUsers()
				if err != nil {
					return err
				}

				for _, user := range users {
					log(user.ID, user.Name, "recipient", user.Recipient, "notifications", user.NotificationsEnabled)
				}

			default:
				return fmt.Errorf("unknown user command %s", os.Args[2])
			}

		case "medicine":
			if lenArgs < 3 {
				return errors.New("must supply an argument to the medicine command")
			}

			user, err := p.user(b)
			if err != nil {
				return err
			}

			switch os.Args[2] {
			case "add":
				name, err := p.require("name")
				if err != nil {
					return err
				}

				medicine := &db.Medicine{
					IDUser:    user.ID,
					ID:        uuid.New(),
					Name:      name,
					Dosage:    p.ask("dosage (blank for none)"),
					Unit:      p.ask("unit (blank for none)"),
					Active:    true,
					CreatedAt: time.Now(),
				}

				if err := b.AddMedicine(medicine); err != nil {
					return err
				}

				log("created medicine id", medicine.ID)

			case "list":
				medicines, err := b.ListMedicinesForUser(user)
				if err != nil {
					return err
				}

				for _, medicine := range medicines {
					log(medicine.ID, medicine.Name, medicine.Dosage+medicine.Unit, "active", medicine.Active)
				}

			default:
				return fmt.Errorf("unknown medicine command %s", os.Args[2])
			}

		case "schedule":
			if lenArgs < 3 {
				return errors.New("must supply an argument to the schedule command")
			}

			user, err := p.user(b)
			if err != nil {
				return err
			}

			medicine, err := p.medicine(b, user)
			if err != nil {
				return err
			}

			switch os.Args[2] {
			case "add":
				at, err := p.require("time of day (HH:MM)")
				if err != nil {
					return err
				}

				timeOfDay, err := db.ParseTimeOfDay(at)
				if err != nil {
					return err
				}

				schedule := &db.Schedule{
					IDMedicine: medicine.ID,
					ID:         uuid.New(),
					TimeOfDay:  timeOfDay,
					Frequency:  db.FrequencyDaily,
					Active:     true,
					CreatedAt:  time.Now(),
				}

				if weekdays := p.ask("weekdays (1=Monday ... 7=Sunday, comma separated, blank for daily)"); weekdays != "" {
					schedule.Frequency = db.FrequencyWeekly
					if schedule.Weekdays, err = parseWeekdays(weekdays); err != nil {
						return err
					}
				}

				if err := b.AddSchedule(schedule); err != nil {
					return err
				}

				log("created schedule id", schedule.ID, "crontab", schedule.Crontab())

			case "list":
				schedules, err := b.ListSchedulesForMedicine(medicine)
				if err != nil {
					return err
				}

				for _, schedule := range schedules {
					next, err := schedule.Next(time.Now(), a.loc)
					if err != nil {
						return err
					}

					log(schedule.ID, schedule.TimeOfDay, schedule.Frequency, schedule.Weekdays, "active", schedule.Active, "next", next.Format(time.RFC1123))
				}

			default:
				return fmt.Errorf("unknown schedule command %s", os.Args[2])
			}

		case "log":
			if lenArgs < 3 {
				return errors.New("must supply an argument to the log command")
			}

			switch os.Args[2] {
			case "list":
				user, err := p.user(b)
				if err != nil {
					return err
				}

				medicines, err := b.ListMedicinesForUser(user)
				if err != nil {
					return err
				}

				names := make(map[uuid.UUID]string, len(medicines))
				ids := make([]uuid.UUID, 0, len(medicines))
				for _, medicine := range medicines {
					names[medicine.ID] = medicine.Name
					ids = append(ids, medicine.ID)
				}

				now := time.Now()
				logs, err := b.ListLogs(ctx, ids, now.AddDate(0, 0, -7), now)
				if err != nil {
					return err
				}

				for _, l := range logs {
					log(l.ID, names[l.IDMedicine], l.ScheduledTime.In(a.loc).Format("2006-01-02 15:04"), l.Status)
				}

			case "taken":
				val, err := p.require("log id")
				if err != nil {
					return err
				}

				id, err := uuid.Parse(val)
				if err != nil {
					return fmt.Errorf("invalid log id %s: %w", val, err)
				}

				l, err := b.MarkLogTaken(ctx, id, time.Now())
				if err != nil {
					return err
				}

				log("log", l.ID, l.Status, "at", l.TakenTime.In(a.loc).Format("2006-01-02 15:04"))

			default:
				return fmt.Errorf("unknown log command %s", os.Args[2])
			}

		case "deliveries":
			deliveries, err := b.ListDeliveries(deliveriesLimit)
			if err != nil {
				return err
			}

			for _, delivery := range deliveries {
				log(delivery.DeliveredAt.In(a.loc).Format(time.RFC3339), delivery.Kind, delivery.Recipient, "dry run", delivery.DryRun)
			}

		default:
			help()
			return fmt.Errorf("unknown command %s", os.Args[1])
		}

		return nil
	}()

	if err != nil {
		errLog(err.Error())
		os.Exit(1)
	}
}
