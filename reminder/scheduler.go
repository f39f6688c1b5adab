package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"git.0xdad.com/tblyler/medreminder/db"
	"git.0xdad.com/tblyler/medreminder/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PassReminder is the name of the reminder pass
const PassReminder = "reminder"

// Scheduler creates pending dose logs for due schedules and reminds their
// users
type Scheduler struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	workers  int
	logger   *zap.Logger
}

// NewScheduler creates a Scheduler. Schedules are matched against wall clock
// time in loc, and at most workers schedules are processed concurrently.
func NewScheduler(store Store, notifier Notifier, loc *time.Location, workers int, logger *zap.Logger) *Scheduler {
	if workers < 1 {
		workers = 1
	}

	return &Scheduler{
		store:    store,
		notifier: notifier,
		loc:      loc,
		workers:  workers,
		logger:   logger,
	}
}

type scheduleOutcome int

const (
	scheduleSkipped scheduleOutcome = iota
	scheduleLogged
	scheduleNotified
)

// RunReminderPass for the schedules due at now. Only a store failure aborts the
// pass, every other failure is recorded on the result.
func (s *Scheduler) RunReminderPass(ctx context.Context, now time.Time) (RunResult, error) {
	result := RunResult{Pass: PassReminder}

	local := now.In(s.loc)
	at := db.TimeOfDayOf(local)
	weekday := db.ISOWeekday(local)

	logger := s.logger.With(
		zap.Stringer("at", at),
		zap.Int("weekday", weekday),
	)

	schedules, err := s.store.ListDueSchedules(ctx, at, weekday)
	if err != nil {
		return result, fmt.Errorf("failed to list schedules due at %s: %w", at, err)
	}

	result.Matched = len(schedules)
	logger.Info("Found due schedules", zap.Int("count", len(schedules)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, schedule := range schedules {
		g.Go(func() error {
			outcome, err := s.processSchedule(gctx, schedule, local)

			mu.Lock()
			defer mu.Unlock()

			switch outcome {
			case scheduleNotified:
				result.Notified++
				result.LogsCreated++
			case scheduleLogged:
				result.LogsCreated++
			case scheduleSkipped:
				if err == nil {
					result.Skipped++
				}
			}

			if err == nil {
				return nil
			}

			if !soft(err) {
				return fmt.Errorf("failed to process schedule %s: %w", schedule.ID, err)
			}

			logger.Warn("Skipping schedule",
				zap.Stringer("schedule", schedule.ID),
				zap.Error(err),
			)
			result.addError("schedule "+schedule.ID.String(), err)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	logger.Info("Reminder pass finished",
		zap.Int("logs_created", result.LogsCreated),
		zap.Int("notified", result.Notified),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}

func (s *Scheduler) processSchedule(ctx context.Context, schedule *db.Schedule, local time.Time) (scheduleOutcome, error) {
	target, err := resolve(ctx, s.store, schedule.IDMedicine)
	if err != nil {
		return scheduleSkipped, err
	}

	scheduled := schedule.TimeOfDay.On(local, s.loc)

	existing, err := s.store.FindLog(ctx, schedule.IDMedicine, scheduled)
	if err != nil {
		return scheduleSkipped, err
	}

	if existing != nil {
		return scheduleSkipped, nil
	}

	log := &db.Log{
		IDMedicine:    schedule.IDMedicine,
		ID:            uuid.New(),
		ScheduledTime: scheduled,
		Status:        db.StatusPending,
		CreatedAt:     local,
	}

	err = s.store.InsertLog(ctx, log)
	if errors.Is(err, db.ErrLogExists) {
		return scheduleSkipped, nil
	}

	if err != nil {
		return scheduleSkipped, err
	}

	if !target.user.NotificationsEnabled {
		return scheduleLogged, apperr.New(apperr.KindNotificationsDisabled, "user "+target.user.ID.String(), nil)
	}

	medicineID := target.medicine.ID
	logID := log.ID
	_, err = s.notifier.Dispatch(ctx, notify.Request{
		Recipient:  target.user.Recipient,
		Message:    reminderMessage(target.medicine, schedule.TimeOfDay),
		Kind:       notify.KindMedicationReminder,
		MedicineID: &medicineID,
		LogID:      &logID,
	})
	if err != nil {
		return scheduleLogged, err
	}

	return scheduleNotified, nil
}
