package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Frequency of a schedule
type Frequency string

const (
	// FrequencyDaily schedules fire every day
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly schedules fire on their weekdays
	FrequencyWeekly Frequency = "weekly"
)

var (
	// ErrInvalidSchedule occurs when a schedule breaks its invariants
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// TimeOfDay with minute resolution
type TimeOfDay struct {
	Hour   int
	Minute int
}

// TimeOfDayOf t in its own location, seconds truncated
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseTimeOfDay in HH:MM form
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}

	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On combines the calendar date of day with t in loc
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler
func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *TimeOfDay) UnmarshalText(text []byte) error {
	parsed, err := ParseTimeOfDay(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// ISOWeekday of t, 1 is Monday and 7 is Sunday
func ISOWeekday(t time.Time) int {
	weekday := int(t.Weekday())
	if weekday == 0 {
		return 7
	}

	return weekday
}

// Schedule for taking a medicine
type Schedule struct {
	IDMedicine uuid.UUID `json:"id_medicine"`
	ID         uuid.UUID `json:"id"`
	TimeOfDay  TimeOfDay `json:"time_of_day"`
	Frequency  Frequency `json:"frequency"`
	// Weekdays the schedule applies to when weekly, nil means every weekday
	Weekdays  []int     `json:"weekdays,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate the schedule invariants
func (s *Schedule) Validate() error {
	if s.TimeOfDay.Hour < 0 || s.TimeOfDay.Hour > 23 || s.TimeOfDay.Minute < 0 || s.TimeOfDay.Minute > 59 {
		return fmt.Errorf("time of day %s out of range: %w", s.TimeOfDay, ErrInvalidSchedule)
	}

	switch s.Frequency {
	case FrequencyDaily:
	case FrequencyWeekly:
		if s.Weekdays != nil && len(s.Weekdays) == 0 {
			return fmt.Errorf("weekly schedule with an empty weekday set: %w", ErrInvalidSchedule)
		}

		for _, weekday := range s.Weekdays {
			if weekday < 1 || weekday > 7 {
				return fmt.Errorf("weekday %d out of range 1-7: %w", weekday, ErrInvalidSchedule)
			}
		}
	default:
		return fmt.Errorf("unknown frequency %q: %w", s.Frequency, ErrInvalidSchedule)
	}

	return nil
}

// Matches reports whether the schedule is due at the given time of day and
// ISO weekday
func (s *Schedule) Matches(at TimeOfDay, weekday int) bool {
	if !s.Active || s.TimeOfDay != at {
		return false
	}

	switch s.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekly:
		if len(s.Weekdays) == 0 {
			return true
		}

		for _, day := range s.Weekdays {
			if day == weekday {
				return true
			}
		}
	}

	return false
}

// Crontab expression equivalent to the schedule
func (s *Schedule) Crontab() string {
	dow := "*"
	if s.Frequency == FrequencyWeekly && len(s.Weekdays) > 0 {
		days := make([]string, 0, len(s.Weekdays))
		for _, day := range s.Weekdays {
			// cron counts Sunday as 0
			days = append(days, strconv.Itoa(day%7))
		}

		dow = strings.Join(days, ",")
	}

	return fmt.Sprintf("%d %d * * %s", s.TimeOfDay.Minute, s.TimeOfDay.Hour, dow)
}

// Next occurrence of the schedule strictly after t in loc
func (s *Schedule) Next(t time.Time, loc *time.Location) (time.Time, error) {
	sched, err := cron.ParseStandard(s.Crontab())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse crontab for schedule %s: %w", s.ID, err)
	}

	return sched.Next(t.In(loc)), nil
}

func (s *Schedule) badgerKey() []byte {
	return append(badgerPrefixKeyForScheduleTime(s.TimeOfDay), s.ID[:]...)
}

func badgerPrefixKeyForScheduleTime(at TimeOfDay) []byte {
	return []byte("schedule:" + at.String() + ":")
}

func badgerIndexKeyForScheduleMedicine(medicineID uuid.UUID, scheduleID uuid.UUID) []byte {
	return append(badgerPrefixKeyForScheduleMedicine(medicineID), scheduleID[:]...)
}

func badgerPrefixKeyForScheduleMedicine(medicineID uuid.UUID) []byte {
	return append([]byte("schedule_medicine:"), medicineID[:]...)
}
