// Package report aggregates dose logs into adherence reports with
// recommendations, persists them as artifacts and notifies users.
package report

import (
	"fmt"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"github.com/google/uuid"
)

// Type of report, selecting its default period
type Type string

const (
	// TypeDaily covers today
	TypeDaily Type = "daily"
	// TypeWeekly covers the last 7 days including today
	TypeWeekly Type = "weekly"
	// TypeMonthly covers the last 30 days including today
	TypeMonthly Type = "monthly"
)

// Request for a report. StartDate and EndDate override the period of Type
// when both are set, only their calendar dates are used.
type Request struct {
	UserID           uuid.UUID  `json:"user_id"`
	Type             Type       `json:"report_type"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
	SendNotification bool       `json:"send_notification"`
}

// Report of a user's medication adherence over a period
type Report struct {
	UserID          uuid.UUID        `json:"user_id" yaml:"user_id"`
	ReportType      Type             `json:"report_type" yaml:"report_type"`
	Period          string           `json:"period" yaml:"period"`
	Summary         Summary          `json:"summary" yaml:"summary"`
	Medicines       []MedicineReport `json:"medicines" yaml:"medicines"`
	Recommendations []string         `json:"recommendations" yaml:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at" yaml:"generated_at"`

	// ArtifactPath is set once the report was persisted
	ArtifactPath string `json:"-" yaml:"-"`
}

// Summary over every active medicine
type Summary struct {
	TotalScheduled         int     `json:"total_scheduled" yaml:"total_scheduled"`
	TotalTaken             int     `json:"total_taken" yaml:"total_taken"`
	TotalMissed            int     `json:"total_missed" yaml:"total_missed"`
	AdherenceRate          float64 `json:"adherence_rate" yaml:"adherence_rate"`
	MostMissedTime         string  `json:"most_missed_time,omitempty" yaml:"most_missed_time,omitempty"`
	BestAdherenceMedicine  string  `json:"best_adherence_medicine,omitempty" yaml:"best_adherence_medicine,omitempty"`
	WorstAdherenceMedicine string  `json:"worst_adherence_medicine,omitempty" yaml:"worst_adherence_medicine,omitempty"`
}

// MedicineReport for a single medicine
type MedicineReport struct {
	MedicineID     uuid.UUID `json:"medicine_id" yaml:"medicine_id"`
	MedicineName   string    `json:"medicine_name" yaml:"medicine_name"`
	ScheduledCount int       `json:"scheduled_count" yaml:"scheduled_count"`
	TakenCount     int       `json:"taken_count" yaml:"taken_count"`
	MissedCount    int       `json:"missed_count" yaml:"missed_count"`
	AdherenceRate  float64   `json:"adherence_rate" yaml:"adherence_rate"`
	MissedTimes    []string  `json:"missed_times" yaml:"missed_times"`
}

// Period of calendar days, both inclusive, at midnight in their location
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) String() string {
	return p.Start.Format("2006/01/02") + " ~ " + p.End.Format("2006/01/02")
}

// Until is the last second of the period's final day
func (p Period) Until() time.Time {
	return time.Date(p.End.Year(), p.End.Month(), p.End.Day(), 23, 59, 59, 0, p.End.Location())
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ResolvePeriod for a request relative to now. An explicit date pair is used
// verbatim, otherwise the period is derived from the report type.
func ResolvePeriod(req Request, now time.Time, loc *time.Location) (Period, error) {
	if req.StartDate != nil && req.EndDate != nil {
		return Period{
			Start: dateIn(*req.StartDate, loc),
			End:   dateIn(*req.EndDate, loc),
		}, nil
	}

	today := midnight(now, loc)

	var days int
	switch req.Type {
	case TypeDaily:
		days = 0
	case TypeWeekly:
		days = 6
	case TypeMonthly:
		days = 29
	default:
		return Period{}, apperr.New(apperr.KindInvalidReportType, string(req.Type), fmt.Errorf("report type must be one of %s, %s or %s", TypeDaily, TypeWeekly, TypeMonthly))
	}

	return Period{
		Start: today.AddDate(0, 0, -days),
		End:   today,
	}, nil
}
