package report

import (
	"context"
	"fmt"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"git.0xdad.com/tblyler/medreminder/db"
	"git.0xdad.com/tblyler/medreminder/notify"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the subset of the medication store reports are built from
type Store interface {
	FindUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	ListActiveMedicines(ctx context.Context, userID uuid.UUID) ([]*db.Medicine, error)
	ListLogs(ctx context.Context, medicineIDs []uuid.UUID, from, to time.Time) ([]*db.Log, error)
}

// Notifier sends the report summary
type Notifier interface {
	Dispatch(ctx context.Context, req notify.Request) (notify.Result, error)
}

// Observer of generated reports
type Observer interface {
	ObserveReport(reportType string, err error)
}

// Engine generates adherence reports
type Engine struct {
	store     Store
	artifacts ArtifactStore
	notifier  Notifier
	loc       *time.Location
	logger    *zap.Logger
	observer  Observer
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithObserver reports every generation to o
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an Engine. artifacts and notifier may be nil to skip
// persisting and notifying.
func NewEngine(store Store, artifacts ArtifactStore, notifier Notifier, loc *time.Location, logger *zap.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		artifacts: artifacts,
		notifier:  notifier,
		loc:       loc,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Generate a report as of now. Failing to persist or deliver the report is
// logged and does not fail generation.
func (e *Engine) Generate(ctx context.Context, req Request, now time.Time) (report *Report, err error) {
	if e.observer != nil {
		defer func() {
			e.observer.ObserveReport(string(req.Type), err)
		}()
	}

	logger := e.logger.With(
		zap.Stringer("user", req.UserID),
		zap.String("type", string(req.Type)),
	)

	period, err := ResolvePeriod(req, now, e.loc)
	if err != nil {
		return nil, err
	}

	user, err := e.store.FindUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	medicines, err := e.store.ListActiveMedicines(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var logs []*db.Log
	if len(medicines) > 0 {
		ids := make([]uuid.UUID, 0, len(medicines))
		for _, medicine := range medicines {
			ids = append(ids, medicine.ID)
		}

		logs, err = e.store.ListLogs(ctx, ids, period.Start, period.Until())
		if err != nil {
			return nil, err
		}
	}

	report = Build(user.ID, req.Type, period, medicines, logs, e.loc, now.In(e.loc))
	logger.Info("Generated report",
		zap.String("period", report.Period),
		zap.Float64("adherence_rate", report.Summary.AdherenceRate),
	)

	if e.artifacts != nil {
		path, err := e.artifacts.Save(report)
		if err != nil {
			logger.Error("Failed to save report", zap.Error(err))
		} else {
			report.ArtifactPath = path
			logger.Info("Saved report", zap.String("path", path))
		}
	}

	if req.SendNotification {
		if err := e.notify(ctx, user, report); err != nil {
			logger.Warn("Failed to send report notification", zap.Error(err))
		}
	}

	return report, nil
}

func (e *Engine) notify(ctx context.Context, user *db.User, report *Report) error {
	if user.Recipient == "" {
		return apperr.New(apperr.KindRecipientNotConfigured, "user "+user.ID.String(), nil)
	}

	if !user.NotificationsEnabled {
		return apperr.New(apperr.KindNotificationsDisabled, "user "+user.ID.String(), nil)
	}

	if e.notifier == nil {
		return fmt.Errorf("no notifier configured")
	}

	_, err := e.notifier.Dispatch(ctx, notify.Request{
		Recipient: user.Recipient,
		Message:   SummaryMessage(report),
		Kind:      notify.KindMedicationReport,
	})

	return err
}
