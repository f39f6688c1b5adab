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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// PassMissed is the name of the missed dose pass
	PassMissed = "missed"

	// Grace is how long after its scheduled time a pending dose is missed
	Grace = 30 * time.Minute
	// Tolerance around now minus Grace that a pending dose is looked up in
	Tolerance = 5 * time.Minute
)

// Detector marks pending doses whose grace period ran out as missed and
// notifies their users
type Detector struct {
	store    Store
	notifier Notifier
	loc      *time.Location
	workers  int
	logger   *zap.Logger
}

// NewDetector creates a Detector. Scheduled times in messages are shown in loc.
func NewDetector(store Store, notifier Notifier, loc *time.Location, workers int, logger *zap.Logger) *Detector {
	if workers < 1 {
		workers = 1
	}

	return &Detector{
		store:    store,
		notifier: notifier,
		loc:      loc,
		workers:  workers,
		logger:   logger,
	}
}

// RunMissedDosePass over the pending logs scheduled within Tolerance of
// now minus Grace. Each log transitions to missed at most once.
func (d *Detector) RunMissedDosePass(ctx context.Context, now time.Time) (RunResult, error) {
	result := RunResult{Pass: PassMissed}

	center := now.Add(-Grace)
	from := center.Add(-Tolerance)
	to := center.Add(Tolerance)

	logger := d.logger.With(
		zap.Time("from", from),
		zap.Time("to", to),
	)

	logs, err := d.store.ListPendingLogs(ctx, from, to)
	if err != nil {
		return result, fmt.Errorf("failed to list pending logs: %w", err)
	}

	result.Matched = len(logs)
	logger.Info("Found pending logs past their grace period", zap.Int("count", len(logs)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for _, log := range logs {
		g.Go(func() error {
			transitioned, notified, err := d.processLog(gctx, log)

			mu.Lock()
			defer mu.Unlock()

			if transitioned {
				result.Transitioned++
			} else if err == nil {
				result.Skipped++
			}

			if notified {
				result.Notified++
			}

			if err == nil {
				return nil
			}

			if !soft(err) {
				return fmt.Errorf("failed to process log %s: %w", log.ID, err)
			}

			logger.Warn("Skipping missed dose notification",
				zap.Stringer("log", log.ID),
				zap.Error(err),
			)
			result.addError("log "+log.ID.String(), err)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	logger.Info("Missed dose pass finished",
		zap.Int("transitioned", result.Transitioned),
		zap.Int("notified", result.Notified),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)

	return result, nil
}

func (d *Detector) processLog(ctx context.Context, log *db.Log) (transitioned bool, notified bool, err error) {
	missed, err := d.store.TransitionLogStatus(ctx, log.ID, db.StatusMissed, nil, db.StatusPending)
	if errors.Is(err, db.ErrStatusConflict) || errors.Is(err, db.ErrLogNotFound) {
		// taken or already marked missed since it was listed
		return false, false, nil
	}

	if err != nil {
		return false, false, err
	}

	target, err := resolve(ctx, d.store, missed.IDMedicine)
	if err != nil {
		return true, false, err
	}

	if !target.user.NotificationsEnabled {
		return true, false, apperr.New(apperr.KindNotificationsDisabled, "user "+target.user.ID.String(), nil)
	}

	medicineID := target.medicine.ID
	logID := missed.ID
	_, err = d.notifier.Dispatch(ctx, notify.Request{
		Recipient:  target.user.Recipient,
		Message:    missedMessage(target.medicine, missed.ScheduledTime.In(d.loc)),
		Kind:       notify.KindMissedMedication,
		MedicineID: &medicineID,
		LogID:      &logID,
	})
	if err != nil {
		return true, false, err
	}

	return true, true, nil
}
