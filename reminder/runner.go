package reminder

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Observer of finished passes
type Observer interface {
	ObservePass(result RunResult, err error, elapsed time.Duration)
}

// Runner runs the reminder pass followed by the missed dose pass, each bound
// by the store timeout
type Runner struct {
	scheduler *Scheduler
	detector  *Detector
	timeout   time.Duration
	observer  Observer
	logger    *zap.Logger
}

// NewRunner creates a Runner. observer may be nil.
func NewRunner(scheduler *Scheduler, detector *Detector, timeout time.Duration, observer Observer, logger *zap.Logger) *Runner {
	return &Runner{
		scheduler: scheduler,
		detector:  detector,
		timeout:   timeout,
		observer:  observer,
		logger:    logger,
	}
}

// Tick runs both passes for now. A failing reminder pass does not prevent the
// missed dose pass from running.
func (r *Runner) Tick(ctx context.Context, now time.Time) (reminders RunResult, missed RunResult, err error) {
	reminders, reminderErr := r.run(ctx, PassReminder, func(ctx context.Context) (RunResult, error) {
		return r.scheduler.RunReminderPass(ctx, now)
	})

	missed, missedErr := r.run(ctx, PassMissed, func(ctx context.Context) (RunResult, error) {
		return r.detector.RunMissedDosePass(ctx, now)
	})

	return reminders, missed, errors.Join(reminderErr, missedErr)
}

func (r *Runner) run(ctx context.Context, pass string, fn func(context.Context) (RunResult, error)) (RunResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Error("Pass failed",
			zap.String("pass", pass),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}

	if r.observer != nil {
		r.observer.ObservePass(result, err, elapsed)
	}

	return result, err
}
