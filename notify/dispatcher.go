package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"git.0xdad.com/tblyler/medreminder/db"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Gateway pushes rendered payloads to a recipient
type Gateway interface {
	Name() string
	Push(ctx context.Context, recipient string, payload Payload) error
}

// Auditor records accepted deliveries
type Auditor interface {
	RecordDelivery(ctx context.Context, delivery *db.Delivery) error
}

// Observer is told about every dispatch outcome
type Observer interface {
	ObserveDelivery(kind string, outcome string)
}

// Outcome of a dispatch
type Outcome int

const (
	// OutcomeDelivered means the gateway accepted the push
	OutcomeDelivered Outcome = iota
	// OutcomeDryRun means no gateway credential is configured and nothing was sent
	OutcomeDryRun
	// OutcomeDeliveryFailed means the push was rejected or could not be made
	OutcomeDeliveryFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDryRun:
		return "dry_run"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	}

	return "unknown"
}

// Result of a dispatch. Status and Body are set for rejected pushes.
type Result struct {
	Outcome Outcome
	Status  int
	Body    string
}

// IsPlaceholderToken reports whether a gateway credential is absent or one of
// the sample values shipped in example configuration
func IsPlaceholderToken(token string) bool {
	token = strings.TrimSpace(token)

	return token == "" ||
		strings.HasPrefix(token, "YOUR_") ||
		strings.EqualFold(token, "changeme")
}

// Dispatcher renders requests and delivers them through a Gateway. It never
// retries, a failed delivery is reported to the caller.
type Dispatcher struct {
	gateway  Gateway
	auditor  Auditor
	limiter  *rate.Limiter
	observer Observer
	logger   *zap.Logger
	now      func() time.Time
}

// DispatcherOption customizes a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithRateLimit paces gateway pushes to perSecond, zero disables pacing
func WithRateLimit(perSecond float64) DispatcherOption {
	return func(d *Dispatcher) {
		if perSecond > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithObserver reports outcomes to o
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithClock overrides the delivery timestamp source
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// NewDispatcher creates a Dispatcher. A nil gateway puts the dispatcher in
// dry-run mode where every request is accepted without a network call.
func NewDispatcher(gateway Gateway, auditor Auditor, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		gateway: gateway,
		auditor: auditor,
		logger:  logger,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// DryRun reports whether the dispatcher skips the gateway
func (d *Dispatcher) DryRun() bool {
	return d.gateway == nil
}

// Dispatch a request. The returned error is of kind DeliveryFailed whenever
// the result outcome is OutcomeDeliveryFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Result, error) {
	logger := d.logger.With(
		zap.String("recipient", req.Recipient),
		zap.Stringer("kind", req.Kind),
	)

	payload, err := Render(req)
	if err != nil {
		return d.failed(logger, req, Result{Outcome: OutcomeDeliveryFailed}, err)
	}

	if d.gateway == nil {
		logger.Warn("No gateway credential configured, skipping notification")
		d.record(ctx, logger, req, true)
		d.observe(req, OutcomeDryRun)

		return Result{Outcome: OutcomeDryRun}, nil
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return d.failed(logger, req, Result{Outcome: OutcomeDeliveryFailed}, err)
		}
	}

	if err := d.gateway.Push(ctx, req.Recipient, payload); err != nil {
		result := Result{Outcome: OutcomeDeliveryFailed}

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			result.Status = rejected.Status
			result.Body = rejected.Body
		}

		return d.failed(logger, req, result, err)
	}

	logger.Info("Notification sent", zap.String("gateway", d.gateway.Name()))
	d.record(ctx, logger, req, false)
	d.observe(req, OutcomeDelivered)

	return Result{Outcome: OutcomeDelivered}, nil
}

func (d *Dispatcher) failed(logger *zap.Logger, req Request, result Result, cause error) (Result, error) {
	logger.Error("Failed to send notification",
		zap.Int("status", result.Status),
		zap.String("body", result.Body),
		zap.Error(cause),
	)
	d.observe(req, OutcomeDeliveryFailed)

	return result, apperr.New(apperr.KindDeliveryFailed, "recipient "+req.Recipient, cause)
}

// record is best effort, an audit failure does not fail the dispatch
func (d *Dispatcher) record(ctx context.Context, logger *zap.Logger, req Request, dryRun bool) {
	if d.auditor == nil {
		return
	}

	delivery := &db.Delivery{
		ID:          uuid.New(),
		Recipient:   req.Recipient,
		Kind:        req.Kind.String(),
		IDMedicine:  req.MedicineID,
		IDLog:       req.LogID,
		DryRun:      dryRun,
		DeliveredAt: d.now(),
	}

	if err := d.auditor.RecordDelivery(ctx, delivery); err != nil {
		logger.Warn("Failed to record delivery", zap.Error(err))
	}
}

func (d *Dispatcher) observe(req Request, outcome Outcome) {
	if d.observer != nil {
		d.observer.ObserveDelivery(req.Kind.String(), outcome.String())
	}
}
