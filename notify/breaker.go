package notify

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Breaker stops calling a Gateway after consecutive transport failures or
// server errors. Client rejections do not count as failures, the gateway
// answered.
type Breaker struct {
	gateway Gateway
	cb      *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker wraps gateway, tripping after failures consecutive transport
// errors and probing again after cooldown
func NewBreaker(gateway Gateway, failures uint32, cooldown time.Duration, logger *zap.Logger) *Breaker {
	return &Breaker{
		gateway: gateway,
		cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:    gateway.Name(),
			Timeout: cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				var rejected *RejectedError
				if errors.As(err, &rejected) {
					return rejected.Status < http.StatusInternalServerError
				}

				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Gateway circuit breaker changed state",
					zap.String("gateway", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
	}
}

// Name of the wrapped gateway
func (b *Breaker) Name() string {
	return b.gateway.Name()
}

// Push through the breaker
func (b *Breaker) Push(ctx context.Context, recipient string, payload Payload) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.gateway.Push(ctx, recipient, payload)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &RejectedError{Status: 0, Body: "circuit open: " + err.Error()}
	}

	return err
}
