package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Domenick1991/ridehold/internal/domain"
	"github.com/sony/gobreaker"
)

var ErrCircuitOpen = errors.New("circuit open")

type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	Logger           *slog.Logger
}

// Breaker stops calling a provider after repeated transient failures. Terminal
// provider answers (declines, already captured, ...) count as successes and
// never trip it.
type Breaker struct {
	next Provider
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Provider, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := uint32(cfg.FailureThreshold)

	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(next.Name()),
			MaxRequests: uint32(cfg.SuccessThreshold),
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !domain.IsProviderTransient(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("provider circuit state changed", "provider", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *Breaker) Name() domain.PaymentProvider {
	return b.next.Name()
}

// State reports the circuit state, e.g. "closed" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) Authorize(ctx context.Context, req AuthorizeRequest) (Authorization, error) {
	return execute(b, "authorize", func() (Authorization, error) {
		return b.next.Authorize(ctx, req)
	})
}

func (b *Breaker) ExplicitAuthorize(ctx context.Context, orderRef string) (string, error) {
	return execute(b, "explicit_authorize", func() (string, error) {
		return b.next.ExplicitAuthorize(ctx, orderRef)
	})
}

func (b *Breaker) Capture(ctx context.Context, ref string, amount *domain.Money) (CaptureResult, error) {
	return execute(b, "capture", func() (CaptureResult, error) {
		return b.next.Capture(ctx, ref, amount)
	})
}

func (b *Breaker) Void(ctx context.Context, ref string) error {
	_, err := execute(b, "void", func() (struct{}, error) {
		return struct{}{}, b.next.Void(ctx, ref)
	})
	return err
}

func (b *Breaker) Refund(ctx context.Context, ref string, amount domain.Money, reason string) (string, error) {
	return execute(b, "refund", func() (string, error) {
		return b.next.Refund(ctx, ref, amount, reason)
	})
}

func execute[T any](b *Breaker, op string, call func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (interface{}, error) {
		return call()
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return zero, &domain.ProviderError{
			Provider:  b.next.Name(),
			Op:        op,
			Code:      domain.CodeCircuitOpen,
			Transient: true,
			Err:       fmt.Errorf("%w: %w", ErrCircuitOpen, err),
		}
	case err != nil:
		return zero, err
	}
	return out.(T), nil
}

var _ Provider = (*Breaker)(nil)
