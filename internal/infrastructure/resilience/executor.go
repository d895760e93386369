package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrorClassification tells the executor how to treat one failure:
// whether another attempt may help, and whether the circuit breaker
// should count it against the operation's health.
type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Executor wraps outbound calls with bounded retries and one circuit
// breaker per named operation. Breakers are created lazily on first use.
type Executor struct {
	cfg Config

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: map[string]*gobreaker.CircuitBreaker[any]{},
	}
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: nil operation callback")
	}
	if classifier == nil {
		classifier = func(error) ErrorClassification {
			return ErrorClassification{RecordFailure: true}
		}
	}
	name := strings.TrimSpace(operation)
	if name == "" {
		name = "unknown"
	}

	if !e.cfg.BreakerEnabled {
		return e.retry(ctx, name, fn, classifier)
	}

	_, err := e.breakerFor(name, classifier).Execute(func() (any, error) {
		return nil, e.retry(ctx, name, fn, classifier)
	})
	return err
}

func (e *Executor) retry(
	ctx context.Context,
	name string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	backoff := e.cfg.RetryInitialBackoff

	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classifier(err).Retryable || attempt >= e.cfg.RetryMaxAttempts {
			return err
		}

		slog.Warn("resilience_retry",
			"operation", name,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		if !sleepOrCancel(ctx, backoff) {
			return err
		}

		backoff = time.Duration(float64(backoff) * e.cfg.RetryMultiplier)
		if backoff > e.cfg.RetryMaxBackoff {
			backoff = e.cfg.RetryMaxBackoff
		}
	}
}

// sleepOrCancel reports false when the context ended before the wait did.
func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breakerFor(name string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.RLock()
	breaker, ok := e.breakers[name]
	e.mu.RUnlock()
	if ok {
		return breaker
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if breaker, ok = e.breakers[name]; ok {
		return breaker
	}

	breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(op string, from, to gobreaker.State) {
			slog.Warn("breaker_state_change", "operation", op, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[name] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
