// ABOUTME: Circuit breaker around backend round trips using sony/gobreaker
// ABOUTME: Transport errors and 5xx responses count as failures; 4xx and cancellation do not

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/2389/coven-console/internal/config"
)

// serverError marks a 5xx so the breaker counts it while the caller still gets the response
type serverError struct {
	code int
}

func (e *serverError) Error() string { return fmt.Sprintf("server returned %d", e.code) }

// Breaker fails fast after repeated backend failures.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a breaker that opens after cfg.ConsecutiveFailures and half-opens after cfg.OpenTimeout.
func NewBreaker(cfg config.BreakerConfig, logger *slog.Logger) *Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "breaker")

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	st := gobreaker.Settings{
		Name:    "coven-backend",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Do runs fn through the breaker. A 5xx response is returned with a nil error.
// While open, Do returns gobreaker.ErrOpenState without calling fn.
func (b *Breaker) Do(fn func() (*http.Response, error)) (*http.Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		resp, err := fn()
		if err != nil {
			return resp, err
		}
		if resp.StatusCode >= 500 {
			return resp, &serverError{code: resp.StatusCode}
		}
		return resp, nil
	})

	resp, _ := out.(*http.Response)
	var se *serverError
	if errors.As(err, &se) {
		return resp, nil
	}
	if err != nil {
		return resp, err
	}
	return resp, nil
}

// State returns closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
