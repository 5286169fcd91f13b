// Package resilience wraps calls to external services with a rate limiter and a circuit breaker.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"docvault-backend/internal/shared/telemetry"
)

// Guard limits request rate and trips open after repeated failures.
type Guard struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// GuardOptions configures a Guard. A zero RatePerSecond disables rate limiting.
type GuardOptions struct {
	Name          string
	RatePerSecond float64
	Burst         int
	OpenTimeout   time.Duration
}

// NewGuard builds a Guard for the named dependency.
func NewGuard(opts GuardOptions) *Guard {
	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			telemetry.Warn("breaker.state_change", map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &Guard{breaker: breaker, limiter: limiter}
}

// Do waits for a rate token and runs fn through the circuit breaker.
// An open breaker returns gobreaker.ErrOpenState without calling fn.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if g == nil {
		return fn(ctx)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// State reports the breaker state for health output.
func (g *Guard) State() string {
	if g == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}
