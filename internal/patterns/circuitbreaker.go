package patterns

import (
	"errors"
	"fmt"
	"time"

	"github.com/arthurstore/storefront/internal/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Breaker wraps gobreaker with Prometheus metrics for a single gateway.
type Breaker struct {
	*gobreaker.CircuitBreaker
	name    string
	service string
}

// NewBreaker creates a circuit breaker for an outbound gateway call path.
func NewBreaker(name, service string) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // Max requests allowed in half-open state
		Interval:    15 * time.Second, // Window to track failures
		Timeout:     30 * time.Second, // Time to wait before half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			// Trip if 60% or more requests fail and at least 3 requests have been made
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			state := float64(0)
			switch to {
			case gobreaker.StateOpen:
				state = 1
			case gobreaker.StateHalfOpen:
				state = 2
			case gobreaker.StateClosed:
				state = 0
			}
			metrics.CircuitBreakerState.WithLabelValues(service, cbName).Set(state)

			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	})

	b := &Breaker{
		CircuitBreaker: cb,
		name:           name,
		service:        service,
	}

	// Gauge starts at closed.
	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)

	return b
}

// Execute runs a function through the circuit breaker with metrics
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.CircuitBreaker.Execute(fn)

	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(b.service, b.name).Inc()
	}

	return result, err
}

// DescribeError rewrites gobreaker sentinel errors into messages that name
// the circuit; anything else passes through unchanged.
func DescribeError(circuitName string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("circuit breaker %s is open (service unavailable)", circuitName)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit breaker %s: too many requests in half-open state", circuitName)
	}
	return err
}
