// Package circuitbreaker wraps sony/gobreaker for calls to external collaborators.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var (
	ErrOpenState       = gobreaker.ErrOpenState
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

type Settings struct {
	Name string
	// ConsecutiveFailures trips the breaker once reached.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	// IsSuccessful classifies errors that must not count as failures, e.g. not found.
	IsSuccessful func(err error) bool
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

func New(s Settings, logger *zap.Logger) *Breaker {
	threshold := s.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	st := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: s.IsSuccessful,
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](st)}
}

// Execute runs fn through the breaker. When the breaker is open fn is not called
// and ErrOpenState is returned.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	t, _ := v.(T)
	return t, err
}

func (b *Breaker) State() string {
	return b.cb.State().String()
}
