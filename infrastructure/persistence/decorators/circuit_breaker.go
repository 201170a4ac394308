package decorators

import (
	"context"
	"errors"
	"time"

	"docprobe/application/ports"
	"docprobe/domain/core/entities"
	"docprobe/domain/core/valueobjects"
	pkgerrors "docprobe/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// CircuitBreakerConfig holds configuration for circuit breaker
type CircuitBreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ReadyToTrip trips once at least MinRequests were seen and the failure
	// ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultCircuitBreakerConfig returns a default configuration for circuit breaker
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// StateReporter receives breaker state changes, e.g. a metrics gauge
type StateReporter interface {
	SetBreakerState(name string, state float64)
}

// CircuitBreakerDocumentStore stops calling a failing service. Only
// transient errors count as failures; a conflict or a miss is a healthy
// answer from the store.
type CircuitBreakerDocumentStore struct {
	next ports.DocumentStore
	cb   *gobreaker.CircuitBreaker
}

// NewCircuitBreakerDocumentStore wraps next. reporter may be nil.
func NewCircuitBreakerDocumentStore(next ports.DocumentStore, config CircuitBreakerConfig, logger *zap.Logger, reporter StateReporter) *CircuitBreakerDocumentStore {
	logger = logger.Named("circuit_breaker")
	if reporter != nil {
		reporter.SetBreakerState(config.Name, 0)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if reporter != nil {
				reporter.SetBreakerState(name, stateValue(to))
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !pkgerrors.IsTransient(err)
		},
	})

	return &CircuitBreakerDocumentStore{next: next, cb: cb}
}

func (s *CircuitBreakerDocumentStore) Write(ctx context.Context, req entities.WriteRequest) (*entities.Document, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Write(ctx, req)
	})
	if err != nil {
		return nil, s.translate("Write", err)
	}
	return res.(*entities.Document), nil
}

func (s *CircuitBreakerDocumentStore) Read(ctx context.Context, key valueobjects.DocumentKey) (*entities.Document, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.next.Read(ctx, key)
	})
	if err != nil {
		return nil, s.translate("Read", err)
	}
	return res.(*entities.Document), nil
}

// Ping bypasses the breaker so readiness reflects the service itself
func (s *CircuitBreakerDocumentStore) Ping(ctx context.Context) error {
	return ping(ctx, s.next)
}

func (s *CircuitBreakerDocumentStore) Close() error {
	return s.next.Close()
}

// State returns the current breaker state
func (s *CircuitBreakerDocumentStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *CircuitBreakerDocumentStore) translate(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewTransientError("document store temporarily unavailable", err).
			WithCode(pkgerrors.CodeCircuitOpen).
			WithOperation(op).
			WithResource(s.cb.Name())
	}
	return err
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
