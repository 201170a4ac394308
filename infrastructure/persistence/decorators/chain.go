package decorators

import (
	"time"

	"docprobe/application/ports"
	"docprobe/pkg/observability"

	"go.uber.org/zap"
)

// ChainConfig selects the decorators applied by Chain. Nil or zero fields
// are skipped.
type ChainConfig struct {
	Logger         *zap.Logger
	SlowThreshold  time.Duration
	Collector      *observability.Collector
	Tracer         observability.Tracer
	CircuitBreaker *CircuitBreakerConfig
}

// Chain wraps store, innermost first: circuit breaker, logging, metrics,
// tracing. Spans and metrics therefore include breaker rejections.
func Chain(store ports.DocumentStore, cfg ChainConfig) ports.DocumentStore {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.CircuitBreaker != nil {
		var reporter StateReporter
		if cfg.Collector != nil {
			reporter = cfg.Collector
		}
		store = NewCircuitBreakerDocumentStore(store, *cfg.CircuitBreaker, logger, reporter)
	}
	if cfg.Logger != nil {
		store = NewLoggingDocumentStore(store, logger, cfg.SlowThreshold)
	}
	if cfg.Collector != nil {
		store = NewMetricsDocumentStore(store, cfg.Collector)
	}
	if cfg.Tracer != nil {
		store = NewTracingDocumentStore(store, cfg.Tracer)
	}
	return store
}
