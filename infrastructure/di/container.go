package di

import (
	"docprobe/application/ports"
	"docprobe/application/probe"
	"docprobe/application/services"
	"docprobe/infrastructure/config"
	"docprobe/interfaces/http/rest"
	"docprobe/pkg/auth"
	"docprobe/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies. Collector, Tracer,
// Validator and Limiter are nil when their feature is disabled.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	LogLevel   zap.AtomicLevel
	Collector  *observability.Collector
	Tracer     observability.Tracer
	Store      ports.DocumentStore
	Client     *services.DocumentStoreClient
	Prober     *probe.Prober
	Sweeper    *probe.Sweeper
	Publishers probe.Publishers
	Validator  *auth.JWTValidator
	Limiter    auth.RateLimiter
	Router     *rest.Router
}
