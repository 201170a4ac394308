package rest

import (
	"context"
	"net/http"
	"time"

	"docprobe/interfaces/http/rest/handlers"
	"docprobe/interfaces/http/rest/middleware"
	"docprobe/pkg/auth"
	"docprobe/pkg/common"
	pkgerrors "docprobe/pkg/errors"
	"docprobe/pkg/observability"
	"docprobe/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds the HTTP settings the router applies
type RouterConfig struct {
	EnableCORS     bool
	AllowedOrigins []string
	RequestTimeout time.Duration
	Debug          bool
}

// HealthChecker reports whether the document store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Router creates and configures the HTTP router
type Router struct {
	config    RouterConfig
	documents handlers.DocumentService
	observer  handlers.Observer
	health    HealthChecker
	collector *observability.Collector
	validator *auth.JWTValidator
	limiter   auth.RateLimiter
	logger    *zap.Logger
}

// RouterOption customizes optional router features
type RouterOption func(*Router)

// WithMetrics records request metrics and serves /metrics
func WithMetrics(collector *observability.Collector) RouterOption {
	return func(rt *Router) { rt.collector = collector }
}

// WithAuth requires bearer tokens on API routes
func WithAuth(validator *auth.JWTValidator) RouterOption {
	return func(rt *Router) { rt.validator = validator }
}

// WithRateLimit limits API routes per client IP
func WithRateLimit(limiter auth.RateLimiter) RouterOption {
	return func(rt *Router) { rt.limiter = limiter }
}

// NewRouter creates a new router instance
func NewRouter(
	config RouterConfig,
	documents handlers.DocumentService,
	observer handlers.Observer,
	health HealthChecker,
	logger *zap.Logger,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		config:    config,
		documents: documents,
		observer:  observer,
		health:    health,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}
	return rt
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errs := pkgerrors.NewErrorHandler(rt.logger.Named("http"), rt.config.Debug)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(errs.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.collector != nil {
		router.Use(middleware.Metrics(rt.collector))
	}

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.config.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "If-Match", "X-Request-ID"},
			ExposedHeaders: []string{"ETag", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck(errs))
	if rt.collector != nil {
		router.Method(http.MethodGet, "/metrics", rt.collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.limiter != nil {
			r.Use(middleware.RateLimit(rt.limiter, errs, rt.logger))
		}
		if rt.validator != nil {
			r.Use(middleware.Authenticate(rt.validator, errs, rt.logger))
		}
		if rt.config.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(rt.config.RequestTimeout))
		}

		documentHandler := handlers.NewDocumentHandler(rt.documents, rt.observer, errs, rt.logger)
		r.Route("/partitions/{partitionKey}/documents", func(r chi.Router) {
			r.Post("/", documentHandler.CreateDocument)
			r.Get("/{documentID}", documentHandler.GetDocument)
			r.Put("/{documentID}", documentHandler.ReplaceDocument)
			r.Post("/{documentID}/observe", documentHandler.ObserveDocument)
		})
	})

	return router
}

// healthCheck handles liveness requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": utils.NowRFC3339(),
	})
}

// readinessCheck pings the document store
func (rt *Router) readinessCheck(errs *pkgerrors.ErrorHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if rt.health != nil {
			if err := rt.health.Ping(req.Context()); err != nil {
				errs.Handle(w, req, pkgerrors.NewTransientError("document store unavailable", err))
				return
			}
		}
		common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
