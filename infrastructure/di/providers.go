package di

import (
	"context"
	"fmt"

	"docprobe/application/ports"
	"docprobe/application/probe"
	"docprobe/application/services"
	"docprobe/infrastructure/config"
	"docprobe/infrastructure/persistence/decorators"
	"docprobe/infrastructure/persistence/dynamodb"
	"docprobe/infrastructure/persistence/etcd"
	"docprobe/infrastructure/persistence/memory"
	"docprobe/infrastructure/reporting"
	"docprobe/interfaces/http/rest"
	"docprobe/pkg/auth"
	"docprobe/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

const serviceName = "docprobe"

// DriverStore is the undecorated backend selected by configuration
type DriverStore struct {
	ports.DocumentStore
}

// ProvideLogLevel parses the configured level into a level that can be
// changed while the process runs.
func ProvideLogLevel(cfg *config.Config) (zap.AtomicLevel, error) {
	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid log level: %w", err)
	}
	return level, nil
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config, level zap.AtomicLevel) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideCollector creates the Prometheus collector, or nil when metrics are off
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

// ProvideTracer returns an X-Ray tracer, an OpenTelemetry tracer, or nil
// when tracing is off.
func ProvideTracer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (observability.Tracer, func(), error) {
	if cfg.Tracing.UseXRay {
		return observability.NewXRayTracer(serviceName), func() {}, nil
	}
	if !cfg.Tracing.Enabled {
		return nil, func() {}, nil
	}

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     true,
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// ProvideDriverStore connects to the configured backend
func ProvideDriverStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (DriverStore, func(), error) {
	var store ports.DocumentStore

	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		client, err := dynamodb.NewClient(ctx, dynamodb.ClientOptions{
			Endpoint:    cfg.Store.Endpoint,
			Region:      cfg.Store.Region,
			Credential:  cfg.Store.Credential,
			MaxAttempts: cfg.Store.SDKMaxAttempts,
		})
		if err != nil {
			return DriverStore{}, nil, err
		}
		store = dynamodb.NewDocumentStore(client, dynamodb.TableName(cfg.Store.DatabaseName, cfg.Store.CollectionName), logger)

	case config.BackendEtcd:
		client, err := etcd.NewClient(ctx, etcd.ClientOptions{
			Endpoints:     cfg.Store.Endpoint,
			Credential:    cfg.Store.Credential,
			CertFile:      cfg.Store.CertFile,
			KeyFile:       cfg.Store.KeyFile,
			TrustedCAFile: cfg.Store.TrustedCAFile,
			DialTimeout:   cfg.Store.DialTimeout,
		}, logger)
		if err != nil {
			return DriverStore{}, nil, err
		}
		store = etcd.NewDocumentStore(client, cfg.Store.DatabaseName, cfg.Store.CollectionName, logger)

	case config.BackendMemory:
		store = memory.NewDocumentStore()

	default:
		return DriverStore{}, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Info("Document store configured", zap.Stringer("store", cfg.Store))

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close document store", zap.Error(err))
		}
	}
	return DriverStore{store}, cleanup, nil
}

// ProvideDocumentStore wraps the driver with the configured decorators
func ProvideDocumentStore(
	driver DriverStore,
	cfg *config.Config,
	logger *zap.Logger,
	collector *observability.Collector,
	tracer observability.Tracer,
) ports.DocumentStore {
	chain := decorators.ChainConfig{
		Logger:        logger,
		SlowThreshold: cfg.Logging.SlowThreshold,
		Collector:     collector,
		Tracer:        tracer,
	}
	if cb := cfg.CircuitBreaker; cb.Enabled {
		chain.CircuitBreaker = &decorators.CircuitBreakerConfig{
			Name:             cfg.Store.Backend,
			MaxRequests:      cb.MaxRequests,
			Interval:         cb.Interval,
			Timeout:          cb.Timeout,
			FailureThreshold: cb.FailureThreshold,
			MinRequests:      cb.MinRequests,
		}
	}
	return decorators.Chain(driver.DocumentStore, chain)
}

// ProvideClientConfig extracts the client settings
func ProvideClientConfig(cfg *config.Config) services.ClientConfig {
	return services.ClientConfig{
		Endpoint:         cfg.Store.Endpoint,
		Credential:       cfg.Store.Credential,
		DatabaseName:     cfg.Store.DatabaseName,
		CollectionName:   cfg.Store.CollectionName,
		KeyPrefix:        cfg.Store.KeyPrefix,
		DocumentIDPrefix: cfg.Store.DocumentIDPrefix,
	}
}

// ProvideDocumentStoreClient creates the document store client
func ProvideDocumentStoreClient(clientCfg services.ClientConfig, store ports.DocumentStore, logger *zap.Logger) (*services.DocumentStoreClient, error) {
	return services.NewDocumentStoreClient(clientCfg, store, logger)
}

// ProvideProber creates the conflict-then-verify prober
func ProvideProber(client *services.DocumentStoreClient, cfg *config.Config, logger *zap.Logger, collector *observability.Collector) *probe.Prober {
	var recorder probe.OutcomeRecorder
	if collector != nil {
		recorder = collector
	}
	return probe.NewProber(client, probe.Config{
		TTLSeconds: cfg.Probe.TTL(),
		Retry:      cfg.Probe.Retry,
	}, logger, recorder)
}

// ProvideSweeper creates the key length sweeper
func ProvideSweeper(prober *probe.Prober, client *services.DocumentStoreClient, cfg *config.Config, logger *zap.Logger) *probe.Sweeper {
	return probe.NewSweeper(prober, client.Keyspace(), cfg.Probe.Sweep, logger)
}

// ProvideAWSConfig creates AWS configuration for the reporting clients
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Store.Region),
	)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvidePublishers returns the report publishers enabled by configuration
func ProvidePublishers(
	cfg *config.Config,
	cw *awscloudwatch.Client,
	eb *awseventbridge.Client,
	logger *zap.Logger,
) probe.Publishers {
	var publishers probe.Publishers
	if ns := cfg.Reporting.CloudWatchNamespace; ns != "" {
		publishers = append(publishers, reporting.NewCloudWatchPublisher(cw, ns, cfg.Store.CollectionName, logger))
	}
	if bus := cfg.Reporting.EventBusName; bus != "" {
		publishers = append(publishers, reporting.NewEventBridgePublisher(eb, bus, logger))
	}
	return publishers
}

// ProvideJWTValidator returns a validator, or nil when auth is off
func ProvideJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	if !cfg.Auth.Enabled() {
		return nil, nil
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     cfg.Auth.JWTSecret,
		Issuer:        cfg.Auth.JWTIssuer,
	})
}

// ProvideRateLimiter returns a per-IP limiter, or nil when unlimited. Idle
// client keys are pruned in the background until cleanup runs.
func ProvideRateLimiter(cfg *config.Config) (auth.RateLimiter, func()) {
	if cfg.Server.RateLimit <= 0 {
		return nil, func() {}
	}
	limiter := auth.NewIPRateLimiter(cfg.Server.RateLimit)
	stop := limiter.StartPruning(auth.DefaultPruneInterval)
	return limiter, stop
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	client *services.DocumentStoreClient,
	prober *probe.Prober,
	collector *observability.Collector,
	validator *auth.JWTValidator,
	limiter auth.RateLimiter,
	logger *zap.Logger,
) *rest.Router {
	opts := []rest.RouterOption{}
	if collector != nil {
		opts = append(opts, rest.WithMetrics(collector))
	}
	if validator != nil {
		opts = append(opts, rest.WithAuth(validator))
	}
	if limiter != nil {
		opts = append(opts, rest.WithRateLimit(limiter))
	}

	return rest.NewRouter(rest.RouterConfig{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		Debug:          cfg.IsDevelopment(),
	}, client, prober, client, logger, opts...)
}
