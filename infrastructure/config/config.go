package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"docprobe/application/probe"
	pkgerrors "docprobe/pkg/errors"
	"docprobe/pkg/utils"
)

// Store backends
const (
	BackendDynamoDB = "dynamodb"
	BackendEtcd     = "etcd"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment" validate:"required"`

	Server         ServerConfig         `yaml:"server"`
	Store          StoreConfig          `yaml:"store"`
	Probe          ProbeConfig          `yaml:"probe"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Logging        LoggingConfig        `yaml:"logging"`
	Reporting      ReportingConfig      `yaml:"reporting"`
	Auth           AuthConfig           `yaml:"auth"`

	// LoadedFrom lists the sources applied, lowest priority first
	LoadedFrom []string `yaml:"-"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address         string        `yaml:"address" validate:"required"`
	EnableCORS      bool          `yaml:"enableCORS"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	RateLimit       int           `yaml:"rateLimit"` // requests per minute per IP, 0 disables
}

// StoreConfig identifies the document collection and how to reach it
type StoreConfig struct {
	Backend          string        `yaml:"backend" validate:"required,oneof=dynamodb etcd memory"`
	Endpoint         string        `yaml:"endpoint" validate:"required"`
	Credential       string        `yaml:"credential" validate:"required"`
	Region           string        `yaml:"region"`
	DatabaseName     string        `yaml:"databaseName" validate:"required"`
	CollectionName   string        `yaml:"collectionName" validate:"required"`
	KeyPrefix        string        `yaml:"keyPrefix"`
	DocumentIDPrefix string        `yaml:"documentIDPrefix"`
	DialTimeout      time.Duration `yaml:"dialTimeout"`
	CertFile         string        `yaml:"certFile"`
	KeyFile          string        `yaml:"keyFile"`
	TrustedCAFile    string        `yaml:"trustedCAFile"`
	SDKMaxAttempts   int           `yaml:"sdkMaxAttempts"`
}

// String renders the store config with the credential redacted
func (s StoreConfig) String() string {
	return fmt.Sprintf("StoreConfig{Backend:%s Endpoint:%s Credential:%s Region:%s DatabaseName:%s CollectionName:%s KeyPrefix:%q DocumentIDPrefix:%q}",
		s.Backend, s.Endpoint, utils.Redact(s.Credential), s.Region, s.DatabaseName, s.CollectionName, s.KeyPrefix, s.DocumentIDPrefix)
}

// GoString keeps %#v from leaking the credential
func (s StoreConfig) GoString() string {
	return s.String()
}

// ProbeConfig configures the sweep
type ProbeConfig struct {
	Sweep probe.SweepConfig `yaml:"sweep"`
	// TTLSeconds applied to probe documents; 0 means no expiry
	TTLSeconds int               `yaml:"ttlSeconds" validate:"gte=0"`
	Retry      probe.RetryConfig `yaml:"retry"`
	Timeout    time.Duration     `yaml:"timeout"`
}

// TTL returns the probe TTL as an option value, nil when unset
func (p ProbeConfig) TTL() *int {
	if p.TTLSeconds <= 0 {
		return nil
	}
	ttl := p.TTLSeconds
	return &ttl
}

// CircuitBreakerConfig configures the store circuit breaker
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	MaxRequests      uint32        `yaml:"maxRequests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold float64       `yaml:"failureThreshold"`
	MinRequests      uint32        `yaml:"minRequests"`
}

// TracingConfig configures span export
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
	Insecure   bool    `yaml:"insecure"`
	// UseXRay records X-Ray subsegments instead of OpenTelemetry spans
	UseXRay bool `yaml:"useXRay"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level         string        `yaml:"level" validate:"oneof=debug info warn error"`
	SlowThreshold time.Duration `yaml:"slowThreshold"`
}

// ReportingConfig enables report publishers; empty values disable them
type ReportingConfig struct {
	CloudWatchNamespace string `yaml:"cloudWatchNamespace"`
	EventBusName        string `yaml:"eventBusName"`
}

// AuthConfig protects the HTTP API with HS256 bearer tokens when
// JWTSecret is set.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
}

// Enabled reports whether bearer tokens are required
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// Defaults returns the configuration used before any file or env overlay
func Defaults() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Address:         ":8080",
			EnableCORS:      true,
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Store: StoreConfig{
			Backend:          BackendMemory,
			Region:           "us-west-2",
			DatabaseName:     "db",
			CollectionName:   "common",
			KeyPrefix:        "PKProbe_",
			DocumentIDPrefix: "PKProbeDocument_",
			DialTimeout:      5 * time.Second,
			SDKMaxAttempts:   1,
		},
		Probe: ProbeConfig{
			Sweep:      probe.DefaultSweepConfig(),
			TTLSeconds: 500,
			Retry:      probe.DefaultRetryConfig(),
			Timeout:    10 * time.Minute,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      5,
			Interval:         30 * time.Second,
			Timeout:          60 * time.Second,
			FailureThreshold: 0.8,
			MinRequests:      5,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "docprobe",
		},
		Logging: LoggingConfig{
			Level:         "info",
			SlowThreshold: time.Second,
		},
		Auth: AuthConfig{
			JWTIssuer: "docprobe",
		},
	}
}

// LoadConfig loads configuration from environment variables over defaults
func LoadConfig() (*Config, error) {
	cfg := Defaults()
	cfg.LoadedFrom = []string{"defaults"}
	applyEnv(cfg)
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")
	cfg.applyBackendDefaults()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays every variable that is set
func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.Server.Address = getEnv("SERVER_ADDRESS", cfg.Server.Address)
	cfg.Server.EnableCORS = getEnvBool("ENABLE_CORS", cfg.Server.EnableCORS)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.Server.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)
	cfg.Server.RateLimit = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.Server.RateLimit)

	cfg.Store.Backend = getEnv("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Endpoint = getEnv("STORE_ENDPOINT", cfg.Store.Endpoint)
	cfg.Store.Credential = getEnv("STORE_CREDENTIAL", cfg.Store.Credential)
	cfg.Store.Region = getEnv("AWS_REGION", cfg.Store.Region)
	cfg.Store.DatabaseName = getEnv("DATABASE_NAME", cfg.Store.DatabaseName)
	cfg.Store.CollectionName = getEnv("COLLECTION_NAME", cfg.Store.CollectionName)
	cfg.Store.KeyPrefix = getEnvAllowEmpty("KEY_PREFIX", cfg.Store.KeyPrefix)
	cfg.Store.DocumentIDPrefix = getEnvAllowEmpty("DOCUMENT_ID_PREFIX", cfg.Store.DocumentIDPrefix)
	cfg.Store.DialTimeout = getEnvDuration("STORE_DIAL_TIMEOUT", cfg.Store.DialTimeout)
	cfg.Store.CertFile = getEnv("ETCD_CERT_FILE", cfg.Store.CertFile)
	cfg.Store.KeyFile = getEnv("ETCD_KEY_FILE", cfg.Store.KeyFile)
	cfg.Store.TrustedCAFile = getEnv("ETCD_TRUSTED_CA_FILE", cfg.Store.TrustedCAFile)
	cfg.Store.SDKMaxAttempts = getEnvInt("STORE_SDK_MAX_ATTEMPTS", cfg.Store.SDKMaxAttempts)

	cfg.Probe.Sweep.MinKeyLength = getEnvInt("PROBE_MIN_KEY_LENGTH", cfg.Probe.Sweep.MinKeyLength)
	cfg.Probe.Sweep.MaxKeyLength = getEnvInt("PROBE_MAX_KEY_LENGTH", cfg.Probe.Sweep.MaxKeyLength)
	cfg.Probe.Sweep.IndicesPerLength = getEnvInt("PROBE_INDICES_PER_LENGTH", cfg.Probe.Sweep.IndicesPerLength)
	cfg.Probe.Sweep.Concurrency = getEnvInt("PROBE_CONCURRENCY", cfg.Probe.Sweep.Concurrency)
	cfg.Probe.TTLSeconds = getEnvInt("PROBE_TTL_SECONDS", cfg.Probe.TTLSeconds)
	cfg.Probe.Retry.MaxAttempts = getEnvInt("PROBE_RETRY_MAX_ATTEMPTS", cfg.Probe.Retry.MaxAttempts)
	cfg.Probe.Retry.BaseDelay = getEnvDuration("PROBE_RETRY_BASE_DELAY", cfg.Probe.Retry.BaseDelay)
	cfg.Probe.Timeout = getEnvDuration("PROBE_TIMEOUT", cfg.Probe.Timeout)

	cfg.CircuitBreaker.Enabled = getEnvBool("ENABLE_CIRCUIT_BREAKER", cfg.CircuitBreaker.Enabled)

	cfg.Tracing.Enabled = getEnvBool("ENABLE_TRACING", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.UseXRay = getEnvBool("ENABLE_XRAY", cfg.Tracing.UseXRay)

	cfg.Metrics.Enabled = getEnvBool("ENABLE_METRICS", cfg.Metrics.Enabled)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.SlowThreshold = getEnvDuration("SLOW_CALL_THRESHOLD", cfg.Logging.SlowThreshold)

	cfg.Reporting.CloudWatchNamespace = getEnv("CLOUDWATCH_NAMESPACE", cfg.Reporting.CloudWatchNamespace)
	cfg.Reporting.EventBusName = getEnv("EVENT_BUS_NAME", cfg.Reporting.EventBusName)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getEnv("JWT_ISSUER", cfg.Auth.JWTIssuer)
}

// applyBackendDefaults lets the memory backend run without connection details
func (c *Config) applyBackendDefaults() {
	if c.Store.Backend != BackendMemory {
		return
	}
	if c.Store.Endpoint == "" {
		c.Store.Endpoint = "memory://local"
	}
	if c.Store.Credential == "" {
		c.Store.Credential = "local:local"
	}
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return pkgerrors.NewValidationError("invalid configuration: " + err.Error())
	}
	if err := utils.ValidateStruct(c.Probe.Sweep); err != nil {
		return pkgerrors.NewValidationError("invalid probe sweep: " + err.Error())
	}
	if c.IsProduction() && c.Store.Backend == BackendMemory {
		return pkgerrors.NewValidationError("memory store backend is not allowed in production")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty distinguishes an unset variable from one set to ""
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration parses values like "500ms" or "2s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
