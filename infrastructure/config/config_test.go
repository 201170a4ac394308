package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "docprobe/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "memory://local", cfg.Store.Endpoint)
	assert.NotEmpty(t, cfg.Store.Credential)
	assert.Equal(t, 500, cfg.Probe.TTLSeconds)
	assert.Equal(t, 75, cfg.Probe.Sweep.MinKeyLength)
	assert.Equal(t, 100, cfg.Probe.Sweep.MaxKeyLength)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "dynamodb")
	t.Setenv("STORE_ENDPOINT", "http://localhost:8000")
	t.Setenv("STORE_CREDENTIAL", "AKIDEXAMPLE:secret")
	t.Setenv("COLLECTION_NAME", "probes")
	t.Setenv("KEY_PREFIX", "")
	t.Setenv("PROBE_TTL_SECONDS", "0")
	t.Setenv("SLOW_CALL_THRESHOLD", "250ms")
	t.Setenv("PROBE_CONCURRENCY", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendDynamoDB, cfg.Store.Backend)
	assert.Equal(t, "probes", cfg.Store.CollectionName)
	assert.Equal(t, "", cfg.Store.KeyPrefix)
	assert.Nil(t, cfg.Probe.TTL())
	assert.Equal(t, 250*time.Millisecond, cfg.Logging.SlowThreshold)
	assert.Equal(t, 1, cfg.Probe.Sweep.Concurrency)
}

func TestLoadConfig_MissingEndpoint(t *testing.T) {
	t.Setenv("STORE_BACKEND", "etcd")
	t.Setenv("STORE_ENDPOINT", "")
	t.Setenv("STORE_CREDENTIAL", "root:pw")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestValidate_RejectsMemoryInProduction(t *testing.T) {
	cfg := Defaults()
	cfg.Environment = "production"
	cfg.applyBackendDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in production")
}

func TestValidate_SweepBounds(t *testing.T) {
	cfg := Defaults()
	cfg.applyBackendDefaults()
	cfg.Probe.Sweep.MaxKeyLength = cfg.Probe.Sweep.MinKeyLength

	assert.Error(t, cfg.Validate())
}

func TestStoreConfig_RedactsCredential(t *testing.T) {
	s := StoreConfig{Backend: BackendEtcd, Endpoint: "localhost:2379", Credential: "root:hunter2"}

	for _, out := range []string{s.String(), fmt.Sprintf("%v", s), fmt.Sprintf("%#v", s)} {
		assert.NotContains(t, out, "hunter2")
		assert.Contains(t, out, "[REDACTED]")
	}
}

func TestLoader_Layering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
store:
  collectionName: base-collection
  databaseName: probe-db
probe:
  ttlSeconds: 60
  sweep:
    minKeyLength: 10
    maxKeyLength: 12
logging:
  slowThreshold: 2s
`)
	writeFile(t, dir, "staging.yml", `
store:
  backend: etcd
  endpoint: etcd-0:2379,etcd-1:2379
  credential: root:pw
  collectionName: staging-collection
`)
	t.Setenv("DATABASE_NAME", "from-env")

	cfg, err := NewLoader(dir, "staging").Load()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, BackendEtcd, cfg.Store.Backend)
	assert.Equal(t, "staging-collection", cfg.Store.CollectionName)
	assert.Equal(t, "from-env", cfg.Store.DatabaseName)
	assert.Equal(t, 60, cfg.Probe.TTLSeconds)
	assert.Equal(t, 10, cfg.Probe.Sweep.MinKeyLength)
	assert.Equal(t, 10, cfg.Probe.Sweep.IndicesPerLength)
	assert.Equal(t, 2*time.Second, cfg.Logging.SlowThreshold)
	assert.Equal(t, []string{
		"defaults",
		filepath.Join(dir, "base.yaml"),
		filepath.Join(dir, "staging.yml"),
		"environment",
	}, cfg.LoadedFrom)
}

func TestLoader_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "store: [unclosed")

	_, err := NewLoader(dir, "development").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoader_MissingDirUsesDefaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent"), "development").Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "logging:\n  level: info\n")

	loader := NewLoader(dir, "development")
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := NewWatcher(loader, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	levels := make(chan string, 4)
	w.OnChange(func(c *Config) { levels <- c.Logging.Level })

	writeFile(t, dir, "base.yaml", "logging:\n  level: debug\n")

	select {
	case level := <-levels:
		assert.Equal(t, "debug", level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
	assert.Equal(t, "debug", w.Current().Logging.Level)
}

func TestWatcher_KeepsPreviousOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "logging:\n  level: info\n")

	loader := NewLoader(dir, "development")
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := NewWatcher(loader, initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	called := make(chan struct{}, 1)
	w.OnChange(func(*Config) { called <- struct{}{} })

	writeFile(t, dir, "base.yaml", "logging:\n  level: verbose\n")

	select {
	case <-called:
		t.Fatal("invalid configuration was applied")
	case <-time.After(2 * reloadDebounce):
	}
	assert.Same(t, initial, w.Current())
}
