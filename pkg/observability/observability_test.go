package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsStoreOperations(t *testing.T) {
	c := NewCollector("test")

	c.RecordStoreOperation("Write", "ok", 10*time.Millisecond)
	c.RecordStoreOperation("Write", "conflict", 5*time.Millisecond)
	c.RecordStoreOperation("Write", "conflict", 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("Write", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("Write", "conflict")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")

	a.RecordProbeAttempt("created")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ProbeAttempts.WithLabelValues("created")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ProbeAttempts.WithLabelValues("created")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	c.SetBreakerState("store", 2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `test_circuit_breaker_state{name="store"} 2`)
}

func TestInitTracing_DisabledIsNoop(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	require.NoError(t, err)

	ctx, span := tp.Start(context.Background(), "Write", map[string]string{"operation": "Write"})
	assert.NotNil(t, ctx)
	span.End(errors.New("boom"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestXRayTracer_WithoutSegmentIsNoop(t *testing.T) {
	tracer := NewXRayTracer("docprobe")

	ctx, span := tracer.Start(context.Background(), "Read", nil)
	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() { span.End(nil) })
}
