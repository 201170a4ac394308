package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"docprobe/infrastructure/persistence/memory"
	pkgerrors "docprobe/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(prefix string) ClientConfig {
	return ClientConfig{
		Endpoint:       "memory://local",
		Credential:     "key:secret",
		DatabaseName:   "db",
		CollectionName: "common",
		KeyPrefix:      prefix,
	}
}

func newTestClient(t *testing.T, prefix string) (*DocumentStoreClient, *memory.DocumentStore) {
	t.Helper()
	store := memory.NewDocumentStore()
	client, err := NewDocumentStoreClient(testConfig(prefix), store, zap.NewNop())
	require.NoError(t, err)
	return client, store
}

func TestNewDocumentStoreClient_RequiresConfig(t *testing.T) {
	cfg := testConfig("")
	cfg.CollectionName = ""

	_, err := NewDocumentStoreClient(cfg, memory.NewDocumentStore(), nil)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewDocumentStoreClient(testConfig(""), nil, nil)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestClientConfig_RedactsCredential(t *testing.T) {
	cfg := testConfig("")
	cfg.Credential = "AKIAEXAMPLE:supersecret"

	assert.NotContains(t, cfg.String(), "supersecret")
	assert.NotContains(t, fmt.Sprintf("%v", cfg), "supersecret")
	assert.NotContains(t, fmt.Sprintf("%#v", cfg), "supersecret")
	assert.Contains(t, cfg.String(), "[REDACTED]")
}

func TestCreateConflictGetScenario(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, "")

	created, err := client.CreateDocument(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a", created.PartitionKey)
	assert.Equal(t, "b", created.ID)
	require.NotEmpty(t, created.VersionToken)

	_, err = client.CreateDocument(ctx, "a", "b")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.False(t, pkgerrors.IsRetryable(err))

	got, err := client.GetDocument(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, created.VersionToken, got.VersionToken)
	assert.True(t, created.Equals(got))
}

func TestCreateDocument_DerivesPrefixedKeys(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, "PKProbe_")

	doc, err := client.CreateDocument(ctx, "pk", "id", WithTTL(500))
	require.NoError(t, err)
	assert.Equal(t, "PKProbe_pk", doc.PartitionKey)
	assert.Equal(t, "PKProbe_id", doc.ID)
	require.NotNil(t, doc.TimeToLiveSeconds)
	assert.Equal(t, 500, *doc.TimeToLiveSeconds)

	got, err := client.GetDocument(ctx, "pk", "id")
	require.NoError(t, err)
	assert.Equal(t, doc.Key(), got.Key())
}

func TestCreateDocument_DistinctDocumentIDPrefix(t *testing.T) {
	cfg := testConfig("PK_")
	cfg.DocumentIDPrefix = "DOC_"
	client, err := NewDocumentStoreClient(cfg, memory.NewDocumentStore(), nil)
	require.NoError(t, err)

	doc, err := client.CreateDocument(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "PK_a", doc.PartitionKey)
	assert.Equal(t, "DOC_b", doc.ID)
}

func TestCreateDocument_InvalidTTLNeverReachesStore(t *testing.T) {
	for _, ttl := range []int{0, -1, -500} {
		t.Run(fmt.Sprint(ttl), func(t *testing.T) {
			client, store := newTestClient(t, "")

			_, err := client.CreateDocument(context.Background(), "a", "b", WithTTL(ttl))
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
			assert.Equal(t, 0, store.Calls("Write"))
		})
	}
}

func TestCreateDocument_EmptyKeys(t *testing.T) {
	client, store := newTestClient(t, "")

	_, err := client.CreateDocument(context.Background(), "", "b")
	assert.True(t, pkgerrors.IsValidation(err))
	_, err = client.GetDocument(context.Background(), "a", "")
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, 0, store.Calls("Write"))
	assert.Equal(t, 0, store.Calls("Read"))

	// with a prefix the derived key is never empty
	prefixed, _ := newTestClient(t, "P_")
	_, err = prefixed.CreateDocument(context.Background(), "", "")
	assert.NoError(t, err)
}

func TestGetDocument_Idempotent(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, "")

	_, err := client.CreateDocument(ctx, "a", "b")
	require.NoError(t, err)

	first, err := client.GetDocument(ctx, "a", "b")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := client.GetDocument(ctx, "a", "b")
		require.NoError(t, err)
		assert.True(t, first.Equals(again))
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	client, _ := newTestClient(t, "")

	_, err := client.GetDocument(context.Background(), "missing", "doc")
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, "GetDocument", pkgerrors.GetAppError(err).Operation)
}

func TestCreateDocument_MissingCollection(t *testing.T) {
	client, store := newTestClient(t, "")
	store.Drop()

	_, err := client.CreateDocument(context.Background(), "a", "b")
	assert.ErrorIs(t, err, &pkgerrors.AppError{Type: pkgerrors.ErrorTypeNotFound, Code: pkgerrors.CodeCollectionNotFound})
	assert.Error(t, client.Ping(context.Background()))
}

func TestCreateDocument_CancelledContext(t *testing.T) {
	client, store := newTestClient(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CreateDocument(ctx, "a", "b")
	assert.True(t, pkgerrors.IsCancelled(err))
	assert.Equal(t, 0, store.Calls("Write"))
}

func TestCreateDocument_DriverErrorsPassThroughTyped(t *testing.T) {
	tests := []struct {
		name   string
		inject error
		check  func(error) bool
	}{
		{"transient", pkgerrors.NewTransientError("throttled", nil), pkgerrors.IsTransient},
		{"auth", pkgerrors.NewAuthError("bad key"), pkgerrors.IsAuth},
		{"unclassified", errors.New("driver bug"), pkgerrors.IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, store := newTestClient(t, "")
			store.SetError("Write", tt.inject)

			_, err := client.CreateDocument(context.Background(), "a", "b")
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestReplaceDocument(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t, "")

	created, err := client.CreateDocument(ctx, "a", "b", WithTTL(60))
	require.NoError(t, err)

	replaced, err := client.ReplaceDocument(ctx, created, WithTTL(120))
	require.NoError(t, err)
	assert.NotEqual(t, created.VersionToken, replaced.VersionToken)
	assert.Equal(t, 120, *replaced.TimeToLiveSeconds)

	_, err = client.ReplaceDocument(ctx, created)
	assert.True(t, pkgerrors.IsConflict(err))

	noToken := created.Clone()
	noToken.VersionToken = ""
	_, err = client.ReplaceDocument(ctx, noToken)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = client.ReplaceDocument(ctx, nil)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = client.ReplaceDocument(ctx, replaced, WithTTL(0))
	assert.True(t, pkgerrors.IsValidation(err))

	got, err := client.GetDocument(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, replaced.VersionToken, got.VersionToken)
}
