// Package storetest holds the behavior every ports.DocumentStore driver must
// show when driven through the document store client.
package storetest

import (
	"context"
	"testing"

	"docprobe/application/ports"
	"docprobe/application/services"
	pkgerrors "docprobe/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Factory returns a fresh store for one subtest
type Factory func(t *testing.T) ports.DocumentStore

// Run executes the conformance suite. Keys are random per subtest so the
// suite can run against a shared, long-lived collection.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	newClient := func(t *testing.T) *services.DocumentStoreClient {
		client, err := services.NewDocumentStoreClient(services.ClientConfig{
			Endpoint:         "conformance",
			Credential:       "conformance",
			DatabaseName:     "db",
			CollectionName:   "common",
			KeyPrefix:        "PKProbe_",
			DocumentIDPrefix: "PKProbeDocument_",
		}, newStore(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		return client
	}

	t.Run("create then read", func(t *testing.T) {
		ctx := context.Background()
		c := newClient(t)
		pk, id := uuid.NewString(), uuid.NewString()

		created, err := c.CreateDocument(ctx, pk, id)
		require.NoError(t, err)
		require.NotEmpty(t, created.VersionToken)
		assert.Equal(t, "PKProbe_"+pk, created.PartitionKey)
		assert.Equal(t, "PKProbeDocument_"+id, created.ID)

		got, err := c.GetDocument(ctx, pk, id)
		require.NoError(t, err)
		assert.True(t, created.Equals(got))
	})

	t.Run("second create conflicts and leaves the original", func(t *testing.T) {
		ctx := context.Background()
		c := newClient(t)
		pk, id := uuid.NewString(), uuid.NewString()

		created, err := c.CreateDocument(ctx, pk, id, services.WithTTL(500))
		require.NoError(t, err)

		_, err = c.CreateDocument(ctx, pk, id, services.WithTTL(500))
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err), "got %v", err)
		assert.False(t, pkgerrors.IsRetryable(err))

		got, err := c.GetDocument(ctx, pk, id)
		require.NoError(t, err)
		assert.Equal(t, created.VersionToken, got.VersionToken)
	})

	t.Run("repeated reads are identical", func(t *testing.T) {
		ctx := context.Background()
		c := newClient(t)
		pk, id := uuid.NewString(), uuid.NewString()

		_, err := c.CreateDocument(ctx, pk, id)
		require.NoError(t, err)

		first, err := c.GetDocument(ctx, pk, id)
		require.NoError(t, err)
		second, err := c.GetDocument(ctx, pk, id)
		require.NoError(t, err)
		assert.True(t, first.Equals(second))
	})

	t.Run("read of a missing document", func(t *testing.T) {
		_, err := newClient(t).GetDocument(context.Background(), uuid.NewString(), uuid.NewString())
		assert.True(t, pkgerrors.IsNotFound(err), "got %v", err)
	})

	t.Run("replace is conditional on the version token", func(t *testing.T) {
		ctx := context.Background()
		c := newClient(t)
		pk, id := uuid.NewString(), uuid.NewString()

		created, err := c.CreateDocument(ctx, pk, id)
		require.NoError(t, err)

		replaced, err := c.ReplaceDocument(ctx, created, services.WithTTL(60))
		require.NoError(t, err)
		assert.NotEqual(t, created.VersionToken, replaced.VersionToken)

		_, err = c.ReplaceDocument(ctx, created)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsConflict(err), "got %v", err)
		assert.Equal(t, pkgerrors.CodeVersionMismatch, pkgerrors.GetAppError(err).Code)

		missing := created.Clone()
		missing.ID = "PKProbeDocument_" + uuid.NewString()
		_, err = c.ReplaceDocument(ctx, missing)
		assert.True(t, pkgerrors.IsNotFound(err), "got %v", err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newClient(t).CreateDocument(ctx, uuid.NewString(), uuid.NewString())
		assert.True(t, pkgerrors.IsCancelled(err), "got %v", err)
	})
}
