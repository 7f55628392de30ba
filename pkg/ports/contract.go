package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGraphStoreContract verifies that a GraphStore implementation adheres to
// the interface contract. Adapter test suites call this with a fresh store.
func RunGraphStoreContract(t *testing.T, store GraphStore) {
	ctx := context.Background()
	workspaceID := "contract-ws-" + time.Now().Format("20060102150405")

	t.Run("Write and Read", func(t *testing.T) {
		graph := domain.NewGraph(workspaceID, "root", "Contract", "verify the store", time.Now().UTC())
		require.NoError(t, store.Write(ctx, workspaceID, graph))

		loaded, err := store.Read(ctx, workspaceID)
		require.NoError(t, err)
		assert.Equal(t, graph.RootID, loaded.RootID)
		assert.Len(t, loaded.Nodes, 1)
	})

	t.Run("Read returns a snapshot", func(t *testing.T) {
		loaded, err := store.Read(ctx, workspaceID)
		require.NoError(t, err)

		// Mutating the returned graph must not leak into the store.
		root, err := loaded.Root()
		require.NoError(t, err)
		root.Title = "mutated"

		again, err := store.Read(ctx, workspaceID)
		require.NoError(t, err)
		rootAgain, err := again.Root()
		require.NoError(t, err)
		assert.Equal(t, "Contract", rootAgain.Title)
	})

	t.Run("Read non-existent", func(t *testing.T) {
		_, err := store.Read(ctx, "missing-"+workspaceID)
		assert.ErrorIs(t, err, domain.ErrWorkspaceNotFound)
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, workspaceID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, workspaceID))
		_, err := store.Read(ctx, workspaceID)
		assert.ErrorIs(t, err, domain.ErrWorkspaceNotFound)

		// Deleting again is a no-op.
		assert.NoError(t, store.Delete(ctx, workspaceID))
	})
}
