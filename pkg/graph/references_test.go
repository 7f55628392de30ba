package graph_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/graph"
)

func newRegistry(t *testing.T) (*graph.Registry, *memory.Store, string) {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g := domain.NewGraph("ws", "root", "Root", "", now)
	require.NoError(t, store.Write(context.Background(), "ws", g))

	registry := graph.NewRegistry(store,
		graph.WithRegistryClock(func() time.Time { return now.Add(time.Hour) }),
	)
	return registry, store, "root"
}

func TestAddReference(t *testing.T) {
	registry, _, nodeID := newRegistry(t)
	ctx := context.Background()

	node, err := registry.Add(ctx, "ws", nodeID, "docs/api.md", "API contract")
	require.NoError(t, err)
	require.Len(t, node.References, 1)
	assert.Equal(t, domain.ReferenceActive, node.References[0].Status)
	assert.Equal(t, "API contract", node.References[0].Description)
}

func TestAddRejectsDuplicateActiveTarget(t *testing.T) {
	registry, _, nodeID := newRegistry(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, "ws", nodeID, "docs/api.md", "")
	require.NoError(t, err)

	_, err = registry.Add(ctx, "ws", nodeID, "docs/api.md", "")
	assert.ErrorIs(t, err, domain.ErrReferenceExists)
}

func TestAddAfterExpiryIsAllowed(t *testing.T) {
	registry, _, nodeID := newRegistry(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, "ws", nodeID, "docs/api.md", "")
	require.NoError(t, err)
	_, err = registry.Expire(ctx, "ws", nodeID, "docs/api.md")
	require.NoError(t, err)

	node, err := registry.Add(ctx, "ws", nodeID, "docs/api.md", "v2")
	require.NoError(t, err)
	assert.Len(t, node.References, 2)
}

func TestAddRejectsEmptyTarget(t *testing.T) {
	registry, _, nodeID := newRegistry(t)

	_, err := registry.Add(context.Background(), "ws", nodeID, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRemoveReference(t *testing.T) {
	registry, _, nodeID := newRegistry(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, "ws", nodeID, "docs/api.md", "")
	require.NoError(t, err)

	node, err := registry.Remove(ctx, "ws", nodeID, "docs/api.md")
	require.NoError(t, err)
	assert.Empty(t, node.References)

	_, err = registry.Remove(ctx, "ws", nodeID, "docs/api.md")
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
}

func TestExpireAndActivate(t *testing.T) {
	registry, _, nodeID := newRegistry(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, "ws", nodeID, "docs/api.md", "")
	require.NoError(t, err)

	node, err := registry.Expire(ctx, "ws", nodeID, "docs/api.md")
	require.NoError(t, err)
	assert.Equal(t, domain.ReferenceExpired, node.References[0].Status)
	assert.Empty(t, node.ActiveReferences())

	node, err = registry.Activate(ctx, "ws", nodeID, "docs/api.md")
	require.NoError(t, err)
	assert.Equal(t, domain.ReferenceActive, node.References[0].Status)
}

func TestExpireIsIdempotent(t *testing.T) {
	registry, store, nodeID := newRegistry(t)
	ctx := context.Background()

	_, err := registry.Add(ctx, "ws", nodeID, "docs/api.md", "")
	require.NoError(t, err)
	_, err = registry.Expire(ctx, "ws", nodeID, "docs/api.md")
	require.NoError(t, err)

	before, err := store.Read(ctx, "ws")
	require.NoError(t, err)
	stamp := before.Nodes[nodeID].References[0].UpdatedAt

	// Second expiry succeeds without touching timestamps.
	_, err = registry.Expire(ctx, "ws", nodeID, "docs/api.md")
	require.NoError(t, err)

	after, err := store.Read(ctx, "ws")
	require.NoError(t, err)
	assert.Equal(t, stamp, after.Nodes[nodeID].References[0].UpdatedAt)
	assert.Equal(t, domain.ReferenceExpired, after.Nodes[nodeID].References[0].Status)
}

func TestExpireUnknownTarget(t *testing.T) {
	registry, _, nodeID := newRegistry(t)

	_, err := registry.Expire(context.Background(), "ws", nodeID, "ghost.md")
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
}
