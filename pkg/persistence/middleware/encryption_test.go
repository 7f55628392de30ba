package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
)

func testGraph() *domain.Graph {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g := domain.NewGraph("ws", "root", "Secret project", "Contact alice@example.com", now)
	return g
}

func key(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestEncryptionRoundTrip(t *testing.T) {
	inner := memory.NewStore()
	store := middleware.Chain(inner, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey: key('a'),
	}))
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "ws", testGraph()))

	g, err := store.Read(ctx, "ws")
	require.NoError(t, err)
	root, err := g.Root()
	require.NoError(t, err)
	assert.Equal(t, "Secret project", root.Title)
}

func TestStoredRecordHoldsNoPlaintext(t *testing.T) {
	inner := memory.NewStore()
	store := middleware.Chain(inner, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey: key('a'),
	}))
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "ws", testGraph()))

	envelope, err := inner.Read(ctx, "ws")
	require.NoError(t, err)
	assert.NotEmpty(t, envelope.Sealed)
	assert.Empty(t, envelope.Nodes)

	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Secret project")
	assert.NotContains(t, string(raw), "alice@example.com")
}

func TestDecryptionWithRotatedKey(t *testing.T) {
	inner := memory.NewStore()
	ctx := context.Background()

	oldStore := middleware.Chain(inner, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey: key('a'),
	}))
	require.NoError(t, oldStore.Write(ctx, "ws", testGraph()))

	// New active key, old key demoted to fallback.
	newStore := middleware.Chain(inner, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    key('b'),
		FallbackKeys: [][]byte{key('a')},
	}))
	g, err := newStore.Read(ctx, "ws")
	require.NoError(t, err)
	assert.Equal(t, "ws", g.WorkspaceID)

	// Without the fallback the record is unreadable.
	wrongStore := middleware.Chain(inner, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey: key('b'),
	}))
	_, err = wrongStore.Read(ctx, "ws")
	assert.ErrorIs(t, err, domain.ErrGraphCorrupted)
}

func TestReadRejectsUnsealedRecord(t *testing.T) {
	inner := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, inner.Write(ctx, "ws", testGraph()))

	store := middleware.Chain(inner, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey: key('a'),
	}))
	_, err := store.Read(ctx, "ws")
	assert.ErrorIs(t, err, domain.ErrGraphCorrupted)
}

func TestEncryptionPanicsOnShortKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	})
}
