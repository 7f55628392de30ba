package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

func TestStoreContract(t *testing.T) {
	ports.RunGraphStoreContract(t, NewStore())
}

func TestStoreWriteIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	g := domain.NewGraph("ws", "root", "Build", "ship it", time.Now().UTC())
	require.NoError(t, store.Write(ctx, "ws", g))

	// Mutating the graph after Write must not affect the stored copy.
	g.Nodes["root"].Title = "mutated"

	loaded, err := store.Read(ctx, "ws")
	require.NoError(t, err)
	require.Equal(t, "Build", loaded.Nodes["root"].Title)
}

func TestStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	g := domain.NewGraph("ws", "root", "Build", "ship it", time.Now().UTC())
	require.NoError(t, store.Write(ctx, "ws", g))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Write(ctx, "ws", g)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.Read(ctx, "ws")
		}()
	}
	wg.Wait()
}
