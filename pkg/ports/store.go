package ports

import (
	"context"

	"github.com/aretw0/arbor/pkg/domain"
)

// GraphStore is the durable, authoritative mapping of workspace id to graph.
// Read returns a snapshot the caller may mutate freely; Write atomically
// replaces the whole graph (temp-write + rename semantics expected from
// file-backed implementations).
//
// Read returns domain.ErrWorkspaceNotFound for unknown ids and
// domain.ErrGraphCorrupted when the stored record cannot be parsed.
type GraphStore interface {
	Read(ctx context.Context, workspaceID string) (*domain.Graph, error)
	Write(ctx context.Context, workspaceID string, graph *domain.Graph) error

	// Delete removes the workspace record. Deleting an unknown id is not
	// an error.
	Delete(ctx context.Context, workspaceID string) error

	// List returns the known workspace ids.
	List(ctx context.Context) ([]string, error)
}
