package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Registry manages the reference lifecycle on nodes: add, remove, expire,
// activate. Expiry is monotonic; only an explicit activate brings a
// reference back.
type Registry struct {
	store  ports.GraphStore
	logger *slog.Logger
	now    func() time.Time
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets a structured logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithRegistryClock overrides the time source (tests).
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry creates the reference registry with its graph store.
func NewRegistry(store ports.GraphStore, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:  store,
		logger: logging.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add attaches a reference to a node. A second active reference to the same
// target on the same node is rejected with domain.ErrReferenceExists.
func (r *Registry) Add(ctx context.Context, workspaceID, nodeID, target, description string) (*domain.Node, error) {
	if target == "" {
		return nil, fmt.Errorf("reference target must not be empty: %w", domain.ErrValidation)
	}

	graph, err := r.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}

	for _, ref := range node.References {
		if ref.Target == target && ref.Status == domain.ReferenceActive {
			return nil, fmt.Errorf("target %q: %w", target, domain.ErrReferenceExists)
		}
	}

	now := r.now()
	node.References = append(node.References, domain.Reference{
		Target:      target,
		Description: description,
		Status:      domain.ReferenceActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	node.UpdatedAt = now
	graph.UpdatedAt = now

	if err := r.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	r.logger.Debug("reference added", "workspace", workspaceID, "node", nodeID, "target", target)
	return node, nil
}

// Remove detaches a reference entirely, regardless of status.
func (r *Registry) Remove(ctx context.Context, workspaceID, nodeID, target string) (*domain.Node, error) {
	graph, err := r.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}

	index := -1
	for i, ref := range node.References {
		if ref.Target == target {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("target %q: %w", target, domain.ErrReferenceNotFound)
	}

	now := r.now()
	node.References = append(node.References[:index], node.References[index+1:]...)
	node.UpdatedAt = now
	graph.UpdatedAt = now

	if err := r.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	r.logger.Debug("reference removed", "workspace", workspaceID, "node", nodeID, "target", target)
	return node, nil
}

// Expire flips a reference to expired. Expiring an already-expired
// reference is a no-op success and does not touch UpdatedAt.
func (r *Registry) Expire(ctx context.Context, workspaceID, nodeID, target string) (*domain.Node, error) {
	return r.setStatus(ctx, workspaceID, nodeID, target, domain.ReferenceExpired)
}

// Activate flips a reference back to active. Activating an already-active
// reference is a no-op success and does not touch UpdatedAt.
func (r *Registry) Activate(ctx context.Context, workspaceID, nodeID, target string) (*domain.Node, error) {
	return r.setStatus(ctx, workspaceID, nodeID, target, domain.ReferenceActive)
}

func (r *Registry) setStatus(ctx context.Context, workspaceID, nodeID, target string, status domain.ReferenceStatus) (*domain.Node, error) {
	graph, err := r.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}

	index := -1
	for i, ref := range node.References {
		if ref.Target == target {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("target %q: %w", target, domain.ErrReferenceNotFound)
	}

	if node.References[index].Status == status {
		// Idempotent flip: success without a write.
		return node, nil
	}

	now := r.now()
	node.References[index].Status = status
	node.References[index].UpdatedAt = now
	node.UpdatedAt = now
	graph.UpdatedAt = now

	if err := r.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	r.logger.Debug("reference status changed", "workspace", workspaceID, "node", nodeID, "target", target, "status", status)
	return node, nil
}
