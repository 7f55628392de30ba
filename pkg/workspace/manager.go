// Package workspace serializes access to workspace graphs and exposes the
// full operation surface consumed by the CLI, HTTP and MCP adapters.
//
// The graph store works on whole-graph read-modify-write cycles, which are
// not safe under concurrent writers. The Manager guarantees one in-flight
// mutating operation per workspace within the process, and optionally
// across replicas via a distributed locker.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/dispatch"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/graph"
	"github.com/aretw0/arbor/pkg/ports"
)

// lockTTL bounds distributed lock ownership; a crashed holder expires.
const lockTTL = 30 * time.Second

// lockEntry holds the mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager owns the per-workspace locks and routes operations to the
// lifecycle, registry, resolver and dispatch services.
type Manager struct {
	store       ports.GraphStore
	lifecycle   *graph.Lifecycle
	registry    *graph.Registry
	resolver    *graph.Resolver
	coordinator *dispatch.Coordinator

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.WorkspaceLocker
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.WorkspaceLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager wires the manager with its services. vcs may be nil when git
// dispatch is not used.
func NewManager(store ports.GraphStore, vcs ports.VCS, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lifecycle = graph.NewLifecycle(store, graph.WithLogger(m.logger))
	m.registry = graph.NewRegistry(store, graph.WithRegistryLogger(m.logger))
	m.resolver = graph.NewResolver(store)
	m.coordinator = dispatch.NewCoordinator(store, vcs, dispatch.WithLogger(m.logger))
	return m
}

// acquire gets or creates a lock entry and bumps its reference count.
func (m *Manager) acquire(workspaceID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[workspaceID]
	if !exists {
		entry = &lockEntry{}
		m.locks[workspaceID] = entry
	}
	entry.refs++
	return entry
}

// release drops the reference count and garbage collects unused entries.
func (m *Manager) release(workspaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[workspaceID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, workspaceID)
	}
}

// withLock runs fn while holding the workspace lock (and the distributed
// lock when configured).
func (m *Manager) withLock(ctx context.Context, workspaceID string, fn func(context.Context) error) error {
	entry := m.acquire(workspaceID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(workspaceID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, workspaceID, lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire workspace lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("failed to release workspace lock (will expire via TTL)",
					"workspace", workspaceID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Init creates a workspace with a planning root node.
func (m *Manager) Init(ctx context.Context, workspaceID, title, requirement string) (*domain.Graph, error) {
	var result *domain.Graph
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.lifecycle.Init(ctx, workspaceID, title, requirement)
		return err
	})
	return result, err
}

// Graph returns the full workspace graph snapshot (read-only callers:
// rendering, introspection).
func (m *Manager) Graph(ctx context.Context, workspaceID string) (*domain.Graph, error) {
	return m.store.Read(ctx, workspaceID)
}

// List returns the known workspace ids.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// CreateNode adds a node under a planning parent.
func (m *Manager) CreateNode(ctx context.Context, workspaceID string, req graph.CreateRequest) (*domain.Node, error) {
	var result *domain.Node
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.lifecycle.Create(ctx, workspaceID, req)
		return err
	})
	return result, err
}

// GetNode returns a single node.
func (m *Manager) GetNode(ctx context.Context, workspaceID, nodeID string) (*domain.Node, error) {
	return m.lifecycle.Get(ctx, workspaceID, nodeID)
}

// Transition applies a lifecycle action.
func (m *Manager) Transition(ctx context.Context, workspaceID, nodeID string, req graph.TransitionRequest) (*domain.Node, error) {
	var result *domain.Node
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.lifecycle.Transition(ctx, workspaceID, nodeID, req)
		return err
	})
	return result, err
}

// Split carves a new execution child out of a node mid-execution.
func (m *Manager) Split(ctx context.Context, workspaceID, parentID string, req graph.SplitRequest) (*domain.Node, error) {
	var result *domain.Node
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.lifecycle.Split(ctx, workspaceID, parentID, req)
		return err
	})
	return result, err
}

// Move reparents a node.
func (m *Manager) Move(ctx context.Context, workspaceID, nodeID, newParentID string) (*domain.Node, error) {
	var result *domain.Node
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.lifecycle.Move(ctx, workspaceID, nodeID, newParentID)
		return err
	})
	return result, err
}

// Delete removes a node and its subtree, returning the removed ids.
func (m *Manager) Delete(ctx context.Context, workspaceID, nodeID string) ([]string, error) {
	var result []string
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.lifecycle.Delete(ctx, workspaceID, nodeID)
		return err
	})
	return result, err
}

// SetIsolate toggles the context boundary flag.
func (m *Manager) SetIsolate(ctx context.Context, workspaceID, nodeID string, value bool) (*domain.Node, error) {
	var result *domain.Node
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.lifecycle.SetIsolate(ctx, workspaceID, nodeID, value)
		return err
	})
	return result, err
}

// ReferenceOp selects a reference sub-operation.
type ReferenceOp string

const (
	ReferenceAdd      ReferenceOp = "add"
	ReferenceRemove   ReferenceOp = "remove"
	ReferenceExpire   ReferenceOp = "expire"
	ReferenceActivate ReferenceOp = "activate"
)

// ReferenceRequest is the payload of the node_reference operation.
type ReferenceRequest struct {
	Op          ReferenceOp
	Target      string
	Description string
}

// Reference applies one reference sub-operation to a node.
func (m *Manager) Reference(ctx context.Context, workspaceID, nodeID string, req ReferenceRequest) (*domain.Node, error) {
	var result *domain.Node
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		switch req.Op {
		case ReferenceAdd:
			result, err = m.registry.Add(ctx, workspaceID, nodeID, req.Target, req.Description)
		case ReferenceRemove:
			result, err = m.registry.Remove(ctx, workspaceID, nodeID, req.Target)
		case ReferenceExpire:
			result, err = m.registry.Expire(ctx, workspaceID, nodeID, req.Target)
		case ReferenceActivate:
			result, err = m.registry.Activate(ctx, workspaceID, nodeID, req.Target)
		default:
			err = fmt.Errorf("unknown reference op %q: %w", req.Op, domain.ErrValidation)
		}
		return err
	})
	return result, err
}

// Context assembles executor context for a node. Pure read; runs without
// the workspace lock against a single consistent snapshot.
func (m *Manager) Context(ctx context.Context, workspaceID, nodeID string) (*domain.NodeContext, error) {
	return m.resolver.Resolve(ctx, workspaceID, nodeID)
}

// DispatchEnable turns dispatch on, optionally git-backed.
func (m *Manager) DispatchEnable(ctx context.Context, workspaceID string, useGit bool) (*domain.DispatchConfig, error) {
	var result *domain.DispatchConfig
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.coordinator.Enable(ctx, workspaceID, useGit)
		return err
	})
	return result, err
}

// DispatchQuery reports the pending reconciliation work.
func (m *Manager) DispatchQuery(ctx context.Context, workspaceID string) (*dispatch.Report, error) {
	return m.coordinator.Query(ctx, workspaceID)
}

// DispatchDisable reconciles and tears down dispatch state.
func (m *Manager) DispatchDisable(ctx context.Context, workspaceID string, req dispatch.DisableRequest) (*dispatch.DisableResult, error) {
	var result *dispatch.DisableResult
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.coordinator.Disable(ctx, workspaceID, req)
		return err
	})
	return result, err
}

// DispatchSwitchMode moves between git and non-git dispatch.
func (m *Manager) DispatchSwitchMode(ctx context.Context, workspaceID string, useGit bool) (*domain.DispatchConfig, error) {
	var result *domain.DispatchConfig
	err := m.withLock(ctx, workspaceID, func(ctx context.Context) error {
		var err error
		result, err = m.coordinator.SwitchMode(ctx, workspaceID, useGit)
		return err
	})
	return result, err
}
