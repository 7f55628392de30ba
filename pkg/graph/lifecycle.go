package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/google/uuid"
)

// maxTitleLength bounds titles so they stay usable as branch name fragments
// and file name stems.
const maxTitleLength = 200

// Lifecycle governs node creation, status transitions and structural
// mutation for a workspace graph. It owns the graph exclusively together
// with the dispatch coordinator; callers must serialize mutating operations
// per workspace (see pkg/workspace.Manager).
type Lifecycle struct {
	store  ports.GraphStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// LifecycleOption configures the Lifecycle service.
type LifecycleOption func(*Lifecycle)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) LifecycleOption {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		l.now = now
	}
}

// WithIDGenerator overrides node id generation (tests).
func WithIDGenerator(newID func() string) LifecycleOption {
	return func(l *Lifecycle) {
		l.newID = newID
	}
}

// NewLifecycle creates the lifecycle service with its graph store.
func NewLifecycle(store ports.GraphStore, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		store:  store,
		logger: logging.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Init creates a new workspace graph with a planning root.
func (l *Lifecycle) Init(ctx context.Context, workspaceID, title, requirement string) (*domain.Graph, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	_, err := l.store.Read(ctx, workspaceID)
	if err == nil {
		return nil, fmt.Errorf("workspace %s: %w", workspaceID, domain.ErrWorkspaceExists)
	}
	if !isNotFound(err) {
		return nil, err
	}

	graph := domain.NewGraph(workspaceID, l.newID(), title, requirement, l.now())
	if err := l.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	l.logger.Info("workspace initialized", "workspace", workspaceID, "root", graph.RootID)
	return graph, nil
}

// Get returns a single node.
func (l *Lifecycle) Get(ctx context.Context, workspaceID, nodeID string) (*domain.Node, error) {
	graph, err := l.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}
	return node, nil
}

// CreateRequest describes a new child node.
type CreateRequest struct {
	ParentID    string
	Type        domain.NodeType
	Title       string
	Requirement string
	Role        domain.Role
	References  []domain.Reference
}

// Create adds a new node under an existing planning parent. The node starts
// in the pending state for its type.
func (l *Lifecycle) Create(ctx context.Context, workspaceID string, req CreateRequest) (*domain.Node, error) {
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}
	if req.Type != domain.NodeTypePlanning && req.Type != domain.NodeTypeExecution {
		return nil, fmt.Errorf("unknown node type %q: %w", req.Type, domain.ErrValidation)
	}

	graph, err := l.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	parent, err := graph.Node(req.ParentID)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", req.ParentID, err)
	}
	if parent.Type == domain.NodeTypeExecution {
		return nil, fmt.Errorf("parent %s is an execution node and cannot have children: %w", parent.ID, domain.ErrValidation)
	}

	now := l.now()
	node := &domain.Node{
		ID:          l.newID(),
		Type:        req.Type,
		Title:       strings.TrimSpace(req.Title),
		ParentID:    parent.ID,
		Status:      InitialStatus(req.Type),
		Role:        req.Role,
		Requirement: req.Requirement,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, ref := range req.References {
		ref.Status = domain.ReferenceActive
		ref.CreatedAt = now
		ref.UpdatedAt = now
		node.References = append(node.References, ref)
	}

	graph.Nodes[node.ID] = node
	parent.Children = append(parent.Children, node.ID)
	parent.UpdatedAt = now
	graph.UpdatedAt = now

	if err := l.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	l.logger.Info("node created", "workspace", workspaceID, "node", node.ID, "type", node.Type, "parent", parent.ID)
	return node, nil
}

// TransitionRequest carries the action plus its optional payload.
type TransitionRequest struct {
	Action     domain.Action
	Conclusion string
	// Reason documents fail/cancel actions; when the destination requires
	// a conclusion and none is given, the reason is used as conclusion.
	Reason string
	// CommitID records the producing commit when the workspace runs in
	// git dispatch mode.
	CommitID string
}

// Transition applies one lifecycle action to a node. Undefined
// (status, action) pairs are rejected deterministically and leave the node
// untouched.
func (l *Lifecycle) Transition(ctx context.Context, workspaceID, nodeID string, req TransitionRequest) (*domain.Node, error) {
	graph, err := l.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}

	rule, ok := Resolve(node.Type, node.Status, req.Action)
	if !ok {
		return nil, fmt.Errorf("%s node in status %q does not accept action %q: %w",
			node.Type, node.Status, req.Action, domain.ErrInvalidTransition)
	}

	conclusion := strings.TrimSpace(req.Conclusion)
	if conclusion == "" {
		conclusion = strings.TrimSpace(req.Reason)
	}
	if rule.NeedsConclusion && conclusion == "" {
		return nil, fmt.Errorf("transition to %q: %w", rule.To, domain.ErrConclusionRequired)
	}

	now := l.now()
	node.Status = rule.To
	node.UpdatedAt = now
	graph.UpdatedAt = now
	if conclusion != "" {
		node.Conclusion = conclusion
	}

	l.applyDispatchBookkeeping(graph, node, rule.To, req.CommitID)

	if rule.To == domain.StatusCompleted {
		l.applyRoleEffects(graph, node, now)
	}

	if err := l.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	l.logger.Info("node transitioned",
		"workspace", workspaceID,
		"node", node.ID,
		"action", req.Action,
		"status", node.Status,
	)
	return node, nil
}

// applyDispatchBookkeeping maintains the per-node dispatch sub-record while
// the workspace runs in git mode. Branch creation and merging live in the
// dispatch coordinator; this only records expectations and outcomes.
func (l *Lifecycle) applyDispatchBookkeeping(graph *domain.Graph, node *domain.Node, to domain.Status, commitID string) {
	if graph.Dispatch.Mode != domain.DispatchEnabledGit {
		return
	}

	switch to {
	case domain.StatusImplementing:
		node.Dispatch = &domain.NodeDispatch{
			Status: domain.DispatchAwaitingCommit,
			Branch: graph.Dispatch.ProcessBranch,
		}
	case domain.StatusCompleted, domain.StatusFailed:
		if node.Dispatch != nil && commitID != "" {
			node.Dispatch.Status = domain.DispatchCommitted
			node.Dispatch.CommitID = commitID
		}
	}
}

// applyRoleEffects runs post-completion side effects. info_collection nodes
// promote their active references and collected rules to the workspace
// record so later executors see them without walking the tree.
func (l *Lifecycle) applyRoleEffects(graph *domain.Graph, node *domain.Node, now time.Time) {
	if node.Role != domain.RoleInfoCollection {
		return
	}

	known := make(map[string]bool, len(graph.References))
	for _, ref := range graph.References {
		known[ref.Target] = true
	}
	for _, ref := range node.ActiveReferences() {
		if known[ref.Target] {
			continue
		}
		known[ref.Target] = true
		graph.References = append(graph.References, ref)
	}

	knownRules := make(map[string]bool, len(graph.Rules))
	for _, rule := range graph.Rules {
		knownRules[rule] = true
	}
	for _, rule := range node.Rules {
		if knownRules[rule] {
			continue
		}
		knownRules[rule] = true
		graph.Rules = append(graph.Rules, rule)
	}

	graph.UpdatedAt = now
	l.logger.Debug("info_collection node promoted references",
		"node", node.ID,
		"references", len(graph.References),
		"rules", len(graph.Rules),
	)
}

// SplitRequest describes a child carved out of a node mid-execution.
type SplitRequest struct {
	Title       string
	Requirement string
	// InheritContext copies the parent's currently active references onto
	// the new child.
	InheritContext bool
}

// Split creates a new execution child under a planning node that is
// mid-execution (post-start, pre-terminal).
func (l *Lifecycle) Split(ctx context.Context, workspaceID, parentID string, req SplitRequest) (*domain.Node, error) {
	if err := validateTitle(req.Title); err != nil {
		return nil, err
	}

	graph, err := l.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	parent, err := graph.Node(parentID)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", parentID, err)
	}
	if parent.Type == domain.NodeTypeExecution {
		return nil, fmt.Errorf("cannot split under execution node %s: %w", parent.ID, domain.ErrValidation)
	}
	if !parent.InProgress() {
		return nil, fmt.Errorf("split requires a parent mid-execution, %s is %q: %w",
			parent.ID, parent.Status, domain.ErrInvalidTransition)
	}

	now := l.now()
	node := &domain.Node{
		ID:          l.newID(),
		Type:        domain.NodeTypeExecution,
		Title:       strings.TrimSpace(req.Title),
		ParentID:    parent.ID,
		Status:      InitialStatus(domain.NodeTypeExecution),
		Requirement: req.Requirement,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.InheritContext {
		for _, ref := range parent.ActiveReferences() {
			ref.CreatedAt = now
			ref.UpdatedAt = now
			node.References = append(node.References, ref)
		}
	}

	graph.Nodes[node.ID] = node
	parent.Children = append(parent.Children, node.ID)
	parent.UpdatedAt = now
	graph.UpdatedAt = now

	if err := l.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	l.logger.Info("node split", "workspace", workspaceID, "parent", parent.ID, "node", node.ID)
	return node, nil
}

// Move reparents a node. Moves that would break the tree shape (root moves,
// moves under execution nodes, moves under the node's own subtree) are
// rejected without mutating the graph.
func (l *Lifecycle) Move(ctx context.Context, workspaceID, nodeID, newParentID string) (*domain.Node, error) {
	graph, err := l.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}
	if node.IsRoot() {
		return nil, fmt.Errorf("cannot move the root node: %w", domain.ErrValidation)
	}
	newParent, err := graph.Node(newParentID)
	if err != nil {
		return nil, fmt.Errorf("new parent %s: %w", newParentID, err)
	}
	if newParent.Type == domain.NodeTypeExecution {
		return nil, fmt.Errorf("parent %s is an execution node and cannot have children: %w", newParent.ID, domain.ErrValidation)
	}

	// Walk up from the new parent; hitting the node means the destination
	// is inside the node's own subtree.
	for cursor := newParent; cursor != nil; {
		if cursor.ID == node.ID {
			return nil, fmt.Errorf("cannot move %s under its own subtree: %w", node.ID, domain.ErrValidation)
		}
		if cursor.ParentID == "" {
			break
		}
		cursor, err = graph.Node(cursor.ParentID)
		if err != nil {
			return nil, fmt.Errorf("walking ancestry: %w", domain.ErrGraphCorrupted)
		}
	}

	if node.ParentID == newParent.ID {
		return node, nil
	}

	now := l.now()
	oldParent, err := graph.Node(node.ParentID)
	if err != nil {
		return nil, fmt.Errorf("old parent %s: %w", node.ParentID, domain.ErrGraphCorrupted)
	}
	oldParent.Children = removeID(oldParent.Children, node.ID)
	oldParent.UpdatedAt = now

	newParent.Children = append(newParent.Children, node.ID)
	newParent.UpdatedAt = now
	node.ParentID = newParent.ID
	node.UpdatedAt = now
	graph.UpdatedAt = now

	if err := l.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	l.logger.Info("node moved", "workspace", workspaceID, "node", node.ID, "parent", newParent.ID)
	return node, nil
}

// Delete removes a node and its whole subtree, returning the removed ids in
// document order (each node before its descendants). The traversal is an
// explicit stack over the id-indexed map, so deep trees cannot exhaust the
// call stack.
func (l *Lifecycle) Delete(ctx context.Context, workspaceID, nodeID string) ([]string, error) {
	graph, err := l.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}
	if node.IsRoot() {
		return nil, fmt.Errorf("cannot delete the root node: %w", domain.ErrValidation)
	}

	now := l.now()
	var removed []string
	stack := []string{node.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		current, ok := graph.Nodes[id]
		if !ok {
			continue
		}
		removed = append(removed, id)

		// Push children in reverse so they pop in insertion order.
		for i := len(current.Children) - 1; i >= 0; i-- {
			stack = append(stack, current.Children[i])
		}
		delete(graph.Nodes, id)
	}

	parent, err := graph.Node(node.ParentID)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", node.ParentID, domain.ErrGraphCorrupted)
	}
	parent.Children = removeID(parent.Children, node.ID)
	parent.UpdatedAt = now
	graph.UpdatedAt = now

	if err := l.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}

	l.logger.Info("subtree deleted", "workspace", workspaceID, "node", node.ID, "removed", len(removed))
	return removed, nil
}

// SetIsolate toggles the context boundary flag. Status is untouched.
func (l *Lifecycle) SetIsolate(ctx context.Context, workspaceID, nodeID string, value bool) (*domain.Node, error) {
	graph, err := l.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}
	if node.Isolate == value {
		return node, nil
	}

	now := l.now()
	node.Isolate = value
	node.UpdatedAt = now
	graph.UpdatedAt = now

	if err := l.store.Write(ctx, workspaceID, graph); err != nil {
		return nil, err
	}
	return node, nil
}

func validateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("title must not be empty: %w", domain.ErrValidation)
	}
	if utf8.RuneCountInString(trimmed) > maxTitleLength {
		return fmt.Errorf("title exceeds %d characters: %w", maxTitleLength, domain.ErrValidation)
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("title must not contain path separators: %w", domain.ErrValidation)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return fmt.Errorf("title must not contain control characters: %w", domain.ErrValidation)
		}
	}
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrWorkspaceNotFound)
}
