package domain

import "time"

// Graph is the whole-workspace record: one tree of nodes plus workspace
// level metadata. Stores read and replace it atomically; services mutate a
// clone and write it back in a single operation.
type Graph struct {
	WorkspaceID string `json:"workspace_id"`
	RootID      string `json:"root_id"`

	// Nodes is the id-indexed arena. The parent/children lists inside the
	// nodes define the tree shape; this map is the single source of truth
	// for node existence.
	Nodes map[string]*Node `json:"nodes"`

	// References and Rules promoted to the workspace by info_collection
	// nodes on completion.
	References []Reference `json:"references,omitempty"`
	Rules      []string    `json:"rules,omitempty"`

	Dispatch DispatchConfig `json:"dispatch"`

	// Sealed carries the encrypted payload when a store middleware encrypts
	// graphs at rest. A sealed record holds no plaintext nodes.
	Sealed string `json:"sealed,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Node returns the node with the given id, or ErrNodeNotFound.
func (g *Graph) Node(id string) (*Node, error) {
	node, ok := g.Nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

// Root returns the root node. A graph without its root is corrupt.
func (g *Graph) Root() (*Node, error) {
	node, ok := g.Nodes[g.RootID]
	if !ok {
		return nil, ErrGraphCorrupted
	}
	return node, nil
}

// Clone returns a deep copy of the graph so callers can mutate freely
// without touching the stored snapshot.
func (g *Graph) Clone() *Graph {
	copied := *g
	copied.Nodes = make(map[string]*Node, len(g.Nodes))
	for id, node := range g.Nodes {
		copied.Nodes[id] = node.Clone()
	}
	copied.References = append([]Reference(nil), g.References...)
	copied.Rules = append([]string(nil), g.Rules...)
	return &copied
}

// InProgress reports whether any node in the graph is mid-execution. Used
// to guard dispatch mode switches.
func (g *Graph) InProgress() bool {
	for _, node := range g.Nodes {
		if node.InProgress() {
			return true
		}
	}
	return false
}

// NewGraph creates a workspace graph with a single planning root.
func NewGraph(workspaceID, rootID, title, requirement string, now time.Time) *Graph {
	root := &Node{
		ID:          rootID,
		Type:        NodeTypePlanning,
		Title:       title,
		Status:      StatusPending,
		Requirement: requirement,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return &Graph{
		WorkspaceID: workspaceID,
		RootID:      rootID,
		Nodes:       map[string]*Node{rootID: root},
		Dispatch:    DispatchConfig{Mode: DispatchDisabled},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
