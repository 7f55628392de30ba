package domain

import "time"

// NodeType fixes the structural behavior of a node. It is set at creation
// and never changes.
type NodeType string

const (
	// NodeTypePlanning nodes coordinate: they can own children and
	// synthesize their conclusions.
	NodeTypePlanning NodeType = "planning"
	// NodeTypeExecution nodes do the work. They are always leaves.
	NodeTypeExecution NodeType = "execution"
)

// Status is the lifecycle state of a node. The set of legal values depends
// on the node type; legality of a (status, action) pair is defined by the
// transition table in pkg/graph, not here.
type Status string

const (
	// Shared initial state for both node types.
	StatusPending Status = "pending"

	// Execution states.
	StatusImplementing Status = "implementing"
	StatusValidating   Status = "validating"
	StatusFailed       Status = "failed"

	// Planning states.
	StatusPlanning   Status = "planning"
	StatusMonitoring Status = "monitoring"
	StatusCancelled  Status = "cancelled"

	// Terminal success for both node types.
	StatusCompleted Status = "completed"
)

// Terminal reports whether the status is a sink state. Failed only occurs
// on execution nodes and cancelled only on planning nodes, so a
// status-level check is sufficient.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Action is a caller-visible lifecycle command. Which actions apply to
// which (type, status) pairs is defined by the transition table.
type Action string

const (
	ActionStart    Action = "start"
	ActionSubmit   Action = "submit"
	ActionComplete Action = "complete"
	ActionFail     Action = "fail"
	ActionRetry    Action = "retry"
	ActionReopen   Action = "reopen"
	ActionCancel   Action = "cancel"
)

// Role tags a node with a post-completion side effect.
type Role string

const (
	// RoleInfoCollection nodes propagate their active references and
	// collected rules to the workspace record on completion.
	RoleInfoCollection Role = "info_collection"
	// RoleValidation nodes verify the output of their siblings.
	RoleValidation Role = "validation"
	// RoleSummary nodes condense sibling conclusions.
	RoleSummary Role = "summary"
)

// Node is the atomic unit of work in a workspace graph.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Title    string   `json:"title"`
	ParentID string   `json:"parent_id,omitempty"` // empty only on the root

	// Children holds child IDs in insertion order, which is also display
	// order. Always empty for execution nodes.
	Children []string `json:"children,omitempty"`

	Status Status `json:"status"`

	// Isolate marks this node as a context boundary: ancestor walks on
	// behalf of descendants stop here.
	Isolate bool `json:"isolate,omitempty"`

	Role Role `json:"role,omitempty"`

	// Requirement is what this node must achieve; Conclusion is what it
	// actually produced. Conclusion is required before entering a terminal
	// success/failure state.
	Requirement string `json:"requirement,omitempty"`
	Conclusion  string `json:"conclusion,omitempty"`

	// Notes is free-form operator text carried into executor context.
	Notes string `json:"notes,omitempty"`

	// Rules collected by info_collection nodes, promoted to the workspace
	// on completion.
	Rules []string `json:"rules,omitempty"`

	References []Reference `json:"references,omitempty"`

	// Dispatch is present only while the workspace runs in git dispatch
	// mode.
	Dispatch *NodeDispatch `json:"dispatch,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot reports whether the node is the workspace root.
func (n *Node) IsRoot() bool {
	return n.ParentID == ""
}

// InProgress reports whether the node is mid-execution (post-start,
// pre-terminal). Split is only legal against such nodes and dispatch mode
// switches are blocked while any node is in this window.
func (n *Node) InProgress() bool {
	switch n.Status {
	case StatusImplementing, StatusValidating, StatusPlanning, StatusMonitoring:
		return true
	}
	return false
}

// ActiveReferences returns the subset of references with active status,
// preserving order.
func (n *Node) ActiveReferences() []Reference {
	var active []Reference
	for _, ref := range n.References {
		if ref.Status == ReferenceActive {
			active = append(active, ref)
		}
	}
	return active
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	copied := *n
	copied.Children = append([]string(nil), n.Children...)
	copied.Rules = append([]string(nil), n.Rules...)
	copied.References = append([]Reference(nil), n.References...)
	if n.Dispatch != nil {
		dispatch := *n.Dispatch
		copied.Dispatch = &dispatch
	}
	return &copied
}
