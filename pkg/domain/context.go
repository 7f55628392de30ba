package domain

// ContextEntry is one ancestor (or the node itself) in the assembled
// executor context, carrying the text an executor needs without re-deriving
// tree structure.
type ContextEntry struct {
	NodeID      string      `json:"node_id"`
	Title       string      `json:"title"`
	Requirement string      `json:"requirement,omitempty"`
	Conclusion  string      `json:"conclusion,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	References  []Reference `json:"references,omitempty"` // active only
}

// ChildConclusion is the terminal outcome of one child, used by planning
// nodes to synthesize next actions.
type ChildConclusion struct {
	NodeID     string `json:"node_id"`
	Title      string `json:"title"`
	Status     Status `json:"status"`
	Conclusion string `json:"conclusion,omitempty"`
}

// NodeContext is everything an executor needs for one node.
type NodeContext struct {
	NodeID string `json:"node_id"`

	// Chain is ordered root-to-node. When an ancestor has the isolate flag
	// set, the chain starts at that boundary with its requirement withheld;
	// everything above it is cut off.
	Chain []ContextEntry `json:"chain"`

	// Truncated is set when an isolation boundary cut the chain short.
	Truncated bool `json:"truncated,omitempty"`

	// References is the union of the node's own and chain references,
	// active only, de-duplicated by target.
	References []Reference `json:"references,omitempty"`

	// Children holds the conclusions of children that reached a terminal
	// state, in child insertion order.
	Children []ChildConclusion `json:"children,omitempty"`

	// Rules are workspace-level rules promoted by info_collection nodes.
	Rules []string `json:"rules,omitempty"`
}
