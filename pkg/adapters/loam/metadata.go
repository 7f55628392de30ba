package loam

import "time"

// NoteKind distinguishes the two documents kept per node.
type NoteKind string

const (
	// KindInfo is the freely edited info document of a node.
	KindInfo NoteKind = "info"
	// KindLog is the append-only activity log of a node.
	KindLog NoteKind = "log"
)

// NoteMetadata is the frontmatter of a node content document. It uses
// "mapstructure" tags to match standard frontmatter/YAML keys.
type NoteMetadata struct {
	Workspace string   `json:"workspace" mapstructure:"workspace"`
	Node      string   `json:"node" mapstructure:"node"`
	Kind      NoteKind `json:"kind" mapstructure:"kind"`

	UpdatedAt time.Time `json:"updated_at,omitempty" mapstructure:"updated_at"`
}
