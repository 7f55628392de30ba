package ports

import "context"

// ContentStore holds per-node free text: the info document an operator or
// agent edits, and an append-only activity log. It is authority for content
// only; node status and structure always come from the GraphStore and are
// never inferred from content fields.
type ContentStore interface {
	ReadInfo(ctx context.Context, workspaceID, nodeID string) (string, error)
	WriteInfo(ctx context.Context, workspaceID, nodeID, content string) error

	AppendLog(ctx context.Context, workspaceID, nodeID, entry string) error
	ReadLog(ctx context.Context, workspaceID, nodeID string) (string, error)
}
