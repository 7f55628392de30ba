// Package loam adapts the Loam document library to the ContentStore port.
// Node info documents and activity logs live as markdown files with
// frontmatter, so operators can read and edit them with any editor while
// the graph itself stays in the GraphStore.
package loam

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/aretw0/loam"
)

// repository is the slice of loam's typed repository the store needs.
type repository interface {
	Get(ctx context.Context, id string) (*loam.DocumentModel[NoteMetadata], error)
	Save(ctx context.Context, doc *loam.DocumentModel[NoteMetadata]) error
}

// Store implements ports.ContentStore on a Loam repository.
type Store struct {
	repo repository
	now  func() time.Time
}

// New creates a content store on the given typed repository.
func New(repo *loam.TypedRepository[NoteMetadata]) *Store {
	return &Store{
		repo: repo,
		now:  time.Now,
	}
}

// docID builds the repository path for one node document, e.g.
// "ws-1/node-abc/info".
func docID(workspaceID, nodeID string, kind NoteKind) string {
	return workspaceID + "/" + nodeID + "/" + string(kind)
}

// read returns the document content. A missing document reads as empty
// (content is optional for every node); any other repository failure
// surfaces.
func (s *Store) read(ctx context.Context, workspaceID, nodeID string, kind NoteKind) (string, error) {
	doc, err := s.repo.Get(ctx, docID(workspaceID, nodeID, kind))
	if err != nil {
		if notFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("loam get failed for %s/%s %s: %w", workspaceID, nodeID, kind, err)
	}
	if doc == nil {
		return "", nil
	}
	return doc.Content, nil
}

// notFound reports whether a repository error means the document does not
// exist. Loam surfaces misses as the filesystem not-exist error; some code
// paths stringify it instead of wrapping.
func notFound(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "not exist") || strings.Contains(msg, "not found")
}

func (s *Store) write(ctx context.Context, workspaceID, nodeID string, kind NoteKind, content string) error {
	err := s.repo.Save(ctx, &loam.DocumentModel[NoteMetadata]{
		ID:      docID(workspaceID, nodeID, kind),
		Content: content,
		Data: NoteMetadata{
			Workspace: workspaceID,
			Node:      nodeID,
			Kind:      kind,
			UpdatedAt: s.now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s/%s %s: %w", workspaceID, nodeID, kind, err)
	}
	return nil
}

// ReadInfo returns the info document of a node.
func (s *Store) ReadInfo(ctx context.Context, workspaceID, nodeID string) (string, error) {
	return s.read(ctx, workspaceID, nodeID, KindInfo)
}

// WriteInfo replaces the info document of a node.
func (s *Store) WriteInfo(ctx context.Context, workspaceID, nodeID, content string) error {
	return s.write(ctx, workspaceID, nodeID, KindInfo, content)
}

// AppendLog adds a timestamped entry to the node's activity log.
func (s *Store) AppendLog(ctx context.Context, workspaceID, nodeID, entry string) error {
	existing, err := s.read(ctx, workspaceID, nodeID, KindLog)
	if err != nil {
		return err
	}

	line := fmt.Sprintf("- %s %s", s.now().UTC().Format(time.RFC3339), strings.TrimSpace(entry))
	content := line
	if existing != "" {
		content = strings.TrimRight(existing, "\n") + "\n" + line
	}

	return s.write(ctx, workspaceID, nodeID, KindLog, content)
}

// ReadLog returns the full activity log of a node.
func (s *Store) ReadLog(ctx context.Context, workspaceID, nodeID string) (string, error) {
	return s.read(ctx, workspaceID, nodeID, KindLog)
}
