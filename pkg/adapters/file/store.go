// Package file provides the default GraphStore, backed by one JSON file per
// workspace on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.GraphStore using the local filesystem.
// Each workspace is a single JSON document under BasePath.
type Store struct {
	BasePath string
}

// New creates a Store rooted at basePath.
// If basePath is empty, it defaults to ".arbor/workspaces".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".arbor", "workspaces")
	}
	return &Store{BasePath: basePath}
}

// Write persists the graph to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it
// to the destination so readers never observe a partial graph.
func (s *Store) Write(ctx context.Context, workspaceID string, g *domain.Graph) error {
	if workspaceID == "" {
		return fmt.Errorf("workspaceID cannot be empty")
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure workspace directory: %w", err)
	}

	destPath := filepath.Join(s.BasePath, workspaceID+".json")

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	// Temp file lives in the same directory so the rename stays on one
	// filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+workspaceID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // gone already if the rename succeeded
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists; remove it first. The
	// delete+rename window is acceptable compared to partial writes.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing workspace file for overwrite: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}

	return nil
}

// Read loads the graph from its JSON file.
func (s *Store) Read(ctx context.Context, workspaceID string) (*domain.Graph, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspaceID cannot be empty")
	}

	filePath := filepath.Join(s.BasePath, workspaceID+".json")

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}

	var g domain.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("workspace %s: %v: %w", workspaceID, err, domain.ErrGraphCorrupted)
	}
	if g.Nodes == nil {
		return nil, fmt.Errorf("workspace %s has no node table: %w", workspaceID, domain.ErrGraphCorrupted)
	}

	return &g, nil
}

// Delete removes the workspace file. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, workspaceID string) error {
	if workspaceID == "" {
		return fmt.Errorf("workspaceID cannot be empty")
	}

	filePath := filepath.Join(s.BasePath, workspaceID+".json")

	err := os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete workspace file: %w", err)
	}

	return nil
}

// List returns all stored workspace ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			name := entry.Name()
			ids = append(ids, name[:len(name)-len(".json")])
		}
	}

	return ids, nil
}
