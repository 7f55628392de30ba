package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Ensure Store implements GraphStore
var _ ports.GraphStore = (*file.Store)(nil)

func TestStoreContract(t *testing.T) {
	ports.RunGraphStoreContract(t, file.New(t.TempDir()))
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := file.New(t.TempDir())

	g := domain.NewGraph("ws-1", "root", "Build", "ship the thing", time.Now().UTC())
	g.Rules = []string{"run linters before completion"}

	if err := store.Write(ctx, "ws-1", g); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := store.Read(ctx, "ws-1")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if loaded.RootID != "root" {
		t.Errorf("expected root id 'root', got %q", loaded.RootID)
	}
	if len(loaded.Rules) != 1 || loaded.Rules[0] != "run linters before completion" {
		t.Errorf("rules did not survive the round trip: %v", loaded.Rules)
	}
	if loaded.Nodes["root"].Type != domain.NodeTypePlanning {
		t.Errorf("expected planning root, got %q", loaded.Nodes["root"].Type)
	}
}

func TestStoreCorruptedFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.New(dir)

	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to plant corrupted file: %v", err)
	}

	_, err := store.Read(ctx, "broken")
	if !errors.Is(err, domain.ErrGraphCorrupted) {
		t.Errorf("expected ErrGraphCorrupted, got %v", err)
	}
}

func TestStoreMissingNodeTable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.New(dir)

	// Valid JSON but no nodes key: still corrupted from the caller's view.
	if err := os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"workspace_id":"empty"}`), 0644); err != nil {
		t.Fatalf("failed to plant file: %v", err)
	}

	_, err := store.Read(ctx, "empty")
	if !errors.Is(err, domain.ErrGraphCorrupted) {
		t.Errorf("expected ErrGraphCorrupted, got %v", err)
	}
}

func TestStoreWriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := file.New(dir)

	g := domain.NewGraph("ws-1", "root", "Build", "ship it", time.Now().UTC())
	for i := 0; i < 3; i++ {
		if err := store.Write(ctx, "ws-1", g); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the workspace file, found %v", names)
	}
}
