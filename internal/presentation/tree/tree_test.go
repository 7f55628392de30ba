package tree

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

func buildGraph(t *testing.T) *domain.Graph {
	t.Helper()
	now := time.Now().UTC()
	g := domain.NewGraph("ws-1", "root", "Ship release", "cut and publish", now)

	root := g.Nodes["root"]
	root.Status = domain.StatusPlanning

	g.Nodes["child-1"] = &domain.Node{
		ID: "child-1", Type: domain.NodeTypeExecution, Title: "Run tests",
		ParentID: "root", Status: domain.StatusCompleted,
		CreatedAt: now, UpdatedAt: now,
	}
	g.Nodes["child-2"] = &domain.Node{
		ID: "child-2", Type: domain.NodeTypeExecution, Title: "Publish artifacts",
		ParentID: "root", Status: domain.StatusImplementing, Isolate: true,
		CreatedAt: now, UpdatedAt: now,
	}
	root.Children = []string{"child-1", "child-2"}
	return g
}

func TestRenderShape(t *testing.T) {
	out, err := NewPlainRenderer().Render(buildGraph(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Contains(t, lines[0], "ws-1")
	assert.Contains(t, lines[1], "Ship release")
	assert.Contains(t, lines[1], "(plan)")
	assert.Contains(t, lines[2], "├── ")
	assert.Contains(t, lines[2], "Run tests")
	assert.Contains(t, lines[2], "✓")
	assert.Contains(t, lines[3], "└── ")
	assert.Contains(t, lines[3], "isolated")
}

func TestRenderMissingRoot(t *testing.T) {
	g := buildGraph(t)
	delete(g.Nodes, "root")

	_, err := NewPlainRenderer().Render(g)
	require.ErrorIs(t, err, domain.ErrGraphCorrupted)
}

func TestRenderAwaitingCommitMarker(t *testing.T) {
	g := buildGraph(t)
	g.Nodes["child-2"].Dispatch = &domain.NodeDispatch{Status: domain.DispatchAwaitingCommit}

	out, err := NewPlainRenderer().Render(g)
	require.NoError(t, err)
	assert.Contains(t, out, "awaiting commit")
}
