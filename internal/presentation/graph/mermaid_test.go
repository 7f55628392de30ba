package graph

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	now := time.Now().UTC()
	g := domain.NewGraph("ws-1", "root", "Ship release", "", now)
	g.Nodes["task-a"] = &domain.Node{
		ID: "task-a", Type: domain.NodeTypeExecution, Title: "Run tests",
		ParentID: "root", Status: domain.StatusCompleted,
		CreatedAt: now, UpdatedAt: now,
	}
	g.Nodes["root"].Children = []string{"task-a"}

	out, err := GenerateMermaid(g)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	// Planning root is a stadium, execution child a rectangle.
	assert.Contains(t, out, `root(["Ship release"])`)
	assert.Contains(t, out, `task_a["Run tests"]`)
	assert.Contains(t, out, "root --> task_a")
	assert.Contains(t, out, "class task_a completed")
}

func TestSanitizeMermaidID(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeMermaidID("a/b-c"))
	assert.Equal(t, "node_1", sanitizeMermaidID("node 1"))
}

func TestGenerateMermaidEscapesQuotes(t *testing.T) {
	now := time.Now().UTC()
	g := domain.NewGraph("ws-1", "root", `Fix the "flaky" test`, "", now)

	out, err := GenerateMermaid(g)
	require.NoError(t, err)
	assert.NotContains(t, out, `"Fix the "flaky" test"`)
	assert.Contains(t, out, "#quot;flaky#quot;")
}
