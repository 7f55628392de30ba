package graph_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/graph"
)

func newLifecycle(t *testing.T) (*graph.Lifecycle, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	counter := 0
	lifecycle := graph.NewLifecycle(store,
		graph.WithClock(func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }),
		graph.WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("n%d", counter)
		}),
	)
	return lifecycle, store
}

func TestInitCreatesPlanningRoot(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Build the thing", "It must work")
	require.NoError(t, err)

	root, err := g.Root()
	require.NoError(t, err)
	assert.Equal(t, domain.NodeTypePlanning, root.Type)
	assert.Equal(t, domain.StatusPending, root.Status)
	assert.Equal(t, "Build the thing", root.Title)
	assert.True(t, root.IsRoot())
	assert.Equal(t, domain.DispatchDisabled, g.Dispatch.Mode)
}

func TestInitRejectsDuplicateWorkspace(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	_, err := lifecycle.Init(ctx, "ws", "First", "")
	require.NoError(t, err)

	_, err = lifecycle.Init(ctx, "ws", "Second", "")
	assert.ErrorIs(t, err, domain.ErrWorkspaceExists)
}

func TestInitValidatesTitle(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	cases := map[string]string{
		"empty":          "   ",
		"path separator": "feature/login",
		"control char":   "bad\ntitle",
	}
	for name, title := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := lifecycle.Init(ctx, "ws-"+name, title, "")
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateChildUnderPlanningParent(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)

	node, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID:    g.RootID,
		Type:        domain.NodeTypeExecution,
		Title:       "Write the parser",
		Requirement: "Parse the input format",
		References:  []domain.Reference{{Target: "docs/format.md"}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, node.Status)
	assert.Equal(t, g.RootID, node.ParentID)
	require.Len(t, node.References, 1)
	assert.Equal(t, domain.ReferenceActive, node.References[0].Status)

	parent, err := lifecycle.Get(ctx, "ws", g.RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{node.ID}, parent.Children)
}

func TestCreateRejectsExecutionParent(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)

	leaf, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypeExecution,
		Title:    "Leaf",
	})
	require.NoError(t, err)

	_, err = lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: leaf.ID,
		Type:     domain.NodeTypeExecution,
		Title:    "Grandchild",
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestTransitionExecutionFlow(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)
	node, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypeExecution,
		Title:    "Task",
	})
	require.NoError(t, err)

	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionStart})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusImplementing, node.Status)

	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidating, node.Status)

	// Completion without a conclusion is refused and leaves the node put.
	_, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionComplete})
	assert.ErrorIs(t, err, domain.ErrConclusionRequired)

	node, err = lifecycle.Get(ctx, "ws", node.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusValidating, node.Status)

	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{
		Action:     domain.ActionComplete,
		Conclusion: "Parser done, all fixtures pass",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, node.Status)
	assert.Equal(t, "Parser done, all fixtures pass", node.Conclusion)
}

func TestTransitionCompleteStraightFromImplementing(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)
	node, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypeExecution,
		Title:    "impl",
	})
	require.NoError(t, err)

	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionStart})
	require.NoError(t, err)
	require.Equal(t, domain.StatusImplementing, node.Status)

	// The conclusion gate applies without a validation hop.
	_, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionComplete})
	assert.ErrorIs(t, err, domain.ErrConclusionRequired)

	node, err = lifecycle.Get(ctx, "ws", node.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusImplementing, node.Status)

	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{
		Action:     domain.ActionComplete,
		Conclusion: "done",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, node.Status)
	assert.Equal(t, "done", node.Conclusion)
}

func TestTransitionFailUsesReasonAsConclusion(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)
	node, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypeExecution,
		Title:    "Task",
	})
	require.NoError(t, err)

	_, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionStart})
	require.NoError(t, err)

	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{
		Action: domain.ActionFail,
		Reason: "upstream API removed the endpoint",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, node.Status)
	assert.Equal(t, "upstream API removed the endpoint", node.Conclusion)

	// Retry clears the way back to implementing but keeps the conclusion
	// as a record of the last failure.
	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionRetry})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusImplementing, node.Status)
}

func TestTransitionRejectsUndefinedAction(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)

	_, err = lifecycle.Transition(ctx, "ws", g.RootID, graph.TransitionRequest{Action: domain.ActionSubmit})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestInfoCollectionPromotesReferencesAndRules(t *testing.T) {
	lifecycle, store := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)
	node, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID:   g.RootID,
		Type:       domain.NodeTypeExecution,
		Title:      "Survey the codebase",
		Role:       domain.RoleInfoCollection,
		References: []domain.Reference{{Target: "notes/survey.md"}},
	})
	require.NoError(t, err)

	// Collected rules land on the node before completion.
	current, err := store.Read(ctx, "ws")
	require.NoError(t, err)
	current.Nodes[node.ID].Rules = []string{"always run the linter"}
	require.NoError(t, store.Write(ctx, "ws", current))

	_, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionStart})
	require.NoError(t, err)
	_, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionSubmit})
	require.NoError(t, err)
	_, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{
		Action:     domain.ActionComplete,
		Conclusion: "survey finished",
	})
	require.NoError(t, err)

	updated, err := store.Read(ctx, "ws")
	require.NoError(t, err)
	require.Len(t, updated.References, 1)
	assert.Equal(t, "notes/survey.md", updated.References[0].Target)
	assert.Equal(t, []string{"always run the linter"}, updated.Rules)
}

func TestSplitRequiresParentMidExecution(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)

	_, err = lifecycle.Split(ctx, "ws", g.RootID, graph.SplitRequest{Title: "Carved out"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = lifecycle.Transition(ctx, "ws", g.RootID, graph.TransitionRequest{Action: domain.ActionStart})
	require.NoError(t, err)

	child, err := lifecycle.Split(ctx, "ws", g.RootID, graph.SplitRequest{Title: "Carved out"})
	require.NoError(t, err)
	assert.Equal(t, domain.NodeTypeExecution, child.Type)
	assert.Equal(t, domain.StatusPending, child.Status)
}

func TestSplitInheritsActiveReferences(t *testing.T) {
	lifecycle, store := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)

	current, err := store.Read(ctx, "ws")
	require.NoError(t, err)
	current.Nodes[g.RootID].References = []domain.Reference{
		{Target: "docs/a.md", Status: domain.ReferenceActive},
		{Target: "docs/b.md", Status: domain.ReferenceExpired},
	}
	require.NoError(t, store.Write(ctx, "ws", current))

	_, err = lifecycle.Transition(ctx, "ws", g.RootID, graph.TransitionRequest{Action: domain.ActionStart})
	require.NoError(t, err)

	child, err := lifecycle.Split(ctx, "ws", g.RootID, graph.SplitRequest{
		Title:          "Carved out",
		InheritContext: true,
	})
	require.NoError(t, err)
	require.Len(t, child.References, 1)
	assert.Equal(t, "docs/a.md", child.References[0].Target)
}

func TestMoveRejectsCycleAndRoot(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)
	a, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypePlanning,
		Title:    "A",
	})
	require.NoError(t, err)
	b, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: a.ID,
		Type:     domain.NodeTypePlanning,
		Title:    "B",
	})
	require.NoError(t, err)

	_, err = lifecycle.Move(ctx, "ws", g.RootID, a.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	// A under B would put A inside its own subtree.
	_, err = lifecycle.Move(ctx, "ws", a.ID, b.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestMoveReparents(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)
	a, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypePlanning,
		Title:    "A",
	})
	require.NoError(t, err)
	task, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypeExecution,
		Title:    "Task",
	})
	require.NoError(t, err)

	moved, err := lifecycle.Move(ctx, "ws", task.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, moved.ParentID)

	root, err := lifecycle.Get(ctx, "ws", g.RootID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, root.Children)

	parent, err := lifecycle.Get(ctx, "ws", a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, parent.Children)
}

func TestDeleteRemovesSubtreeInDocumentOrder(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)
	a, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypePlanning,
		Title:    "A",
	})
	require.NoError(t, err)
	b, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: a.ID,
		Type:     domain.NodeTypeExecution,
		Title:    "B",
	})
	require.NoError(t, err)
	c, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: a.ID,
		Type:     domain.NodeTypeExecution,
		Title:    "C",
	})
	require.NoError(t, err)

	removed, err := lifecycle.Delete(ctx, "ws", a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, removed)

	_, err = lifecycle.Get(ctx, "ws", b.ID)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	root, err := lifecycle.Get(ctx, "ws", g.RootID)
	require.NoError(t, err)
	assert.Empty(t, root.Children)
}

func TestDeleteRejectsRoot(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)

	_, err = lifecycle.Delete(ctx, "ws", g.RootID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSetIsolateIsIdempotent(t *testing.T) {
	lifecycle, _ := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)

	node, err := lifecycle.SetIsolate(ctx, "ws", g.RootID, true)
	require.NoError(t, err)
	assert.True(t, node.Isolate)

	node, err = lifecycle.SetIsolate(ctx, "ws", g.RootID, true)
	require.NoError(t, err)
	assert.True(t, node.Isolate)

	node, err = lifecycle.SetIsolate(ctx, "ws", g.RootID, false)
	require.NoError(t, err)
	assert.False(t, node.Isolate)
}

func TestGitDispatchBookkeepingOnTransitions(t *testing.T) {
	lifecycle, store := newLifecycle(t)
	ctx := context.Background()

	g, err := lifecycle.Init(ctx, "ws", "Root", "")
	require.NoError(t, err)
	node, err := lifecycle.Create(ctx, "ws", graph.CreateRequest{
		ParentID: g.RootID,
		Type:     domain.NodeTypeExecution,
		Title:    "Task",
	})
	require.NoError(t, err)

	current, err := store.Read(ctx, "ws")
	require.NoError(t, err)
	current.Dispatch.Mode = domain.DispatchEnabledGit
	current.Dispatch.ProcessBranch = "arbor/process/ws"
	require.NoError(t, store.Write(ctx, "ws", current))

	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionStart})
	require.NoError(t, err)
	require.NotNil(t, node.Dispatch)
	assert.Equal(t, domain.DispatchAwaitingCommit, node.Dispatch.Status)
	assert.Equal(t, "arbor/process/ws", node.Dispatch.Branch)

	_, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{Action: domain.ActionSubmit})
	require.NoError(t, err)

	node, err = lifecycle.Transition(ctx, "ws", node.ID, graph.TransitionRequest{
		Action:     domain.ActionComplete,
		Conclusion: "done",
		CommitID:   "abc123",
	})
	require.NoError(t, err)
	require.NotNil(t, node.Dispatch)
	assert.Equal(t, domain.DispatchCommitted, node.Dispatch.Status)
	assert.Equal(t, "abc123", node.Dispatch.CommitID)
}
