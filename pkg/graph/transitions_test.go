package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/arbor/pkg/domain"
)

func TestResolveExecutionPath(t *testing.T) {
	steps := []struct {
		from   domain.Status
		action domain.Action
		to     domain.Status
	}{
		{domain.StatusPending, domain.ActionStart, domain.StatusImplementing},
		{domain.StatusImplementing, domain.ActionSubmit, domain.StatusValidating},
		{domain.StatusValidating, domain.ActionComplete, domain.StatusCompleted},
	}
	for _, step := range steps {
		rule, ok := Resolve(domain.NodeTypeExecution, step.from, step.action)
		assert.True(t, ok, "%s + %s", step.from, step.action)
		assert.Equal(t, step.to, rule.To)
	}
}

func TestResolvePlanningPath(t *testing.T) {
	steps := []struct {
		from   domain.Status
		action domain.Action
		to     domain.Status
	}{
		{domain.StatusPending, domain.ActionStart, domain.StatusPlanning},
		{domain.StatusPlanning, domain.ActionComplete, domain.StatusMonitoring},
		{domain.StatusMonitoring, domain.ActionComplete, domain.StatusCompleted},
	}
	for _, step := range steps {
		rule, ok := Resolve(domain.NodeTypePlanning, step.from, step.action)
		assert.True(t, ok, "%s + %s", step.from, step.action)
		assert.Equal(t, step.to, rule.To)
	}
}

// Validation is optional: an execution node may complete directly from
// implementing, still gated on a conclusion.
func TestResolveDirectCompletionFromImplementing(t *testing.T) {
	rule, ok := Resolve(domain.NodeTypeExecution, domain.StatusImplementing, domain.ActionComplete)
	assert.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, rule.To)
	assert.True(t, rule.NeedsConclusion)
}

func TestResolveRejectsUndefinedPairs(t *testing.T) {
	cases := []struct {
		nodeType domain.NodeType
		from     domain.Status
		action   domain.Action
	}{
		// Submit skipping implementation.
		{domain.NodeTypeExecution, domain.StatusPending, domain.ActionSubmit},
		// Complete before any work started.
		{domain.NodeTypeExecution, domain.StatusPending, domain.ActionComplete},
		// Execution nodes cannot cancel.
		{domain.NodeTypeExecution, domain.StatusImplementing, domain.ActionCancel},
		// Planning nodes cannot fail or retry.
		{domain.NodeTypePlanning, domain.StatusPlanning, domain.ActionFail},
		{domain.NodeTypePlanning, domain.StatusCancelled, domain.ActionRetry},
		// Terminal states only accept their documented exits.
		{domain.NodeTypeExecution, domain.StatusCompleted, domain.ActionStart},
		{domain.NodeTypeExecution, domain.StatusFailed, domain.ActionReopen},
	}
	for _, tc := range cases {
		_, ok := Resolve(tc.nodeType, tc.from, tc.action)
		assert.False(t, ok, "%s %s + %s should be rejected", tc.nodeType, tc.from, tc.action)
	}
}

func TestTerminalDestinationsRequireConclusion(t *testing.T) {
	for key, rule := range transitions {
		if rule.To == domain.StatusCompleted {
			assert.True(t, rule.NeedsConclusion, "completed via %v must gate on a conclusion", key)
		}
		if rule.To == domain.StatusFailed {
			assert.True(t, rule.NeedsConclusion, "failed via %v must gate on a conclusion", key)
		}
		if rule.To == domain.StatusCancelled {
			assert.False(t, rule.NeedsConclusion, "cancel via %v must not gate on a conclusion", key)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, domain.StatusPending, InitialStatus(domain.NodeTypePlanning))
	assert.Equal(t, domain.StatusPending, InitialStatus(domain.NodeTypeExecution))
}
