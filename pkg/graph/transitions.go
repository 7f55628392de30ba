package graph

import "github.com/aretw0/arbor/pkg/domain"

// transitionKey identifies one cell of the transition table.
type transitionKey struct {
	Type   domain.NodeType
	From   domain.Status
	Action domain.Action
}

// transitionRule is the outcome of a legal transition.
type transitionRule struct {
	To domain.Status

	// NeedsConclusion marks destinations that are terminal success or
	// failure states: the caller must supply a non-empty conclusion.
	NeedsConclusion bool
}

// transitions is the complete table. A (type, status, action) triple absent
// from this map is rejected with domain.ErrInvalidTransition; there are no
// conditionals elsewhere deciding legality.
var transitions = map[transitionKey]transitionRule{
	// Execution: pending → implementing → validating → completed, with
	// failure exits and explicit retry/reopen. Validation is an optional
	// hop: complete is also legal straight from implementing.
	{domain.NodeTypeExecution, domain.StatusPending, domain.ActionStart}:         {To: domain.StatusImplementing},
	{domain.NodeTypeExecution, domain.StatusImplementing, domain.ActionSubmit}:   {To: domain.StatusValidating},
	{domain.NodeTypeExecution, domain.StatusImplementing, domain.ActionComplete}: {To: domain.StatusCompleted, NeedsConclusion: true},
	{domain.NodeTypeExecution, domain.StatusValidating, domain.ActionComplete}:   {To: domain.StatusCompleted, NeedsConclusion: true},
	{domain.NodeTypeExecution, domain.StatusImplementing, domain.ActionFail}:     {To: domain.StatusFailed, NeedsConclusion: true},
	{domain.NodeTypeExecution, domain.StatusValidating, domain.ActionFail}:       {To: domain.StatusFailed, NeedsConclusion: true},
	{domain.NodeTypeExecution, domain.StatusFailed, domain.ActionRetry}:          {To: domain.StatusImplementing},
	{domain.NodeTypeExecution, domain.StatusCompleted, domain.ActionReopen}:      {To: domain.StatusImplementing},

	// Planning: pending → planning → monitoring → completed, cancellable
	// from any non-terminal state, reopenable from both sinks.
	{domain.NodeTypePlanning, domain.StatusPending, domain.ActionStart}:       {To: domain.StatusPlanning},
	{domain.NodeTypePlanning, domain.StatusPlanning, domain.ActionComplete}:   {To: domain.StatusMonitoring},
	{domain.NodeTypePlanning, domain.StatusMonitoring, domain.ActionComplete}: {To: domain.StatusCompleted, NeedsConclusion: true},
	{domain.NodeTypePlanning, domain.StatusPending, domain.ActionCancel}:      {To: domain.StatusCancelled},
	{domain.NodeTypePlanning, domain.StatusPlanning, domain.ActionCancel}:     {To: domain.StatusCancelled},
	{domain.NodeTypePlanning, domain.StatusMonitoring, domain.ActionCancel}:   {To: domain.StatusCancelled},
	{domain.NodeTypePlanning, domain.StatusCompleted, domain.ActionReopen}:    {To: domain.StatusPending},
	{domain.NodeTypePlanning, domain.StatusCancelled, domain.ActionReopen}:    {To: domain.StatusPending},
}

// Resolve looks up the transition rule for the given triple.
func Resolve(nodeType domain.NodeType, from domain.Status, action domain.Action) (transitionRule, bool) {
	rule, ok := transitions[transitionKey{Type: nodeType, From: from, Action: action}]
	return rule, ok
}

// InitialStatus returns the creation status for a node type. Both types
// start pending.
func InitialStatus(domain.NodeType) domain.Status {
	return domain.StatusPending
}
