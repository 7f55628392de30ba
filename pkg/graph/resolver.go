package graph

import (
	"context"
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Resolver assembles executor context for a node: the ancestor chain, the
// active reference set and terminal child conclusions. It is a pure read:
// the graph is loaded once per call and never written, so concurrent
// resolves are safe.
type Resolver struct {
	store ports.GraphStore
}

// NewResolver creates the context resolver with its graph store.
func NewResolver(store ports.GraphStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve builds the context for one node.
//
// The chain is ordered root-to-node. Walking up from the node, the first
// ancestor with the isolate flag set becomes the top of the chain: it is
// included as the boundary, but its own requirement is withheld and
// everything above it is cut off, so an isolated subtree never sees
// requirements from outside its firewall.
func (r *Resolver) Resolve(ctx context.Context, workspaceID, nodeID string) (*domain.NodeContext, error) {
	graph, err := r.store.Read(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	node, err := graph.Node(nodeID)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", nodeID, err)
	}

	chain, truncated, err := r.buildChain(graph, node)
	if err != nil {
		return nil, err
	}

	result := &domain.NodeContext{
		NodeID:    node.ID,
		Chain:     chain,
		Truncated: truncated,
		Rules:     append([]string(nil), graph.Rules...),
	}

	// Active references: chain entries root-to-node (the node itself is
	// the last entry), de-duplicated by target, first occurrence wins.
	seen := make(map[string]bool)
	for _, entry := range chain {
		for _, ref := range entry.References {
			if seen[ref.Target] {
				continue
			}
			seen[ref.Target] = true
			result.References = append(result.References, ref)
		}
	}

	// Child conclusions in insertion order, terminal children only.
	for _, childID := range node.Children {
		child, err := graph.Node(childID)
		if err != nil {
			return nil, fmt.Errorf("child %s: %w", childID, domain.ErrGraphCorrupted)
		}
		if !child.Status.Terminal() {
			continue
		}
		result.Children = append(result.Children, domain.ChildConclusion{
			NodeID:     child.ID,
			Title:      child.Title,
			Status:     child.Status,
			Conclusion: child.Conclusion,
		})
	}

	return result, nil
}

// buildChain walks from the node to the root (or the nearest isolated
// ancestor) and returns the entries in root-to-node order.
func (r *Resolver) buildChain(graph *domain.Graph, node *domain.Node) ([]domain.ContextEntry, bool, error) {
	var reversed []domain.ContextEntry
	truncated := false

	current := node
	for {
		entry := domain.ContextEntry{
			NodeID:      current.ID,
			Title:       current.Title,
			Requirement: current.Requirement,
			Conclusion:  current.Conclusion,
			Notes:       current.Notes,
			References:  current.ActiveReferences(),
		}

		// The starting node's own isolate flag shields its descendants,
		// not itself; only ancestors act as boundaries here. The boundary
		// entry stays in the chain but its requirement is withheld.
		if current.ID != node.ID && current.Isolate {
			entry.Requirement = ""
			reversed = append(reversed, entry)
			truncated = true
			break
		}
		reversed = append(reversed, entry)
		if current.ParentID == "" {
			break
		}

		parent, err := graph.Node(current.ParentID)
		if err != nil {
			return nil, false, fmt.Errorf("ancestor %s: %w", current.ParentID, domain.ErrGraphCorrupted)
		}
		current = parent
	}

	chain := make([]domain.ContextEntry, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		chain = append(chain, reversed[i])
	}
	return chain, truncated, nil
}
