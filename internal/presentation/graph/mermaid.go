// Package graph exports workspace graphs to Mermaid flowchart syntax for
// embedding in docs and dashboards.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// GenerateMermaid produces a Mermaid flowchart from a workspace graph.
// Planning nodes render as stadiums, execution nodes as rectangles, and
// status is expressed through class assignments.
func GenerateMermaid(g *domain.Graph) (string, error) {
	root, err := g.Root()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var walk func(node *domain.Node)
	walk = func(node *domain.Node) {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		if node.Type == domain.NodeTypePlanning {
			opener, closer = "([", "])"
		}

		label := node.Title
		if node.Isolate {
			label += " ⛶"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(label), closer))
		sb.WriteString(fmt.Sprintf("    class %s %s\n", safeID, statusClass(node.Status)))

		for _, childID := range node.Children {
			child, ok := g.Nodes[childID]
			if !ok {
				continue
			}
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", safeID, sanitizeMermaidID(child.ID)))
			walk(child)
		}
	}
	walk(root)

	sb.WriteString("    classDef pending fill:#e5e7eb,color:#374151\n")
	sb.WriteString("    classDef active fill:#bfdbfe,color:#1e3a8a\n")
	sb.WriteString("    classDef completed fill:#bbf7d0,color:#14532d\n")
	sb.WriteString("    classDef failed fill:#fecaca,color:#7f1d1d\n")
	sb.WriteString("    classDef cancelled fill:#d1d5db,color:#4b5563\n")

	return sb.String(), nil
}

func statusClass(status domain.Status) string {
	switch status {
	case domain.StatusCompleted:
		return "completed"
	case domain.StatusFailed:
		return "failed"
	case domain.StatusCancelled:
		return "cancelled"
	case domain.StatusPending:
		return "pending"
	default:
		return "active"
	}
}

// sanitizeMermaidID keeps ids safe for Mermaid: alphanumerics and
// underscores only.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}

func escapeLabel(label string) string {
	return strings.ReplaceAll(label, `"`, "#quot;")
}
