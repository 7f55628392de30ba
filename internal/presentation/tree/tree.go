// Package tree renders a workspace graph as a status-colored tree for the
// terminal.
package tree

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"

	"github.com/aretw0/arbor/pkg/domain"
)

// statusColors maps node status to a terminal color.
var statusColors = map[domain.Status]string{
	domain.StatusPending:      "#6b7280", // gray
	domain.StatusImplementing: "#60a5fa", // blue
	domain.StatusValidating:   "#a78bfa", // violet
	domain.StatusPlanning:     "#60a5fa",
	domain.StatusMonitoring:   "#fbbf24", // amber
	domain.StatusCompleted:    "#34d399", // green
	domain.StatusFailed:       "#f87171", // red
	domain.StatusCancelled:    "#9ca3af",
}

// Renderer draws workspace trees. Color output degrades gracefully on dumb
// terminals via termenv's profile detection.
type Renderer struct {
	profile termenv.Profile
}

// NewRenderer creates a Renderer using the detected color profile.
func NewRenderer() *Renderer {
	return &Renderer{profile: termenv.ColorProfile()}
}

// NewPlainRenderer creates a Renderer that never emits color codes.
func NewPlainRenderer() *Renderer {
	return &Renderer{profile: termenv.Ascii}
}

// Render returns the tree for the whole workspace, root first.
func (r *Renderer) Render(g *domain.Graph) (string, error) {
	root, err := g.Root()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	header := fmt.Sprintf("%s (%s)", g.WorkspaceID, g.Dispatch.Mode)
	sb.WriteString(header + "\n")

	r.renderNode(&sb, g, root, "", true)
	return sb.String(), nil
}

func (r *Renderer) renderNode(sb *strings.Builder, g *domain.Graph, node *domain.Node, prefix string, last bool) {
	connector := "├── "
	childPrefix := prefix + "│   "
	if last {
		connector = "└── "
		childPrefix = prefix + "    "
	}
	if node.IsRoot() {
		connector = ""
		childPrefix = ""
	}

	sb.WriteString(prefix + connector + r.label(node) + "\n")

	for i, childID := range node.Children {
		child, ok := g.Nodes[childID]
		if !ok {
			continue
		}
		r.renderNode(sb, g, child, childPrefix, i == len(node.Children)-1)
	}
}

// label builds one line: status glyph, title, then markers for type, role,
// isolation and dispatch state.
func (r *Renderer) label(node *domain.Node) string {
	glyph := r.colored(statusGlyph(node.Status), statusColors[node.Status])

	var markers []string
	if node.Type == domain.NodeTypePlanning {
		markers = append(markers, "plan")
	}
	if node.Role != "" {
		markers = append(markers, string(node.Role))
	}
	if node.Isolate {
		markers = append(markers, "isolated")
	}
	if node.Dispatch != nil && node.Dispatch.Status == domain.DispatchAwaitingCommit {
		markers = append(markers, "awaiting commit")
	}

	line := fmt.Sprintf("%s %s [%s]", glyph, node.Title, node.Status)
	if len(markers) > 0 {
		line += " " + r.colored("("+strings.Join(markers, ", ")+")", "#6b7280")
	}
	return line
}

func (r *Renderer) colored(s, hex string) string {
	return termenv.String(s).Foreground(r.profile.Color(hex)).String()
}

func statusGlyph(status domain.Status) string {
	switch status {
	case domain.StatusCompleted:
		return "✓"
	case domain.StatusFailed:
		return "✗"
	case domain.StatusCancelled:
		return "⊘"
	case domain.StatusImplementing, domain.StatusValidating,
		domain.StatusPlanning, domain.StatusMonitoring:
		return "●"
	default:
		return "○"
	}
}
