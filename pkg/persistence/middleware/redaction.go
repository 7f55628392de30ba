package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// redactionMask replaces every pattern match in stored free text.
const redactionMask = "***"

type redactionMiddleware struct {
	next     ports.GraphStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks pattern matches in
// the free-text fields of stored graphs (requirements, conclusions, notes,
// reference descriptions). The in-memory graph handed to Write is left
// untouched; only the stored copy is masked.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.GraphStore) ports.GraphStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Write(ctx context.Context, workspaceID string, g *domain.Graph) error {
	// Clone so the caller's in-memory graph keeps its original text.
	cloned := g.Clone()

	for _, node := range cloned.Nodes {
		node.Requirement = m.mask(node.Requirement)
		node.Conclusion = m.mask(node.Conclusion)
		node.Notes = m.mask(node.Notes)
		for i := range node.References {
			node.References[i].Description = m.mask(node.References[i].Description)
		}
	}
	for i := range cloned.References {
		cloned.References[i].Description = m.mask(cloned.References[i].Description)
	}

	return m.next.Write(ctx, workspaceID, cloned)
}

func (m *redactionMiddleware) Read(ctx context.Context, workspaceID string) (*domain.Graph, error) {
	return m.next.Read(ctx, workspaceID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, workspaceID string) error {
	return m.next.Delete(ctx, workspaceID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *redactionMiddleware) mask(text string) string {
	if text == "" {
		return ""
	}
	for _, p := range m.patterns {
		text = p.ReplaceAllString(text, redactionMask)
	}
	return text
}
