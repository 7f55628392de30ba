// Package middleware wraps a GraphStore with cross-cutting persistence
// behavior: encryption at rest and free-text redaction. Middlewares compose
// outside-in; the innermost store does the actual IO.
package middleware

import "github.com/aretw0/arbor/pkg/ports"

// Middleware allows wrapping a GraphStore to add behavior.
type Middleware func(ports.GraphStore) ports.GraphStore

// Chain applies the middlewares to the store, first middleware outermost.
func Chain(store ports.GraphStore, middlewares ...Middleware) ports.GraphStore {
	for i := len(middlewares) - 1; i >= 0; i-- {
		store = middlewares[i](store)
	}
	return store
}
