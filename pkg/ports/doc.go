// Package ports defines the interfaces between the Arbor core and its
// collaborators: graph persistence, free-text content, version control and
// distributed locking. Adapters under pkg/adapters implement them; the core
// services accept them at construction (no ambient globals).
package ports
