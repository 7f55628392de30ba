// Package domain contains the core entities of the Arbor work graph:
// nodes, references, dispatch configuration and the typed error taxonomy.
// It has no dependencies on storage or transport; adapters map these
// types to their own wire formats.
package domain
