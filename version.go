package arbor

import _ "embed"

// Version is the library version, embedded from the VERSION file. Callers
// should strings.TrimSpace it before display.
//
//go:embed VERSION
var Version string
