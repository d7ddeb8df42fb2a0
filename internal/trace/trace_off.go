//go:build !wireprototrace

package trace

// Enabled is true only when this package is built with the wireprototrace
// tag. Call sites in this module call Log unconditionally; in a normal
// build Log is an empty function.
const Enabled = false

// Log emits a structured trace entry. It is a no-op unless built with the
// wireprototrace tag.
func Log(op string, kv ...any) {}
