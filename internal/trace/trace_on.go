//go:build wireprototrace

package trace

// Enabled is true because this package was built with the wireprototrace
// tag.
const Enabled = true

// Log emits a structured trace entry at debug level: op names the codec or
// walk transition (e.g. "decode-field", "presence-install", "scope-enter"),
// and kv is a flat list of alternating key/value pairs in the style of
// [log.Logger.Debug].
func Log(op string, kv ...any) {
	Logger.Debug(op, kv...)
}
