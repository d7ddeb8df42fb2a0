// Package trace provides build-tag-gated tracing for the codec and walk
// engine. When built without the "wireprototrace" tag, [Enabled] is a
// constant false and [Log] compiles away to nothing, so the fast path pays
// no cost for the logging calls sprinkled through the hot loops.
package trace

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the shared structured logger used when tracing is enabled. It
// defaults to error level so that constructing it in a non-traced build
// (where nothing ever logs through it) has no observable effect.
var Logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	Level:           log.ErrorLevel,
})

// Assert panics if cond is false. Unlike [Log], this runs in every build:
// it guards invariants that must never be violated by correct callers,
// rather than being a pure diagnostic aid.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("wireproto: internal assertion failed: "+format, args...))
	}
}
