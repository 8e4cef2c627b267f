// Package kassert provides debug-only structural assertions, the Go
// analogue of the kernel's UTIL_ASSERT discipline: every public and
// internal entry point asserts its invariants, and the check compiles to
// nothing in a release build.
//
// Build with -tags kassert to enable. Without the tag, True is a no-op:
// assertions are never a runtime error return channel, in debug builds or
// otherwise.
package kassert

import "fmt"

// True panics with msg (formatted printf-style with args) when cond is
// false and the kassert build tag is set. It is a compiled-out no-op
// otherwise.
func True(cond bool, msg string, args ...any) {
	assertTrue(cond, msg, args...)
}

func formatMsg(msg string, args ...any) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
