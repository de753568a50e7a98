//go:build !release

package assert

import "fmt"

// That panics with the formatted message when cond is false. Compiled out in release builds.
func That(cond bool, format string, args ...any) { //nolint:goprintffuncname // it's ok
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Unreachable marks a code path that must never execute.
func Unreachable(format string, args ...any) { //nolint:goprintffuncname // it's ok
	panic("unreachable: " + fmt.Sprintf(format, args...))
}
