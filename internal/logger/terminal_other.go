//go:build !linux && !darwin

package logger

// isTerminal conservatively reports false on platforms without a terminal
// probe; color output is disabled there.
func isTerminal(fd uintptr) bool {
	return false
}
