//go:build linux || darwin

package diagnostics

import (
	"os"
	"runtime"
	"syscall"
)

// CountFDs returns the number of descriptors the process holds and its
// RLIMIT_NOFILE soft limit. Zeroes mean the count is unavailable.
func CountFDs() (open, limit int) {
	dir := "/proc/self/fd"
	if runtime.GOOS == "darwin" {
		dir = "/dev/fd"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	// minus the descriptor ReadDir held on dir
	open = max(len(entries)-1, 0)

	var rl syscall.Rlimit
	if syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rl) == nil {
		limit = int(rl.Cur) // #nosec G115 -- fits in int on supported platforms
	}
	return open, limit
}
