package service

import (
	"os"
	"syscall"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// Real-time signals SIGRTMIN+1..+3 as numbered by glibc. Signal 34 is
// taken by the Go runtime (musl SIGSYNCCALL) and cannot be delivered
// through os/signal; sending it terminates the process.
const (
	sigReport   = syscall.Signal(35)
	sigHeapDump = syscall.Signal(36)
	sigCoreDump = syscall.Signal(37)
)

func platformSignals() map[os.Signal]core.ArtifactKind {
	return map[os.Signal]core.ArtifactKind{
		sigReport:   core.KindReport,
		sigHeapDump: core.KindHeapSnapshot,
		sigCoreDump: core.KindCoreImage,
	}
}
