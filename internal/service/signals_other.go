//go:build !linux && !windows

package service

import (
	"os"
	"syscall"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

func platformSignals() map[os.Signal]core.ArtifactKind {
	return map[os.Signal]core.ArtifactKind{
		syscall.SIGUSR1: core.KindReport,
		syscall.SIGUSR2: core.KindHeapSnapshot,
	}
}
