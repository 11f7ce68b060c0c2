package service

import (
	"os"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

func platformSignals() map[os.Signal]core.ArtifactKind {
	return map[os.Signal]core.ArtifactKind{}
}
