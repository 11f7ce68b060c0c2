package core

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// timestampLayout renders <year><month><day>.<hour><minute><second>.
const timestampLayout = "20060102.150405"

// Namer derives artifact filenames of the form
// <prefix>.<YYYYMMDD>.<HHMMSS>.<pid>.<seq><ext>.
//
// seq is a per-process counter that is never reset, so two artifacts
// produced within the same second still get distinct names.
type Namer struct {
	pid int
	now func() time.Time
	seq atomic.Uint64
}

// NewNamer creates a namer for the current process.
func NewNamer() *Namer {
	return NewNamerAt(os.Getpid(), time.Now)
}

// NewNamerAt creates a namer with an explicit pid and clock.
func NewNamerAt(pid int, now func() time.Time) *Namer {
	if now == nil {
		now = time.Now
	}
	return &Namer{pid: pid, now: now}
}

// Next returns the next filename for kind.
func (n *Namer) Next(kind ArtifactKind) string {
	seq := n.seq.Add(1)
	return fmt.Sprintf("%s.%s.%d.%03d%s",
		kind.Prefix(), n.now().Format(timestampLayout), n.pid, seq, kind.Extension())
}

// Sequence returns the number of names handed out so far.
func (n *Namer) Sequence() uint64 {
	return n.seq.Load()
}
