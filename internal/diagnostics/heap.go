package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// HeapSnapshotter writes heap profiles in pprof format.
type HeapSnapshotter struct {
	monitor *ResourceMonitor
	namer   *core.Namer
	logger  *slog.Logger
}

// NewHeapSnapshotter creates a heap snapshotter. monitor may be nil.
func NewHeapSnapshotter(monitor *ResourceMonitor, namer *core.Namer, logger *slog.Logger) *HeapSnapshotter {
	if namer == nil {
		namer = core.NewNamer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HeapSnapshotter{monitor: monitor, namer: namer, logger: logger}
}

// Produce writes a heap snapshot into dir under a derived name. It
// implements core.Producer.
func (h *HeapSnapshotter) Produce(ctx context.Context, dir string, _ core.CaptureInfo) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating dump dir: %w", err)
	}
	path := filepath.Join(dir, h.namer.Next(core.KindHeapSnapshot))
	if err := h.WriteSnapshot(path); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSnapshot forces a collection and writes the heap profile to path.
func (h *HeapSnapshotter) WriteSnapshot(path string) (err error) {
	h.monitor.BeginCapture()
	defer h.monitor.EndCapture()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating heap snapshot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing heap snapshot: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	// Up-to-date allocation statistics
	runtime.GC()

	if err := pprof.Lookup("heap").WriteTo(f, 0); err != nil {
		return fmt.Errorf("writing heap profile: %w", err)
	}

	if info, statErr := f.Stat(); statErr == nil {
		h.logger.Debug("heap snapshot written", "path", path, "bytes", info.Size())
	}
	return nil
}
