package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// PreflightResult contains the result of pre-execution checks.
type PreflightResult struct {
	OK       bool
	Warnings []string
	Errors   []string
	Snapshot ResourceSnapshot
}

// ToolOutput is what an external tool printed.
type ToolOutput struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ErrToolNotFound is returned when the requested executable is not on PATH.
var ErrToolNotFound = errors.New("tool not found")

// ToolRunner runs external capture tools such as gcore with resource
// checks and a hard timeout.
type ToolRunner struct {
	monitor          *ResourceMonitor
	logger           *slog.Logger
	minFreeFDPercent int
	lookPath         func(string) (string, error)
}

// NewToolRunner creates a tool runner. With a nil monitor preflight checks
// always pass.
func NewToolRunner(monitor *ResourceMonitor, logger *slog.Logger, minFreeFDPercent int) *ToolRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolRunner{
		monitor:          monitor,
		logger:           logger,
		minFreeFDPercent: minFreeFDPercent,
		lookPath:         exec.LookPath,
	}
}

// RunPreflight performs pre-execution health checks.
func (r *ToolRunner) RunPreflight() PreflightResult {
	result := PreflightResult{OK: true}

	if r.monitor == nil {
		return result
	}

	result.Snapshot = r.monitor.TakeSnapshot()

	// A forked tool needs descriptors for its own pipes
	if result.Snapshot.MaxFDs > 0 {
		freeFDPercent := 100.0 - result.Snapshot.FDUsagePercent
		if r.minFreeFDPercent > 0 && freeFDPercent < float64(r.minFreeFDPercent) {
			result.OK = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("insufficient free FDs: %.1f%% free (minimum: %d%%)",
					freeFDPercent, r.minFreeFDPercent))
		} else if r.minFreeFDPercent > 0 && freeFDPercent < float64(r.minFreeFDPercent)*1.5 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("FD usage approaching limit: %.1f%% free", freeFDPercent))
		}
	}

	trend := r.monitor.GetTrend()
	if !trend.IsHealthy {
		result.Warnings = append(result.Warnings, trend.Warnings...)
	}

	return result
}

// Available reports whether name resolves to an executable.
func (r *ToolRunner) Available(name string) (string, bool) {
	path, err := r.lookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

// Run executes name with args, bounded by timeout. A non-positive timeout
// means the context alone bounds the run.
func (r *ToolRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (ToolOutput, error) {
	var out ToolOutput

	path, ok := r.Available(name)
	if !ok {
		return out, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	preflight := r.RunPreflight()
	for _, w := range preflight.Warnings {
		r.logger.Warn("tool preflight warning", "tool", name, "warning", w)
	}
	if !preflight.OK {
		return out, fmt.Errorf("preflight failed for %s: %s", name, strings.Join(preflight.Errors, "; "))
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.monitor.BeginCapture()
	defer r.monitor.EndCapture()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out.Duration = time.Since(start)
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()

	r.logger.Debug("tool finished",
		"tool", name,
		"duration", out.Duration,
		"error", err,
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, fmt.Errorf("%s: %w", name, ctxErr)
	}
	if err != nil {
		msg := strings.TrimSpace(out.Stderr)
		if msg == "" {
			return out, fmt.Errorf("running %s: %w", name, err)
		}
		return out, fmt.Errorf("running %s: %w: %s", name, err, msg)
	}
	return out, nil
}
