package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/clouddiag"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/service"
)

var captureCmd = &cobra.Command{
	Use:   "capture <kind>",
	Short: "Capture a diagnostic artifact",
	Long: `Capture a diagnostic artifact and store it in the resolved storage tier.

Kinds: nodereport (report), heapdump (heap), coredump (core).

With --pid the artifact is captured by another clouddiag-enabled process:
the signal bound to the kind is sent to that process instead.

Examples:
  # Capture a heap snapshot and store it
  clouddiag capture heapdump

  # Write a report to the dump directory only
  clouddiag capture nodereport --local

  # Ask a running service to capture a report
  clouddiag capture nodereport --pid 4242`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"nodereport", "heapdump", "coredump"},
	RunE:      runCapture,
}

var (
	captureLocal   bool
	capturePID     int
	captureTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(captureCmd)
	captureCmd.Flags().BoolVar(&captureLocal, "local", false,
		"Write to the dump directory without persisting")
	captureCmd.Flags().IntVar(&capturePID, "pid", 0,
		"Signal a running process instead of capturing in-process")
	captureCmd.Flags().DurationVar(&captureTimeout, "timeout", 5*time.Minute,
		"Maximum time to wait for the capture; on expiry it is cancelled")
}

func runCapture(cmd *cobra.Command, args []string) error {
	kind, err := core.ParseArtifactKind(args[0])
	if err != nil {
		return err
	}

	if capturePID > 0 {
		return signalProcess(cmd, capturePID, kind)
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Monitor.Enabled = false

	diag, err := clouddiag.New(func(o *clouddiag.Options) {
		o.Config = cfg
		o.BaseContext = cmd.Context()
	})
	if err != nil {
		return err
	}
	// A timed-out capture is abandoned rather than waited for again.
	grace := cfg.ShutdownGraceDuration()
	defer func() { _ = diag.Shutdown(grace) }()

	done := make(chan core.Result, 1)
	cb := func(res core.Result) { done <- res }
	info := core.CaptureInfo{Trigger: core.TriggerCLI}

	if captureLocal {
		diag.Coordinator().Capture(kind, info, cb)
	} else {
		diag.Coordinator().Store(kind, info, cb)
	}

	select {
	case res := <-done:
		if res.Err != nil {
			return fmt.Errorf("capturing %s: %w", kind, res.Err)
		}
		if captureLocal {
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s to %s\n", kind, res.Location)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s at %s (%s)\n", kind, res.Location, diag.Tier())
		}
		return nil
	case <-time.After(captureTimeout):
		grace = 0
		return fmt.Errorf("capturing %s: timed out after %s", kind, captureTimeout)
	}
}

func signalProcess(cmd *cobra.Command, pid int, kind core.ArtifactKind) error {
	var sig os.Signal
	for s, k := range service.DefaultSignals() {
		if k == kind {
			sig = s
			break
		}
	}
	if sig == nil {
		return fmt.Errorf("no signal triggers %s on %s", kind, runtime.GOOS)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signaling process %d: %w", pid, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to process %d (%s)\n", sig, pid, kind)
	return nil
}
