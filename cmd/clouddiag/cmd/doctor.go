package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/clouddiag"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/config"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/fsutil"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/logging"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, storage and capture tools",
	Long:  "Verify the configuration, show which storage tier would be used and check that capture tools are available.",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Checking configuration...")
	fmt.Fprintln(out)

	cfg, loader, err := loadConfig()
	if err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				fmt.Fprintf(out, "  ✗ %s: %s (got: %v)\n", e.Field, e.Message, e.Value)
			}
		} else {
			fmt.Fprintf(out, "  ✗ %s\n", err)
		}
		fmt.Fprintln(out)
		return fmt.Errorf("configuration check failed")
	}
	if file := loader.ConfigFile(); file != "" {
		fmt.Fprintf(out, "  ✓ config file %s\n", file)
	} else {
		fmt.Fprintln(out, "  ○ no config file, using defaults")
	}
	fmt.Fprintln(out, "  ✓ configuration valid")
	fmt.Fprintln(out)

	ok := true

	fmt.Fprintln(out, "Checking storage...")
	fmt.Fprintln(out)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cfg.Monitor.Enabled = false
	diag, err := clouddiag.New(func(o *clouddiag.Options) {
		o.Config = cfg
		o.Logger = logging.NewNop()
		o.BaseContext = ctx
	})
	if err != nil {
		return err
	}
	defer func() { _ = diag.Close() }()

	switch diag.Tier() {
	case core.TierLocalVolume:
		fmt.Fprintf(out, "  ✓ persistent volume %s\n", cfg.Volume)
	case core.TierObjectStorage:
		fmt.Fprintf(out, "  ✓ Object Storage service, container %q\n", cfg.ObjectStorage)
	default:
		fmt.Fprintln(out, "  ○ no persistent storage, artifacts stay on the local disk")
	}

	if err := fsutil.EnsureWritable(cfg.DumpDir); err != nil {
		fmt.Fprintf(out, "  ✗ dump dir %s: %s\n", cfg.DumpDir, err)
		ok = false
	} else {
		fmt.Fprintf(out, "  ✓ dump dir %s writable\n", cfg.DumpDir)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Checking capture tools...")
	fmt.Fprintln(out)
	printToolCheck(out, cfg)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Checking triggers...")
	fmt.Fprintln(out)
	printTriggers(out, diag, cfg)
	fmt.Fprintln(out)

	if !ok {
		return fmt.Errorf("doctor found problems")
	}
	fmt.Fprintln(out, "Ready to capture diagnostics")
	return nil
}

func printToolCheck(out io.Writer, cfg *config.Config) {
	if runtime.GOOS == "windows" {
		fmt.Fprintln(out, "  ○ core dumps are not supported on windows")
		return
	}
	runner := diagnostics.NewToolRunner(nil, nil, 0)
	if path, found := runner.Available(cfg.CoreDumpTool); found {
		fmt.Fprintf(out, "  ✓ %s (%s)\n", cfg.CoreDumpTool, path)
	} else {
		fmt.Fprintf(out, "  ○ %s not found (optional, core dumps will fail)\n", cfg.CoreDumpTool)
	}
}

func printTriggers(out io.Writer, diag *clouddiag.Diagnostics, cfg *config.Config) {
	modes := cfg.Modes()
	for _, kind := range core.ArtifactKinds {
		fmt.Fprintf(out, "  %-10s %s\n", kind, modes[kind])
	}

	var lines []string
	for sig, kind := range diag.Signals().Bindings() {
		lines = append(lines, fmt.Sprintf("  ✓ %s → %s", sig, kind))
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		fmt.Fprintln(out, "  ○ no signal triggers on this platform")
	}
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}

	if modes.Enabled(core.KindReport, core.CapabilityException) {
		fmt.Fprintf(out, "  ✓ panic reports armed (wait %s)\n", cfg.ExceptionWaitDuration())
	}
}
