package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/config"
)

// resetState clears global flag and viper state between command runs.
func resetState() {
	viper.Reset()
	bindFlags()

	cfgFile = ""
	logLevel = "info"
	logFormat = "auto"
	captureLocal = false
	capturePID = 0
	captureTimeout = 5 * time.Minute
	initForce = false
	initFormat = "json"
	initDir = "."
	serveHost = ""
	servePort = 0
	serveNoAPI = false
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCommandContext(t, context.Background(), args...)
}

func runCommandContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetState()
	t.Cleanup(resetState)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// writeConfig writes a config file into a fresh directory and returns its
// path. mutate adjusts the defaults.
func writeConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Volume = filepath.Join(dir, "no-volume")
	cfg.DumpDir = filepath.Join(dir, "dumps")
	cfg.Monitor.Enabled = false
	cfg.Log.Level = "error"
	cfg.Log.Format = "text"
	if mutate != nil {
		mutate(cfg)
	}

	path := filepath.Join(dir, config.ConfigName+".json")
	require.NoError(t, config.WriteFile(path, cfg, true))
	return path
}
