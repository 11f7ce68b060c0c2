package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/config"
)

func TestCaptureCommand_Local(t *testing.T) {
	var dumpDir string
	path := writeConfig(t, func(c *config.Config) { dumpDir = c.DumpDir })

	out, err := runCommand(t, "capture", "heap", "--local", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote heapdump to "+filepath.Join(dumpDir, "heapdump."))

	entries, err := os.ReadDir(dumpDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".heapsnapshot"))
}

func TestCaptureCommand_StoresToVolume(t *testing.T) {
	volume := t.TempDir()
	path := writeConfig(t, func(c *config.Config) {
		c.Volume = volume
		c.Report.IncludeEnv = false
	})

	out, err := runCommand(t, "capture", "nodereport", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored nodereport at "+filepath.Join(volume, "report."))
	assert.Contains(t, out, "(volume)")

	entries, err := os.ReadDir(volume)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCaptureCommand_UnknownKind(t *testing.T) {
	_, err := runCommand(t, "capture", "threaddump", "--config", writeConfig(t, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threaddump")
}

func TestCaptureCommand_RequiresKind(t *testing.T) {
	_, err := runCommand(t, "capture")
	assert.Error(t, err)
}
