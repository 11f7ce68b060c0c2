//go:build !windows

package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/config"
)

func TestCaptureCommand_TimeoutDoesNotWaitForCapture(t *testing.T) {
	tool := filepath.Join(t.TempDir(), "slow-gcore")
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755))

	path := writeConfig(t, func(c *config.Config) {
		c.CoreDumpTool = tool
		c.CoreDumpTimeout = "1m"
	})

	begin := time.Now()
	_, err := runCommand(t, "capture", "core", "--config", path, "--timeout", "200ms")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out after 200ms")
	assert.Less(t, time.Since(begin), 10*time.Second)
}
