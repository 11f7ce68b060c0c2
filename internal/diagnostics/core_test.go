package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/testutil"
)

func fakeDump(ctx context.Context, dir string, pid int) (string, error) {
	path := filepath.Join(dir, "core.4242")
	return path, os.WriteFile(path, []byte("core image"), 0o600)
}

func TestCoreCollector_Produce(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	out := t.TempDir()
	exe := testutil.TempFile(t, src, "app", "binary")
	lib := testutil.TempFile(t, src, "libssl.so.3", "elf")
	missing := filepath.Join(src, "libgone.so")

	c := NewCoreCollector(CoreOptions{
		Namer: fixedNamer(),
		GOOS:  "linux",
		PID:   4242,
		Dump:  fakeDump,
		Libraries: func(context.Context, int) []string {
			return []string{exe, lib, missing}
		},
		Exe: func() (string, error) { return exe, nil },
	})

	path, err := c.Produce(t.Context(), out, core.CaptureInfo{Trigger: core.TriggerSignal, RequestID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "core.20170304.050607.4242.001.tar.gz"), path)

	names, err := ArchiveEntries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		ManifestName,
		"core/core.4242",
		"bin/app",
		"lib/" + strings.TrimPrefix(filepath.ToSlash(lib), "/"),
	}, names)

	m, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 4242, m.ProcessID)
	assert.Equal(t, "gcore", m.Tool)
	assert.Equal(t, core.TriggerSignal, m.Trigger)
	assert.Equal(t, "r1", m.RequestID)
	assert.Equal(t, exe, m.Executable)
	assert.Equal(t, []string{lib}, m.Libraries)
	assert.Equal(t, []string{missing}, m.Skipped)

	// Work directory is removed
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCoreCollector_Windows(t *testing.T) {
	t.Parallel()

	c := NewCoreCollector(CoreOptions{GOOS: "windows", Dump: fakeDump})
	_, err := c.Produce(t.Context(), t.TempDir(), core.CaptureInfo{})
	require.Error(t, err)
	assert.True(t, core.IsCategory(err, core.ErrCatUnsupported))
	assert.ErrorIs(t, err, core.ErrUnsupportedPlatform)
}

func TestCoreCollector_DumpFailure(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	c := NewCoreCollector(CoreOptions{
		GOOS: "linux",
		Dump: func(context.Context, string, int) (string, error) {
			return "", testutil.ErrTest
		},
	})

	_, err := c.Produce(t.Context(), out, core.CaptureInfo{})
	assert.ErrorIs(t, err, testutil.ErrTest)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCoreCollector_MissingTool(t *testing.T) {
	t.Parallel()

	c := NewCoreCollector(CoreOptions{
		Tool: "clouddiag-no-such-gcore",
		GOOS: "linux",
	})

	_, err := c.Produce(t.Context(), t.TempDir(), core.CaptureInfo{})
	assert.ErrorIs(t, err, ErrToolNotFound)
}
