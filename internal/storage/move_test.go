package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/testutil"
)

func TestMoveFile_SameDevice(t *testing.T) {
	t.Parallel()

	src := testutil.TempFile(t, t.TempDir(), "heapdump.1.heapsnapshot", "heap")
	volume := t.TempDir()

	res, err := MoveFile(src, volume)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(volume, "heapdump.1.heapsnapshot"), res.Path)
	assert.False(t, res.Copied)
	assert.NoError(t, res.SourceRemoveErr)
	assert.False(t, testutil.FileExists(src))

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "heap", string(data))
}

func TestMoveFile_MissingSource(t *testing.T) {
	t.Parallel()

	_, err := MoveFile(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	assert.Error(t, err)
}

func TestMoveFile_MissingVolume(t *testing.T) {
	t.Parallel()

	src := testutil.TempFile(t, t.TempDir(), "report.json", "{}")
	_, err := MoveFile(src, filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
	assert.True(t, testutil.FileExists(src), "failed move must leave the source in place")
}

func TestCopyAtomic(t *testing.T) {
	t.Parallel()

	src := testutil.TempFile(t, t.TempDir(), "core.tar.gz", "archive-bytes")
	dst := filepath.Join(t.TempDir(), "core.tar.gz")

	require.NoError(t, copyAtomic(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "archive-bytes", string(data))
	assert.True(t, testutil.FileExists(src), "copy does not remove the source")
}
