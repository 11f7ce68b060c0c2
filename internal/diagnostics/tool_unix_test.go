//go:build !windows

package diagnostics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolRunner_Run(t *testing.T) {
	t.Parallel()

	monitor := NewResourceMonitor(MonitorOptions{Interval: time.Second, HistorySize: 10})
	r := NewToolRunner(monitor, nil, 0)

	out, err := r.Run(t.Context(), 5*time.Second, "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Equal(t, int64(1), monitor.TakeSnapshot().CapturesRun)
	assert.Equal(t, 0, monitor.TakeSnapshot().CapturesActive)
}

func TestToolRunner_Failure(t *testing.T) {
	t.Parallel()

	r := NewToolRunner(nil, nil, 0)
	out, err := r.Run(t.Context(), 5*time.Second, "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, "boom\n", out.Stderr)
}

func TestToolRunner_Timeout(t *testing.T) {
	t.Parallel()

	r := NewToolRunner(nil, nil, 0)
	start := time.Now()
	_, err := r.Run(t.Context(), 50*time.Millisecond, "sleep", "5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}
