package diagnostics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

func fixedNamer() *core.Namer {
	return core.NewNamerAt(4242, func() time.Time {
		return time.Date(2017, 3, 4, 5, 6, 7, 0, time.UTC)
	})
}

func TestReportWriter_Produce(t *testing.T) {
	t.Setenv("CLOUDDIAG_TEST_SECRET", "hunter2")
	t.Setenv("CLOUDDIAG_TEST_PLAIN", "visible")

	dir := filepath.Join(t.TempDir(), "dumps")
	monitor := NewResourceMonitor(MonitorOptions{
		Interval:           time.Second,
		FDThresholdPercent: 80,
		GoroutineThreshold: 10000,
		MemoryThresholdMB:  4096,
		HistorySize:        10,
	})

	w := NewReportWriter(ReportOptions{
		Service:      "checkout",
		IncludeStack: true,
		IncludeEnv:   true,
		Monitor:      monitor,
		Namer:        fixedNamer(),
	})

	path, err := w.Produce(t.Context(), dir, core.CaptureInfo{
		RequestID: "req-1",
		Trigger:   core.TriggerAPI,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "report.20170304.050607.4242.001.json"), path)

	report, err := LoadReport(path)
	require.NoError(t, err)

	assert.Equal(t, core.TriggerAPI, report.Header.Trigger)
	assert.Equal(t, "req-1", report.Header.RequestID)
	assert.Equal(t, "checkout", report.Header.Service)
	assert.Equal(t, filepath.Base(path), report.Header.Filename)
	assert.Equal(t, os.Getpid(), report.Header.ProcessID)
	assert.NotEmpty(t, report.Header.GoVersion)
	assert.Contains(t, report.Goroutines, "goroutine ")
	assert.Equal(t, "[REDACTED]", report.Environment["CLOUDDIAG_TEST_SECRET"])
	assert.Equal(t, "visible", report.Environment["CLOUDDIAG_TEST_PLAIN"])
	assert.NotNil(t, report.Trend)
	assert.Positive(t, report.ResourceState.Goroutines)

	assert.Equal(t, int64(1), monitor.TakeSnapshot().CapturesRun)
	assert.Equal(t, 0, monitor.TakeSnapshot().CapturesActive)
}

func TestReportWriter_OptionalSections(t *testing.T) {
	t.Parallel()

	w := NewReportWriter(ReportOptions{Namer: fixedNamer()})

	path, err := w.Produce(t.Context(), t.TempDir(), core.CaptureInfo{Trigger: core.TriggerSignal})
	require.NoError(t, err)

	report, err := LoadReport(path)
	require.NoError(t, err)
	assert.Empty(t, report.Goroutines)
	assert.Empty(t, report.Environment)
	assert.Nil(t, report.Trend)
	assert.Empty(t, report.ResourceHistory)
}

func TestReportWriter_SequenceAdvances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewReportWriter(ReportOptions{Namer: fixedNamer()})

	first, err := w.Produce(t.Context(), dir, core.CaptureInfo{})
	require.NoError(t, err)
	second, err := w.Produce(t.Context(), dir, core.CaptureInfo{})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(first, ".001.json"))
	assert.True(t, strings.HasSuffix(second, ".002.json"))
}

func TestReportWriter_ExceptionReason(t *testing.T) {
	t.Parallel()

	w := NewReportWriter(ReportOptions{})
	report := w.Build(t.Context(), t.TempDir(), core.CaptureInfo{
		Trigger: core.TriggerException,
		Reason:  "index out of range",
	})

	assert.Equal(t, core.TriggerException, report.Header.Trigger)
	assert.Equal(t, "index out of range", report.Header.Reason)
}

func TestLoadReport_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadReport(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = LoadReport(bad)
	assert.Error(t, err)
}

func TestRedactEnvironment(t *testing.T) {
	t.Parallel()

	env := redactEnvironment([]string{
		"HOME=/home/app",
		"OS_PASSWORD=s3cret",
		"api_key=abc",
		"VCAP_SERVICES={}",
		"GITHUB_TOKEN=ghp_x",
		"EMPTY=",
		"=ignored",
		"malformed",
	})

	assert.Equal(t, "/home/app", env["HOME"])
	assert.Equal(t, "[REDACTED]", env["OS_PASSWORD"])
	assert.Equal(t, "[REDACTED]", env["api_key"])
	assert.Equal(t, "[REDACTED]", env["VCAP_SERVICES"])
	assert.Equal(t, "[REDACTED]", env["GITHUB_TOKEN"])
	assert.Equal(t, "", env["EMPTY"])
	assert.Len(t, env, 6)
}
