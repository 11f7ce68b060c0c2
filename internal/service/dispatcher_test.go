package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/storage"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/testutil"
)

func TestDispatcher_OnTrigger(t *testing.T) {
	t.Parallel()

	volume := t.TempDir()
	f := newFixture(t, storage.NewVolume(volume, "dumps"), "linux")
	d := NewDispatcher(f.coord, nil, 0, nil)

	d.OnTrigger(core.KindHeapSnapshot)
	f.coord.Wait()

	entries, err := os.ReadDir(volume)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	calls := f.snapshot.Calls()
	require.Len(t, calls, 1)
	info, ok := calls[0].Args.(core.CaptureInfo)
	require.True(t, ok)
	assert.Equal(t, core.TriggerSignal, info.Trigger)
	assert.NotEmpty(t, info.RequestID)
}

func TestDispatcher_OnTriggerUnsupportedDoesNotPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, storage.NewLocalDisk("dumps"), "windows")
	d := NewDispatcher(f.coord, nil, 0, nil)

	assert.NotPanics(t, func() {
		d.OnTrigger(core.KindCoreImage)
		f.coord.Wait()
	})
	assert.Equal(t, 0, f.coreImg.CallCount("Produce"))
}

func TestDispatcher_ExceptionHookRequiresMode(t *testing.T) {
	t.Parallel()

	f := newFixture(t, storage.NewLocalDisk("dumps"), "linux")

	d := NewDispatcher(f.coord, core.DefaultModes(), 0, nil)
	assert.False(t, d.InstallExceptionHook())

	modes := core.DefaultModes()
	modes[core.KindReport] = "api+signal+exception"
	armed := NewDispatcher(f.coord, modes, 0, nil)
	assert.True(t, armed.InstallExceptionHook())
	assert.True(t, armed.InstallExceptionHook())
}

func TestDispatcher_RecoverCapturesThenRepanics(t *testing.T) {
	t.Parallel()

	volume := t.TempDir()
	f := newFixture(t, storage.NewVolume(volume, "dumps"), "linux")
	modes := core.Modes{core.KindReport: "exception"}
	d := NewDispatcher(f.coord, modes, time.Second, nil)
	require.True(t, d.InstallExceptionHook())

	var recovered interface{}
	var persisted int
	func() {
		defer func() {
			recovered = recover()
			entries, _ := os.ReadDir(volume)
			persisted = len(entries)
		}()
		defer d.Recover()
		panic("boom")
	}()

	assert.Equal(t, "boom", recovered)
	assert.Equal(t, 1, persisted)

	calls := f.report.Calls()
	require.Len(t, calls, 1)
	info := calls[0].Args.(core.CaptureInfo)
	assert.Equal(t, core.TriggerException, info.Trigger)
	assert.Equal(t, "boom", info.Reason)
}

func TestDispatcher_RecoverUnarmedOnlyRepanics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, storage.NewLocalDisk("dumps"), "linux")
	d := NewDispatcher(f.coord, nil, 0, nil)

	var recovered interface{}
	func() {
		defer func() { recovered = recover() }()
		defer d.Recover()
		panic("unarmed")
	}()

	assert.Equal(t, "unarmed", recovered)
	assert.Equal(t, 0, f.report.CallCount("Produce"))
}

func TestDispatcher_RecoverWithoutPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, storage.NewLocalDisk("dumps"), "linux")
	d := NewDispatcher(f.coord, core.Modes{core.KindReport: "exception"}, 0, nil)
	d.InstallExceptionHook()

	assert.NotPanics(t, func() {
		defer d.Recover()
	})
	assert.Equal(t, 0, f.report.CallCount("Produce"))
}

func TestDispatcher_HandlePanicBoundedWait(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	coord := NewCoordinator(CoordinatorConfig{
		DumpDir: t.TempDir(),
		Producers: core.Producers{
			Report: core.ProducerFunc(func(context.Context, string, core.CaptureInfo) (string, error) {
				<-release
				return "", testutil.ErrTest
			}),
		},
	})
	d := NewDispatcher(coord, core.Modes{core.KindReport: "exception"}, 50*time.Millisecond, nil)
	d.InstallExceptionHook()

	start := time.Now()
	d.HandlePanic("stuck")
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}
