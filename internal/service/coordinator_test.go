package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/storage"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/testutil"
)

const resultTimeout = 5 * time.Second

type coordinatorFixture struct {
	coord    *Coordinator
	dumpDir  string
	report   *testutil.MockProducer
	snapshot *testutil.MockProducer
	coreImg  *testutil.MockProducer
}

func newFixture(t *testing.T, dest *storage.Destination, goos string) *coordinatorFixture {
	t.Helper()
	producers, report, snapshot, coreImg := testutil.MockProducers()
	dumpDir := t.TempDir()
	coord := NewCoordinator(CoordinatorConfig{
		Destination: dest,
		Producers:   producers,
		DumpDir:     dumpDir,
		GOOS:        goos,
	})
	return &coordinatorFixture{
		coord:    coord,
		dumpDir:  dumpDir,
		report:   report,
		snapshot: snapshot,
		coreImg:  coreImg,
	}
}

func TestCoordinator_StoreHeapDumpToVolume(t *testing.T) {
	t.Parallel()

	volume := t.TempDir()
	f := newFixture(t, storage.NewVolume(volume, "dumps"), "linux")
	results := testutil.NewResultCollector(2)

	f.coord.StoreHeapDump(results.Callback())

	res := results.Wait(t, resultTimeout)
	require.NoError(t, res.Err)
	assert.Equal(t, core.KindHeapSnapshot, res.Kind)
	assert.NotEmpty(t, res.RequestID)
	assert.Equal(t, volume, filepath.Dir(res.Location))
	base := filepath.Base(res.Location)
	assert.True(t, strings.HasPrefix(base, "heapdump."))
	assert.True(t, strings.HasSuffix(base, ".heapsnapshot"))
	assert.True(t, testutil.FileExists(res.Location))

	results.AssertNoMore(t, 50*time.Millisecond)
}

func TestCoordinator_StoreToObjectStorage(t *testing.T) {
	t.Parallel()

	store := testutil.NewMockObjectStore()
	f := newFixture(t, storage.NewObjectStorage(store, "dumps"), "linux")
	results := testutil.NewResultCollector(1)

	f.coord.StoreNodeReport(results.Callback())

	res := results.Wait(t, resultTimeout)
	require.NoError(t, res.Err)
	assert.True(t, strings.HasPrefix(res.Location, "dumps/report."))
	assert.Equal(t, 1, store.ObjectCount())

	produced := f.report.Produced()
	require.Len(t, produced, 1)
	assert.False(t, testutil.FileExists(produced[0]))
}

func TestCoordinator_UploadFailure(t *testing.T) {
	t.Parallel()

	store := testutil.NewMockObjectStore().WithUploadError(errors.New("503 service unavailable"))
	f := newFixture(t, storage.NewObjectStorage(store, "dumps"), "linux")
	results := testutil.NewResultCollector(1)

	f.coord.StoreHeapDump(results.Callback())

	res := results.Wait(t, resultTimeout)
	assert.ErrorIs(t, res.Err, core.ErrTransferFailed)
	assert.Empty(t, res.Location)

	produced := f.snapshot.Produced()
	require.Len(t, produced, 1)
	assert.False(t, testutil.FileExists(produced[0]))
}

func TestCoordinator_LocalDiskKeepsFile(t *testing.T) {
	t.Parallel()

	f := newFixture(t, storage.NewLocalDisk("dumps"), "linux")
	results := testutil.NewResultCollector(1)

	f.coord.StoreCoreDump(results.Callback())

	res := results.Wait(t, resultTimeout)
	require.NoError(t, res.Err)
	assert.Equal(t, f.dumpDir, filepath.Dir(res.Location))
	assert.True(t, testutil.FileExists(res.Location))
}

func TestCoordinator_CaptureFailureShortCircuits(t *testing.T) {
	t.Parallel()

	store := testutil.NewMockObjectStore()
	f := newFixture(t, storage.NewObjectStorage(store, "dumps"), "linux")
	f.snapshot.WithError(errors.New("out of memory"))
	results := testutil.NewResultCollector(1)

	f.coord.StoreHeapDump(results.Callback())

	res := results.Wait(t, resultTimeout)
	assert.ErrorIs(t, res.Err, core.ErrCaptureFailed)
	assert.Empty(t, res.Location)
	assert.Equal(t, 0, store.CallCount("Upload"))
}

func TestCoordinator_CoreDumpUnsupportedOnWindows(t *testing.T) {
	t.Parallel()

	f := newFixture(t, storage.NewLocalDisk("dumps"), "windows")
	results := testutil.NewResultCollector(1)

	f.coord.StoreCoreDump(results.Callback())

	res := results.Wait(t, resultTimeout)
	assert.ErrorIs(t, res.Err, core.ErrUnsupportedPlatform)
	assert.Equal(t, core.KindCoreImage, res.Kind)
	assert.Equal(t, 0, f.coreImg.CallCount("Produce"))
}

func TestCoordinator_ProviderUnsupportedPassesThrough(t *testing.T) {
	t.Parallel()

	unsupported := core.ErrUnsupported("core dump", "darwin")
	coord := NewCoordinator(CoordinatorConfig{
		DumpDir: t.TempDir(),
		Producers: core.Producers{
			Core: core.ProducerFunc(func(context.Context, string, core.CaptureInfo) (string, error) {
				return "", unsupported
			}),
		},
	})
	results := testutil.NewResultCollector(1)

	coord.StoreCoreDump(results.Callback())

	res := results.Wait(t, resultTimeout)
	assert.ErrorIs(t, res.Err, core.ErrUnsupportedPlatform)
	assert.False(t, errors.Is(res.Err, core.ErrCaptureFailed))
}

func TestCoordinator_MissingProducer(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator(CoordinatorConfig{DumpDir: t.TempDir()})
	results := testutil.NewResultCollector(1)

	coord.StoreNodeReport(results.Callback())

	res := results.Wait(t, resultTimeout)
	assert.ErrorIs(t, res.Err, core.ErrCaptureFailed)
}

func TestCoordinator_ProducerPanic(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator(CoordinatorConfig{
		DumpDir: t.TempDir(),
		Producers: core.Producers{
			Report: core.ProducerFunc(func(context.Context, string, core.CaptureInfo) (string, error) {
				panic("provider bug")
			}),
		},
	})
	results := testutil.NewResultCollector(1)

	coord.StoreNodeReport(results.Callback())

	res := results.Wait(t, resultTimeout)
	assert.ErrorIs(t, res.Err, core.ErrCaptureFailed)
	assert.Contains(t, res.Err.Error(), "provider bug")
}

func TestCoordinator_UnknownKind(t *testing.T) {
	t.Parallel()

	f := newFixture(t, storage.NewLocalDisk("dumps"), "linux")
	results := testutil.NewResultCollector(1)

	f.coord.Store(core.ArtifactKind("cpuprofile"), core.CaptureInfo{}, results.Callback())

	res := results.Wait(t, resultTimeout)
	assert.True(t, core.IsCategory(res.Err, core.ErrCatValidation))
}

func TestCoordinator_StoreReturnsBeforeCapture(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	dumpDir := t.TempDir()
	coord := NewCoordinator(CoordinatorConfig{
		DumpDir: dumpDir,
		Producers: core.Producers{
			Report: core.ProducerFunc(func(_ context.Context, dir string, _ core.CaptureInfo) (string, error) {
				<-release
				path := filepath.Join(dir, "report.json")
				return path, os.WriteFile(path, []byte("{}"), 0o600)
			}),
		},
	})
	results := testutil.NewResultCollector(1)

	coord.StoreNodeReport(results.Callback())
	results.AssertNoMore(t, 20*time.Millisecond)

	close(release)
	res := results.Wait(t, resultTimeout)
	require.NoError(t, res.Err)
	assert.Equal(t, filepath.Join(dumpDir, "report.json"), res.Location)
}

func TestCoordinator_NilCallback(t *testing.T) {
	t.Parallel()

	volume := t.TempDir()
	f := newFixture(t, storage.NewVolume(volume, "dumps"), "linux")

	f.coord.StoreNodeReport(nil)
	f.coord.Wait()

	entries, err := os.ReadDir(volume)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCoordinator_CallbackPanicIsContained(t *testing.T) {
	t.Parallel()

	f := newFixture(t, storage.NewLocalDisk("dumps"), "linux")
	called := make(chan struct{})

	f.coord.StoreNodeReport(func(core.Result) {
		close(called)
		panic("callback bug")
	})
	f.coord.Wait()

	select {
	case <-called:
	default:
		t.Fatal("callback not invoked")
	}
}

func TestCoordinator_WriteStaysOnLocalDisk(t *testing.T) {
	t.Parallel()

	store := testutil.NewMockObjectStore()
	f := newFixture(t, storage.NewObjectStorage(store, "dumps"), "linux")

	f.coord.WriteNodeReport()
	f.coord.WriteHeapDump()
	f.coord.WriteCoreDump()
	f.coord.Wait()

	assert.Equal(t, 0, store.CallCount("Upload"))
	entries, err := os.ReadDir(f.dumpDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestCoordinator_CaptureReportsLocalPath(t *testing.T) {
	t.Parallel()

	store := testutil.NewMockObjectStore()
	f := newFixture(t, storage.NewObjectStorage(store, "dumps"), "linux")
	results := testutil.NewResultCollector(2)

	id := f.coord.Capture(core.KindHeapSnapshot, core.CaptureInfo{Trigger: core.TriggerCLI}, results.Callback())

	res := results.Wait(t, resultTimeout)
	require.NoError(t, res.Err)
	assert.Equal(t, id, res.RequestID)
	assert.Equal(t, f.dumpDir, filepath.Dir(res.Location))
	assert.True(t, testutil.FileExists(res.Location))
	assert.Equal(t, 0, store.CallCount("Upload"))
	results.AssertNoMore(t, 50*time.Millisecond)
}

func TestCoordinator_ConcurrentRequestsGetDistinctNames(t *testing.T) {
	t.Parallel()

	volume := t.TempDir()
	f := newFixture(t, storage.NewVolume(volume, "dumps"), "linux")
	const n = 10
	results := testutil.NewResultCollector(n)

	for i := 0; i < n; i++ {
		f.coord.StoreHeapDump(results.Callback())
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		res := results.Wait(t, resultTimeout)
		require.NoError(t, res.Err)
		assert.False(t, seen[res.Location], "duplicate location %s", res.Location)
		seen[res.Location] = true
	}
	results.AssertNoMore(t, 50*time.Millisecond)
}

func TestCoordinator_InitObjectStore(t *testing.T) {
	t.Parallel()

	store := testutil.NewMockObjectStore()
	dest := storage.NewLocalDisk("dumps")
	coord := NewCoordinator(CoordinatorConfig{Destination: dest, Factory: store.Factory()})

	assert.False(t, coord.Connected())
	err := coord.InitObjectStore(context.Background(), testutil.ObjectStorageCredentials())
	require.NoError(t, err)

	assert.True(t, coord.Connected())
	assert.Equal(t, core.TierLocalDisk, coord.Tier())

	calls := store.Calls()
	require.Len(t, calls, 1)
	creds, ok := calls[0].Args.(core.Credentials)
	require.True(t, ok)
	assert.Equal(t, "https://identity.example.com/v3", creds.AuthURL)
	assert.Equal(t, "project-123", creds.TenantID)
}

func TestCoordinator_InitObjectStoreErrors(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator(CoordinatorConfig{})
	err := coord.InitObjectStore(context.Background(), testutil.ObjectStorageCredentials())
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))

	failing := NewCoordinator(CoordinatorConfig{
		Factory: func(context.Context, core.Credentials) (core.ObjectStore, error) {
			return nil, testutil.ErrTest
		},
	})
	err = failing.InitObjectStore(context.Background(), testutil.ObjectStorageCredentials())
	assert.ErrorIs(t, err, testutil.ErrTest)
	assert.False(t, failing.Connected())

	store := testutil.NewMockObjectStore()
	malformed := NewCoordinator(CoordinatorConfig{Factory: store.Factory()})
	err = malformed.InitObjectStore(context.Background(), map[string]interface{}{
		"projectId": map[string]interface{}{"nested": true},
	})
	assert.True(t, core.IsCategory(err, core.ErrCatValidation))
	assert.Equal(t, 0, store.CallCount("Factory"))
}

func TestCoordinator_SetContainer(t *testing.T) {
	t.Parallel()

	store := testutil.NewMockObjectStore()
	f := newFixture(t, storage.NewObjectStorage(store, "dumps"), "linux")
	f.coord.SetContainer("crashes")
	results := testutil.NewResultCollector(1)

	f.coord.StoreNodeReport(results.Callback())

	res := results.Wait(t, resultTimeout)
	require.NoError(t, res.Err)
	assert.True(t, strings.HasPrefix(res.Location, "crashes/"))
	assert.Equal(t, "crashes", f.coord.Destination().Container())
}
