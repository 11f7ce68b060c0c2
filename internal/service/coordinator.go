package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/logging"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/storage"
)

// CoordinatorConfig wires a Coordinator.
type CoordinatorConfig struct {
	Destination *storage.Destination
	Producers   core.Producers
	// Factory builds clients for InitObjectStore. Optional.
	Factory core.ObjectStoreFactory
	// Retry governs Object Storage uploads. Nil uploads once.
	Retry *RetryPolicy
	// DumpDir is where artifacts are produced before persistence.
	DumpDir string
	// GOOS overrides runtime.GOOS for platform checks.
	GOOS string
	// BaseContext supplies values to captures and uploads. Its cancellation
	// does not abort them; Drain does. Defaults to context.Background.
	BaseContext context.Context
	Logger      *logging.Logger
}

// Coordinator runs capture requests: produce the artifact, persist it,
// report the outcome to the caller's callback exactly once.
type Coordinator struct {
	dest      *storage.Destination
	pipeline  *Pipeline
	metrics   *MetricsCollector
	producers core.Producers
	factory   core.ObjectStoreFactory
	dumpDir   string
	goos      string
	ctx       context.Context
	abort     context.CancelFunc
	logger    *logging.Logger

	wg       sync.WaitGroup
	inflight atomic.Int64
}

// NewCoordinator creates a coordinator. A nil destination means local disk.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Destination == nil {
		cfg.Destination = storage.NewLocalDisk("")
	}
	if cfg.DumpDir == "" {
		cfg.DumpDir = "."
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}

	// In-flight work must outlive a cancelled trigger source so that a dump
	// requested just before shutdown is still persisted.
	ctx, abort := context.WithCancel(context.WithoutCancel(cfg.BaseContext))

	return &Coordinator{
		dest:      cfg.Destination,
		pipeline:  NewPipeline(cfg.Destination, cfg.Retry, cfg.Logger),
		metrics:   NewMetricsCollector(),
		producers: cfg.Producers,
		factory:   cfg.Factory,
		dumpDir:   cfg.DumpDir,
		goos:      cfg.GOOS,
		ctx:       ctx,
		abort:     abort,
		logger:    cfg.Logger,
	}
}

// =============================================================================
// Configurator
// =============================================================================

// InitObjectStore builds an Object Storage client from explicit credentials
// and installs it. The resolved tier is not changed.
func (c *Coordinator) InitObjectStore(ctx context.Context, credentials map[string]interface{}) error {
	if c.factory == nil {
		return core.ErrValidation(core.CodeNotConnected, "no Object Storage client factory configured")
	}

	creds, err := core.DecodeCredentials(credentials)
	if err != nil {
		return core.ErrValidation("INVALID_CREDENTIALS", "malformed Object Storage credentials").WithCause(err)
	}
	creds = creds.Complete()

	client, err := c.factory(ctx, creds)
	if err != nil {
		return fmt.Errorf("creating Object Storage client: %w", err)
	}
	if client == nil {
		return errors.New("creating Object Storage client: factory returned no client")
	}

	c.dest.SetClient(client)
	c.logger.Info("Object Storage client configured", "credentials", creds)
	return nil
}

// SetContainer changes the container used by subsequent uploads.
func (c *Coordinator) SetContainer(name string) {
	c.dest.SetContainer(name)
	c.logger.Info("Object Storage container set", "container", name)
}

// Connected reports whether an Object Storage client exists.
func (c *Coordinator) Connected() bool {
	return c.dest.Connected()
}

// Tier returns the resolved storage tier.
func (c *Coordinator) Tier() core.TierKind {
	return c.dest.Tier()
}

// Metrics returns request counts and durations per artifact kind.
func (c *Coordinator) Metrics() CaptureMetrics {
	return c.metrics.Snapshot()
}

// Destination returns the destination handle.
func (c *Coordinator) Destination() *storage.Destination {
	return c.dest
}

// =============================================================================
// Capture operations
// =============================================================================

// StoreNodeReport captures a process report into the resolved tier.
func (c *Coordinator) StoreNodeReport(cb core.Callback) {
	c.Store(core.KindReport, core.CaptureInfo{Trigger: core.TriggerCall}, cb)
}

// StoreHeapDump captures a heap snapshot into the resolved tier.
func (c *Coordinator) StoreHeapDump(cb core.Callback) {
	c.Store(core.KindHeapSnapshot, core.CaptureInfo{Trigger: core.TriggerCall}, cb)
}

// StoreCoreDump captures a core image into the resolved tier.
func (c *Coordinator) StoreCoreDump(cb core.Callback) {
	c.Store(core.KindCoreImage, core.CaptureInfo{Trigger: core.TriggerCall}, cb)
}

// WriteNodeReport captures a process report onto the local disk.
func (c *Coordinator) WriteNodeReport() {
	c.Write(core.KindReport, core.CaptureInfo{Trigger: core.TriggerCall})
}

// WriteHeapDump captures a heap snapshot onto the local disk.
func (c *Coordinator) WriteHeapDump() {
	c.Write(core.KindHeapSnapshot, core.CaptureInfo{Trigger: core.TriggerCall})
}

// WriteCoreDump captures a core image onto the local disk.
func (c *Coordinator) WriteCoreDump() {
	c.Write(core.KindCoreImage, core.CaptureInfo{Trigger: core.TriggerCall})
}

// Store captures kind and persists it into the resolved tier. It returns
// the request id at once; cb runs exactly once on another goroutine. A nil
// cb means the outcome is only logged.
func (c *Coordinator) Store(kind core.ArtifactKind, info core.CaptureInfo, cb core.Callback) string {
	return c.submit(kind, info, cb, true)
}

// Write captures kind onto the local disk without persisting it. The
// outcome is only logged.
func (c *Coordinator) Write(kind core.ArtifactKind, info core.CaptureInfo) string {
	return c.Capture(kind, info, nil)
}

// Capture is Write with a callback: cb receives the local path exactly
// once.
func (c *Coordinator) Capture(kind core.ArtifactKind, info core.CaptureInfo, cb core.Callback) string {
	return c.submit(kind, info, cb, false)
}

// Wait blocks until every in-flight request has delivered its result.
// Requests submitted while Wait runs may or may not be waited for.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Drain waits up to grace for in-flight requests. When grace runs out, the
// remaining requests are cancelled and Drain returns false without waiting
// for them to unwind. A non-positive grace cancels at once. Requests
// submitted after Drain run with a cancelled context.
func (c *Coordinator) Drain(grace time.Duration) bool {
	defer c.abort()
	if grace <= 0 {
		return c.inflight.Load() == 0
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return c.inflight.Load() == 0
	}
}

func (c *Coordinator) submit(kind core.ArtifactKind, info core.CaptureInfo, cb core.Callback, persist bool) string {
	req := core.NewRequest(kind, cb)
	info.RequestID = req.ID
	start := c.metrics.StartCapture(kind)

	c.wg.Add(1)
	c.inflight.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inflight.Add(-1)
		res := c.execute(req, info, persist)
		c.metrics.EndCapture(kind, start, res)
		c.deliver(req, res)
	}()
	return req.ID
}

func (c *Coordinator) execute(req *core.Request, info core.CaptureInfo, persist bool) (res core.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = req.Fail(core.ErrCapture(req.Kind, fmt.Errorf("panic: %v", r)))
		}
	}()

	if !req.Kind.Valid() {
		return req.Fail(core.ErrValidation(core.CodeUnknownKind, fmt.Sprintf("unknown artifact kind %q", req.Kind)))
	}
	if req.Kind == core.KindCoreImage && c.goos == "windows" {
		return req.Fail(core.ErrUnsupported("core dump", c.goos))
	}

	producer := c.producers.For(req.Kind)
	if producer == nil {
		return req.Fail(core.ErrCapture(req.Kind, errors.New("no capture provider configured")))
	}

	path, err := producer.Produce(c.ctx, c.dumpDir, info)
	if err != nil {
		if core.IsCategory(err, core.ErrCatUnsupported) {
			return req.Fail(err)
		}
		return req.Fail(core.ErrCapture(req.Kind, err))
	}

	if !persist {
		return req.Succeed(path)
	}

	res = c.pipeline.Persist(c.ctx, path, req.Kind)
	res.RequestID = req.ID
	return res
}

func (c *Coordinator) deliver(req *core.Request, res core.Result) {
	if res.Err != nil {
		c.logger.Error("capture request failed",
			"request_id", req.ID,
			"kind", req.Kind,
			"error", res.Err,
		)
	} else {
		c.logger.Info("capture request completed",
			"request_id", req.ID,
			"kind", req.Kind,
			"location", res.Location,
		)
	}

	if req.Callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("capture callback panicked", "request_id", req.ID, "panic", fmt.Sprint(r))
		}
	}()
	req.Callback(res)
}
