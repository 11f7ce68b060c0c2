// Package clouddiag captures process diagnostics (reports, heap snapshots
// and core images) and persists them into the most durable storage the
// host offers: a mounted volume, a bound Object Storage service or, failing
// both, the local disk.
//
// Most programs interact with this package by:
//  1. Creating a Diagnostics via New(), optionally overriding the config
//  2. Calling Start to subscribe to trigger signals and arm the panic hook
//  3. Deferring Recover in goroutines whose panics should be reported
//  4. Calling Store* or Write* to capture on demand
package clouddiag

import (
	"context"
	"fmt"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/adapters/cfenv"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/adapters/swift"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/config"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/logging"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/service"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/storage"
)

// Re-exported so callers outside this module can name them.
type (
	Config             = config.Config
	ArtifactKind       = core.ArtifactKind
	TierKind           = core.TierKind
	Result             = core.Result
	Callback           = core.Callback
	Producer           = core.Producer
	Producers          = core.Producers
	ObjectStore        = core.ObjectStore
	ObjectStoreFactory = core.ObjectStoreFactory
	Discoverer         = core.Discoverer
	Logger             = logging.Logger
)

// Artifact kinds.
const (
	KindReport       = core.KindReport
	KindHeapSnapshot = core.KindHeapSnapshot
	KindCoreImage    = core.KindCoreImage
)

// Storage tiers.
const (
	TierLocalDisk     = core.TierLocalDisk
	TierLocalVolume   = core.TierLocalVolume
	TierObjectStorage = core.TierObjectStorage
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return config.Default()
}

// Options configures a Diagnostics instance.
type Options struct {
	// Config defaults to DefaultConfig().
	Config *Config

	// Logger defaults to one built from Config.Log.
	Logger *Logger

	// Discoverer finds bound Object Storage credentials. Defaults to the
	// Cloud Foundry environment.
	Discoverer Discoverer

	// Factory builds Object Storage clients. Defaults to OpenStack Swift.
	Factory ObjectStoreFactory

	// Producers overrides the capture providers. Unset providers use the
	// built-in ones.
	Producers Producers

	// BaseContext supplies values to captures and uploads. Cancelling it
	// does not abort captures already running; Close gives them up to
	// Config.ShutdownGrace to finish. Defaults to context.Background.
	BaseContext context.Context
}

// Diagnostics is the high-level façade over storage resolution, the capture
// coordinator and the trigger sources.
type Diagnostics struct {
	cfg        *Config
	logger     *Logger
	ownLogger  bool
	dest       *storage.Destination
	coord      *service.Coordinator
	dispatcher *service.Dispatcher
	signals    *service.SignalTrigger
	monitor    *diagnostics.ResourceMonitor
}

// New resolves the storage tier and wires the capture providers. It fails
// only on invalid configuration.
func New(optFns ...func(o *Options)) (*Diagnostics, error) {
	opts := Options{BaseContext: context.Background()}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if err := config.ValidateConfig(opts.Config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := opts.Config

	d := &Diagnostics{cfg: cfg, logger: opts.Logger}
	if d.logger == nil {
		d.logger = logging.New(logging.Config{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		d.ownLogger = true
	}
	if opts.Discoverer == nil {
		opts.Discoverer = cfenv.New()
	}
	if opts.Factory == nil {
		opts.Factory = swift.Factory(swift.WithUserAgent(cfg.Name))
	}

	if cfg.Monitor.Enabled {
		d.monitor = diagnostics.NewResourceMonitor(diagnostics.MonitorOptions{
			Interval:           cfg.MonitorInterval(),
			FDThresholdPercent: cfg.Monitor.FDThresholdPercent,
			GoroutineThreshold: cfg.Monitor.GoroutineThreshold,
			MemoryThresholdMB:  cfg.Monitor.MemoryThresholdMB,
			MinFreeDiskMB:      cfg.Monitor.MinFreeDiskMB,
			HistorySize:        cfg.Monitor.HistorySize,
			DumpDir:            cfg.DumpDir,
			Logger:             d.logger.WithComponent("monitor").Logger,
		})
	}

	d.dest = storage.Resolve(opts.BaseContext, storage.ResolveOptions{
		Volume:     cfg.Volume,
		Container:  cfg.ObjectStorage,
		Discoverer: opts.Discoverer,
		Factory:    opts.Factory,
		Logger:     d.logger.WithComponent("storage").Logger,
	})

	d.coord = service.NewCoordinator(service.CoordinatorConfig{
		Destination: d.dest,
		Producers:   d.producers(opts.Producers),
		Factory:     opts.Factory,
		Retry:       service.NewRetryPolicy(service.WithMaxAttempts(cfg.UploadRetries)),
		DumpDir:     cfg.DumpDir,
		BaseContext: opts.BaseContext,
		Logger:      d.logger.WithComponent("coordinator"),
	})
	d.dispatcher = service.NewDispatcher(d.coord, cfg.Modes(), cfg.ExceptionWaitDuration(),
		d.logger.WithComponent("dispatcher"))
	d.signals = service.NewSignalTrigger(d.dispatcher, d.logger.WithComponent("signals"))

	return d, nil
}

func (d *Diagnostics) producers(override Producers) Producers {
	cfg := d.cfg
	namer := core.NewNamer()
	logger := d.logger.WithComponent("capture").Logger

	p := override
	if p.Report == nil {
		p.Report = diagnostics.NewReportWriter(diagnostics.ReportOptions{
			Service:      cfg.Name,
			IncludeStack: cfg.Report.IncludeStack,
			IncludeEnv:   cfg.Report.IncludeEnv,
			Monitor:      d.monitor,
			Namer:        namer,
			Logger:       logger,
		})
	}
	if p.Snapshot == nil {
		p.Snapshot = diagnostics.NewHeapSnapshotter(d.monitor, namer, logger)
	}
	if p.Core == nil {
		p.Core = diagnostics.NewCoreCollector(diagnostics.CoreOptions{
			Tool:    cfg.CoreDumpTool,
			Timeout: cfg.CoreDumpTimeoutDuration(),
			Runner:  diagnostics.NewToolRunner(d.monitor, logger, 5),
			Namer:   namer,
			Logger:  logger,
		})
	}
	return p
}

// Start subscribes to trigger signals, starts the resource monitor and arms
// the panic hook when the report mode contains "exception". Triggers stop
// when ctx is done or Close is called.
func (d *Diagnostics) Start(ctx context.Context) {
	d.signals.Start(ctx)
	if d.monitor != nil {
		d.monitor.Start(ctx)
	}
	d.dispatcher.InstallExceptionHook()
}

// Close stops the trigger sources and waits up to the configured
// shutdown_grace for in-flight captures.
func (d *Diagnostics) Close() error {
	return d.Shutdown(d.cfg.ShutdownGraceDuration())
}

// Shutdown is Close with an explicit grace period. Captures still running
// when grace ends are cancelled and their results logged as failures.
func (d *Diagnostics) Shutdown(grace time.Duration) error {
	d.signals.Stop()
	if d.monitor != nil {
		d.monitor.Stop()
	}
	if !d.coord.Drain(grace) {
		d.logger.Warn("shutdown grace period ended with captures in flight",
			"grace", grace.String(),
		)
	}
	if d.ownLogger {
		return d.logger.Close()
	}
	return nil
}

// Recover reports a panic before letting it continue. It must be deferred
// directly:
//
//	defer diag.Recover()
func (d *Diagnostics) Recover() {
	r := recover()
	if r == nil {
		return
	}
	d.dispatcher.HandlePanic(r)
	panic(r)
}

// InitObjectStore connects to Object Storage with explicit credentials.
func (d *Diagnostics) InitObjectStore(ctx context.Context, credentials map[string]interface{}) error {
	return d.coord.InitObjectStore(ctx, credentials)
}

// SetContainer changes the Object Storage container for later uploads.
func (d *Diagnostics) SetContainer(name string) {
	d.coord.SetContainer(name)
}

// Connected reports whether an Object Storage client is configured.
func (d *Diagnostics) Connected() bool {
	return d.coord.Connected()
}

// Tier returns the resolved storage tier.
func (d *Diagnostics) Tier() TierKind {
	return d.coord.Tier()
}

// StoreNodeReport captures a process report and persists it; cb receives
// the outcome exactly once.
func (d *Diagnostics) StoreNodeReport(cb Callback) { d.coord.StoreNodeReport(cb) }

// StoreHeapDump captures a heap snapshot and persists it.
func (d *Diagnostics) StoreHeapDump(cb Callback) { d.coord.StoreHeapDump(cb) }

// StoreCoreDump captures a core image and persists it.
func (d *Diagnostics) StoreCoreDump(cb Callback) { d.coord.StoreCoreDump(cb) }

// WriteNodeReport captures a process report onto the local disk.
func (d *Diagnostics) WriteNodeReport() { d.coord.WriteNodeReport() }

// WriteHeapDump captures a heap snapshot onto the local disk.
func (d *Diagnostics) WriteHeapDump() { d.coord.WriteHeapDump() }

// WriteCoreDump captures a core image onto the local disk.
func (d *Diagnostics) WriteCoreDump() { d.coord.WriteCoreDump() }

// Config returns the configuration in use.
func (d *Diagnostics) Config() *Config { return d.cfg }

// Logger returns the logger in use.
func (d *Diagnostics) Logger() *Logger { return d.logger }

// Coordinator exposes the capture coordinator to the HTTP API.
func (d *Diagnostics) Coordinator() *service.Coordinator { return d.coord }

// Dispatcher exposes the trigger dispatcher.
func (d *Diagnostics) Dispatcher() *service.Dispatcher { return d.dispatcher }

// Signals exposes the signal trigger.
func (d *Diagnostics) Signals() *service.SignalTrigger { return d.signals }

// Monitor returns the resource monitor, or nil when monitoring is disabled.
func (d *Diagnostics) Monitor() *diagnostics.ResourceMonitor { return d.monitor }
