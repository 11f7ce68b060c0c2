package service

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/logging"
)

// DefaultExceptionWait bounds how long a panicking goroutine waits for its
// report to be persisted before the panic resumes.
const DefaultExceptionWait = 30 * time.Second

// Dispatcher turns trigger events into capture requests.
type Dispatcher struct {
	coord         *Coordinator
	modes         core.Modes
	exceptionWait time.Duration
	logger        *logging.Logger

	hookOnce sync.Once
	armed    atomic.Bool
}

// NewDispatcher creates a dispatcher over coord.
func NewDispatcher(coord *Coordinator, modes core.Modes, exceptionWait time.Duration, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if modes == nil {
		modes = core.DefaultModes()
	}
	if exceptionWait <= 0 {
		exceptionWait = DefaultExceptionWait
	}
	return &Dispatcher{
		coord:         coord,
		modes:         modes,
		exceptionWait: exceptionWait,
		logger:        logger,
	}
}

// Modes returns the configured modes.
func (d *Dispatcher) Modes() core.Modes {
	return d.modes
}

// OnTrigger starts a capture of kind into the resolved tier. It returns at
// once; the outcome is only logged.
func (d *Dispatcher) OnTrigger(kind core.ArtifactKind) {
	d.Trigger(kind, core.CaptureInfo{Trigger: core.TriggerSignal})
}

// Trigger is OnTrigger with an explicit trigger description.
func (d *Dispatcher) Trigger(kind core.ArtifactKind, info core.CaptureInfo) {
	id := d.coord.Store(kind, info, nil)
	d.logger.Info("capture triggered",
		"request_id", id,
		"kind", kind,
		"trigger", info.Trigger,
	)
}

// InstallExceptionHook arms report capture on panics recovered through
// Recover. It only arms when the report mode contains "exception" and
// returns whether the hook is armed. Calling it again has no effect.
func (d *Dispatcher) InstallExceptionHook() bool {
	if !d.modes.Enabled(core.KindReport, core.CapabilityException) {
		return false
	}
	d.hookOnce.Do(func() {
		d.armed.Store(true)
		d.logger.Info("exception hook installed", "wait", d.exceptionWait)
	})
	return true
}

// Recover must be deferred directly by a goroutine that wants panics
// reported:
//
//	defer dispatcher.Recover()
//
// When armed it captures a report, waits for it to be persisted (bounded
// by the exception wait) and then re-panics with the original value.
func (d *Dispatcher) Recover() {
	r := recover()
	if r == nil {
		return
	}
	d.HandlePanic(r)
	panic(r)
}

// HandlePanic captures a report for the panic value v and blocks until it
// is persisted or the exception wait elapses. It does nothing when the hook
// is not armed.
func (d *Dispatcher) HandlePanic(v interface{}) {
	if !d.armed.Load() {
		return
	}

	done := make(chan core.Result, 1)
	d.coord.Store(core.KindReport, core.CaptureInfo{
		Trigger: core.TriggerException,
		Reason:  fmt.Sprint(v),
	}, func(res core.Result) {
		done <- res
	})

	select {
	case res := <-done:
		if res.Err != nil {
			d.logger.Error("exception report failed", "error", res.Err)
		}
	case <-time.After(d.exceptionWait):
		d.logger.Warn("exception report not persisted in time", "wait", d.exceptionWait)
	}
}
