package service

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/logging"
)

// SignalTrigger subscribes to OS signals and dispatches a capture for each
// one received.
type SignalTrigger struct {
	dispatcher *Dispatcher
	bindings   map[os.Signal]core.ArtifactKind
	logger     *logging.Logger

	mu      sync.Mutex
	ch      chan os.Signal
	done    chan struct{}
	stopped bool
}

// DefaultSignals returns the platform's signal to kind table.
func DefaultSignals() map[os.Signal]core.ArtifactKind {
	return platformSignals()
}

// NewSignalTrigger binds every default signal whose kind has "signal" in
// its mode.
func NewSignalTrigger(d *Dispatcher, logger *logging.Logger) *SignalTrigger {
	return NewSignalTriggerWith(d, DefaultSignals(), logger)
}

// NewSignalTriggerWith binds the given signals, filtered by mode.
func NewSignalTriggerWith(d *Dispatcher, table map[os.Signal]core.ArtifactKind, logger *logging.Logger) *SignalTrigger {
	if logger == nil {
		logger = logging.NewNop()
	}
	bindings := make(map[os.Signal]core.ArtifactKind)
	for sig, kind := range table {
		if d.Modes().Enabled(kind, core.CapabilitySignal) {
			bindings[sig] = kind
		}
	}
	return &SignalTrigger{
		dispatcher: d,
		bindings:   bindings,
		logger:     logger,
	}
}

// Bindings returns a copy of the active signal bindings.
func (s *SignalTrigger) Bindings() map[os.Signal]core.ArtifactKind {
	out := make(map[os.Signal]core.ArtifactKind, len(s.bindings))
	for sig, kind := range s.bindings {
		out[sig] = kind
	}
	return out
}

// Start subscribes and returns. Delivery stops when ctx is done or Stop is
// called. Starting twice is a no-op.
func (s *SignalTrigger) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil || s.stopped || len(s.bindings) == 0 {
		if len(s.bindings) == 0 {
			s.logger.Debug("no signal triggers enabled")
		}
		return
	}

	sigs := make([]os.Signal, 0, len(s.bindings))
	for sig := range s.bindings {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].String() < sigs[j].String() })

	s.ch = make(chan os.Signal, len(sigs))
	s.done = make(chan struct{})
	signal.Notify(s.ch, sigs...)

	for _, sig := range sigs {
		s.logger.Info("listening for signal", "signal", sig.String(), "kind", s.bindings[sig])
	}

	go s.loop(ctx, s.ch, s.done)
}

func (s *SignalTrigger) loop(ctx context.Context, ch <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-done:
			return
		case sig := <-ch:
			s.handle(sig)
		}
	}
}

func (s *SignalTrigger) handle(sig os.Signal) {
	kind, ok := s.bindings[sig]
	if !ok {
		return
	}
	s.logger.Info("signal received", "signal", sig.String(), "kind", kind)
	s.dispatcher.OnTrigger(kind)
}

// Stop unsubscribes. It is safe to call more than once.
func (s *SignalTrigger) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if s.ch != nil {
		signal.Stop(s.ch)
		close(s.done)
	}
}
