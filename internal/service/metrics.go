package service

import (
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// MetricsCollector counts capture requests and their outcomes.
type MetricsCollector struct {
	since time.Time
	kinds map[core.ArtifactKind]*KindMetrics
	mu    sync.RWMutex
}

// CaptureMetrics is a point-in-time copy of the collected metrics.
type CaptureMetrics struct {
	Since     time.Time                         `json:"since"`
	Requests  int                               `json:"requests"`
	Succeeded int                               `json:"succeeded"`
	Failed    int                               `json:"failed"`
	InFlight  int                               `json:"in_flight"`
	Kinds     map[core.ArtifactKind]KindMetrics `json:"kinds"`
}

// KindMetrics holds per-artifact-kind metrics.
type KindMetrics struct {
	Kind          core.ArtifactKind `json:"kind"`
	Requests      int               `json:"requests"`
	Succeeded     int               `json:"succeeded"`
	Failed        int               `json:"failed"`
	Unsupported   int               `json:"unsupported"`
	InFlight      int               `json:"in_flight"`
	TotalDuration time.Duration     `json:"total_duration"`
	AvgDuration   time.Duration     `json:"avg_duration"`
	LastDuration  time.Duration     `json:"last_duration"`
	LastLocation  string            `json:"last_location,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	LastAt        time.Time         `json:"last_at,omitempty"`
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		since: time.Now(),
		kinds: make(map[core.ArtifactKind]*KindMetrics),
	}
}

// StartCapture records a new request for kind and returns its start time.
func (m *MetricsCollector) StartCapture(kind core.ArtifactKind) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	km := m.kind(kind)
	km.Requests++
	km.InFlight++
	return time.Now()
}

// EndCapture records the outcome of a request started at start.
func (m *MetricsCollector) EndCapture(kind core.ArtifactKind, start time.Time, res core.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	km := m.kind(kind)
	if km.InFlight > 0 {
		km.InFlight--
	}

	now := time.Now()
	km.LastAt = now
	km.LastDuration = now.Sub(start)
	km.TotalDuration += km.LastDuration

	if res.Err != nil {
		km.Failed++
		km.LastError = res.Err.Error()
		if core.IsCategory(res.Err, core.ErrCatUnsupported) {
			km.Unsupported++
		}
	} else {
		km.Succeeded++
		km.LastLocation = res.Location
		km.LastError = ""
	}
	km.AvgDuration = km.TotalDuration / time.Duration(km.Succeeded+km.Failed)
}

func (m *MetricsCollector) kind(kind core.ArtifactKind) *KindMetrics {
	km, ok := m.kinds[kind]
	if !ok {
		km = &KindMetrics{Kind: kind}
		m.kinds[kind] = km
	}
	return km
}

// Snapshot returns a copy of the current metrics.
func (m *MetricsCollector) Snapshot() CaptureMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := CaptureMetrics{
		Since: m.since,
		Kinds: make(map[core.ArtifactKind]KindMetrics, len(m.kinds)),
	}
	for k, v := range m.kinds {
		out.Kinds[k] = *v
		out.Requests += v.Requests
		out.Succeeded += v.Succeeded
		out.Failed += v.Failed
		out.InFlight += v.InFlight
	}
	return out
}

// Reset clears all metrics.
func (m *MetricsCollector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.since = time.Now()
	m.kinds = make(map[core.ArtifactKind]*KindMetrics)
}
