package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"
)

const bytesPerMB = 1024 * 1024

// ResourceSnapshot is the process resource state at one point in time.
type ResourceSnapshot struct {
	Timestamp      time.Time     `json:"timestamp"`
	OpenFDs        int           `json:"open_fds"`
	MaxFDs         int           `json:"max_fds"`
	FDUsagePercent float64       `json:"fd_usage_percent"`
	Goroutines     int           `json:"goroutines"`
	HeapAllocMB    float64       `json:"heap_alloc_mb"`
	HeapInUseMB    float64       `json:"heap_in_use_mb"`
	StackInUseMB   float64       `json:"stack_in_use_mb"`
	RSSMB          float64       `json:"rss_mb,omitempty"`
	DumpDirFreeMB  float64       `json:"dump_dir_free_mb,omitempty"`
	GCPauseNS      uint64        `json:"gc_pause_ns"`
	NumGC          uint32        `json:"num_gc"`
	ProcessUptime  time.Duration `json:"process_uptime"`
	CapturesRun    int64         `json:"captures_run"`
	CapturesActive int           `json:"captures_active"`
}

// ResourceTrend is the growth rate of the monitored resources across the
// recorded history.
type ResourceTrend struct {
	FDGrowthRate        float64  `json:"fd_growth_per_hour"`
	GoroutineGrowthRate float64  `json:"goroutine_growth_per_hour"`
	MemoryGrowthRate    float64  `json:"memory_growth_mb_per_hour"`
	IsHealthy           bool     `json:"healthy"`
	Warnings            []string `json:"warnings,omitempty"`
}

// HealthWarning is one exceeded threshold.
type HealthWarning struct {
	Level   string  `json:"level"` // "warning" or "critical"
	Type    string  `json:"type"`  // "fd", "goroutine", "memory", "disk"
	Message string  `json:"message"`
	Value   float64 `json:"value"`
	Limit   float64 `json:"limit"`
}

// MonitorOptions configures a ResourceMonitor. Zero thresholds disable the
// matching health check.
type MonitorOptions struct {
	Interval           time.Duration
	FDThresholdPercent int
	GoroutineThreshold int
	MemoryThresholdMB  int
	// MinFreeDiskMB warns when DumpDir has less free space than this. A
	// core image is roughly the size of the process RSS.
	MinFreeDiskMB int
	HistorySize   int
	DumpDir       string
	Logger        *slog.Logger
}

// ResourceMonitor samples process resource usage on an interval. Its
// history is embedded in process reports so a report shows how the
// process got to where it is.
type ResourceMonitor struct {
	opts MonitorOptions

	history []ResourceSnapshot
	mu      sync.RWMutex

	capturesRun    atomic.Int64
	capturesActive atomic.Int32

	stopCh  chan struct{}
	stopped atomic.Bool
	started time.Time
}

// NewResourceMonitor creates a monitor. It does not sample until Start.
func NewResourceMonitor(opts MonitorOptions) *ResourceMonitor {
	if opts.HistorySize <= 0 {
		opts.HistorySize = 120 // 1 hour at 30s intervals
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}

	return &ResourceMonitor{
		opts:    opts,
		history: make([]ResourceSnapshot, 0, opts.HistorySize),
		stopCh:  make(chan struct{}),
		started: time.Now(),
	}
}

// Start samples once and then every interval until ctx is done or Stop is
// called.
func (m *ResourceMonitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *ResourceMonitor) run(ctx context.Context) {
	m.recordSnapshot(m.TakeSnapshot())

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.recordSnapshot(m.TakeSnapshot())
			m.logWarnings(m.CheckHealth())
		}
	}
}

func (m *ResourceMonitor) logWarnings(warnings []HealthWarning) {
	if m.opts.Logger == nil {
		return
	}
	for _, w := range warnings {
		m.opts.Logger.Warn("resource warning",
			"type", w.Type,
			"level", w.Level,
			"value", w.Value,
			"limit", w.Limit,
			"message", w.Message,
		)
	}
}

// Stop halts the sampling loop. Safe to call more than once.
func (m *ResourceMonitor) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopCh)
	}
}

// TakeSnapshot samples the current resource state without recording it.
func (m *ResourceMonitor) TakeSnapshot() ResourceSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	openFDs, maxFDs := CountFDs()
	fdPercent := 0.0
	if maxFDs > 0 {
		fdPercent = float64(openFDs) / float64(maxFDs) * 100
	}

	return ResourceSnapshot{
		Timestamp:      time.Now(),
		OpenFDs:        openFDs,
		MaxFDs:         maxFDs,
		FDUsagePercent: fdPercent,
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocMB:    float64(memStats.HeapAlloc) / bytesPerMB,
		HeapInUseMB:    float64(memStats.HeapInuse) / bytesPerMB,
		StackInUseMB:   float64(memStats.StackInuse) / bytesPerMB,
		RSSMB:          residentMB(),
		DumpDirFreeMB:  freeMB(m.opts.DumpDir),
		GCPauseNS:      memStats.PauseNs[(memStats.NumGC+255)%256],
		NumGC:          memStats.NumGC,
		ProcessUptime:  time.Since(m.started),
		CapturesRun:    m.capturesRun.Load(),
		CapturesActive: int(m.capturesActive.Load()),
	}
}

func residentMB() float64 {
	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return 0
	}
	info, err := p.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return float64(info.RSS) / bytesPerMB
}

func freeMB(dir string) float64 {
	if dir == "" {
		return 0
	}
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0
	}
	return float64(usage.Free) / bytesPerMB
}

func (m *ResourceMonitor) recordSnapshot(s ResourceSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, s)
	if len(m.history) > m.opts.HistorySize {
		m.history = m.history[len(m.history)-m.opts.HistorySize:]
	}
}

// GetHistory returns a copy of the recorded snapshots, oldest first.
func (m *ResourceMonitor) GetHistory() []ResourceSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ResourceSnapshot, len(m.history))
	copy(result, m.history)
	return result
}

// GetLatest returns the most recent recorded snapshot.
func (m *ResourceMonitor) GetLatest() (ResourceSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return ResourceSnapshot{}, false
	}
	return m.history[len(m.history)-1], true
}

// Growth limits per hour above which a trend is reported as a likely leak.
const (
	fdLeakPerHour        = 10
	goroutineLeakPerHour = 100
	memoryLeakMBPerHour  = 100
)

// GetTrend compares the oldest and newest recorded snapshots. Less than
// about half a minute of history is always healthy.
func (m *ResourceMonitor) GetTrend() ResourceTrend {
	history := m.GetHistory()
	if len(history) < 2 {
		return ResourceTrend{IsHealthy: true}
	}

	first := history[0]
	last := history[len(history)-1]
	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if hours < 0.01 {
		return ResourceTrend{IsHealthy: true}
	}

	trend := ResourceTrend{
		FDGrowthRate:        float64(last.OpenFDs-first.OpenFDs) / hours,
		GoroutineGrowthRate: float64(last.Goroutines-first.Goroutines) / hours,
		MemoryGrowthRate:    (last.HeapAllocMB - first.HeapAllocMB) / hours,
		IsHealthy:           true,
	}

	flag := func(rate, limit float64, format string) {
		if rate > limit {
			trend.IsHealthy = false
			trend.Warnings = append(trend.Warnings, fmt.Sprintf(format, rate))
		}
	}
	flag(trend.FDGrowthRate, fdLeakPerHour, "FD count growing at %.1f/hour (potential leak)")
	flag(trend.GoroutineGrowthRate, goroutineLeakPerHour, "Goroutine count growing at %.1f/hour (potential leak)")
	flag(trend.MemoryGrowthRate, memoryLeakMBPerHour, "Memory growing at %.1f MB/hour")

	return trend
}

// BeginCapture records the start of an artifact capture. Safe on a nil
// monitor.
func (m *ResourceMonitor) BeginCapture() {
	if m == nil {
		return
	}
	m.capturesRun.Add(1)
	m.capturesActive.Add(1)
}

// EndCapture records the end of an artifact capture. Safe on a nil
// monitor.
func (m *ResourceMonitor) EndCapture() {
	if m == nil {
		return
	}
	m.capturesActive.Add(-1)
}

type healthCheck struct {
	kind     string
	value    float64
	limit    float64
	critical float64
	below    bool // warn when value drops below limit
	message  string
}

// CheckHealth compares the latest snapshot against the thresholds.
func (m *ResourceMonitor) CheckHealth() []HealthWarning {
	s, ok := m.GetLatest()
	if !ok {
		s = m.TakeSnapshot()
	}
	o := m.opts

	var checks []healthCheck
	if o.FDThresholdPercent > 0 {
		checks = append(checks, healthCheck{
			kind: "fd", value: s.FDUsagePercent, limit: float64(o.FDThresholdPercent), critical: 90,
			message: fmt.Sprintf("FD usage at %.1f%% (threshold: %d%%)", s.FDUsagePercent, o.FDThresholdPercent),
		})
	}
	if o.GoroutineThreshold > 0 {
		checks = append(checks, healthCheck{
			kind: "goroutine", value: float64(s.Goroutines), limit: float64(o.GoroutineThreshold),
			critical: float64(o.GoroutineThreshold) * 2,
			message:  fmt.Sprintf("Goroutine count at %d (threshold: %d)", s.Goroutines, o.GoroutineThreshold),
		})
	}
	if o.MemoryThresholdMB > 0 {
		checks = append(checks, healthCheck{
			kind: "memory", value: s.HeapAllocMB, limit: float64(o.MemoryThresholdMB),
			critical: float64(o.MemoryThresholdMB) * 1.5,
			message:  fmt.Sprintf("Heap usage at %.1f MB (threshold: %d MB)", s.HeapAllocMB, o.MemoryThresholdMB),
		})
	}
	if o.MinFreeDiskMB > 0 && s.DumpDirFreeMB > 0 {
		checks = append(checks, healthCheck{
			kind: "disk", value: s.DumpDirFreeMB, limit: float64(o.MinFreeDiskMB), below: true,
			critical: s.RSSMB,
			message: fmt.Sprintf("Dump dir %s has %.0f MB free (minimum: %d MB)",
				o.DumpDir, s.DumpDirFreeMB, o.MinFreeDiskMB),
		})
	}

	var warnings []HealthWarning
	for _, c := range checks {
		exceeded, critical := c.value > c.limit, c.value > c.critical
		if c.below {
			// Critical when a core image of the current RSS would not fit.
			exceeded, critical = c.value < c.limit, c.value < c.critical
		}
		if !exceeded {
			continue
		}
		level := "warning"
		if critical {
			level = "critical"
		}
		warnings = append(warnings, HealthWarning{
			Level:   level,
			Type:    c.kind,
			Message: c.message,
			Value:   c.value,
			Limit:   c.limit,
		})
	}
	return warnings
}

// Uptime returns the time since the monitor was created.
func (m *ResourceMonitor) Uptime() time.Duration {
	return time.Since(m.started)
}
