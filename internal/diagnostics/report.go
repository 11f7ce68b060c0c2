package diagnostics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
	"github.com/hugo-lorenzo-mato/clouddiag/internal/fsutil"
)

// ReportHeader identifies a report and why it was taken.
type ReportHeader struct {
	Event     string    `json:"event"`
	Trigger   string    `json:"trigger"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	ProcessID int       `json:"process_id"`
	GoVersion string    `json:"go_version"`
	GOOS      string    `json:"goos"`
	GOARCH    string    `json:"goarch"`
	NumCPU    int       `json:"num_cpu"`
}

// Report is a JSON process report.
type Report struct {
	Header  ReportHeader  `json:"header"`
	Process ProcessInfo   `json:"process"`
	System  SystemMetrics `json:"system"`

	ResourceState   ResourceSnapshot   `json:"resource_state"`
	ResourceHistory []ResourceSnapshot `json:"resource_history,omitempty"`
	Trend           *ResourceTrend     `json:"trend,omitempty"`
	Warnings        []HealthWarning    `json:"warnings,omitempty"`

	// Goroutine stacks in the runtime's panic format
	Goroutines string `json:"goroutines,omitempty"`

	// Environment (redacted)
	Environment map[string]string `json:"environment,omitempty"`
}

// ReportOptions configures a ReportWriter.
type ReportOptions struct {
	// Service names the process in the report header.
	Service      string
	IncludeStack bool
	IncludeEnv   bool
	Monitor      *ResourceMonitor
	Metrics      *SystemMetricsCollector
	Namer        *core.Namer
	Logger       *slog.Logger
}

// ReportWriter produces process reports.
type ReportWriter struct {
	service      string
	includeStack bool
	includeEnv   bool
	monitor      *ResourceMonitor
	metrics      *SystemMetricsCollector
	namer        *core.Namer
	logger       *slog.Logger

	mu sync.Mutex
}

// NewReportWriter creates a report writer.
func NewReportWriter(opts ReportOptions) *ReportWriter {
	if opts.Namer == nil {
		opts.Namer = core.NewNamer()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewSystemMetricsCollector()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ReportWriter{
		service:      opts.Service,
		includeStack: opts.IncludeStack,
		includeEnv:   opts.IncludeEnv,
		monitor:      opts.Monitor,
		metrics:      opts.Metrics,
		namer:        opts.Namer,
		logger:       opts.Logger,
	}
}

// Produce writes a report into dir and returns its path. It implements
// core.Producer.
func (w *ReportWriter) Produce(ctx context.Context, dir string, info core.CaptureInfo) (string, error) {
	w.monitor.BeginCapture()
	defer w.monitor.EndCapture()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating dump dir: %w", err)
	}

	filename := w.namer.Next(core.KindReport)
	report := w.Build(ctx, dir, info)
	report.Header.Filename = filename

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling report: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	w.logger.Debug("report written", "path", path, "bytes", len(data))
	return path, nil
}

// Build assembles a report without writing it.
func (w *ReportWriter) Build(ctx context.Context, dir string, info core.CaptureInfo) *Report {
	pid := os.Getpid()
	report := &Report{
		Header: ReportHeader{
			Event:     "diagnostic report",
			Trigger:   info.Trigger,
			Reason:    info.Reason,
			RequestID: info.RequestID,
			Timestamp: time.Now().UTC(),
			Service:   w.service,
			ProcessID: pid,
			GoVersion: runtime.Version(),
			GOOS:      runtime.GOOS,
			GOARCH:    runtime.GOARCH,
			NumCPU:    runtime.NumCPU(),
		},
		Process: CollectProcessInfo(ctx, pid),
		System:  w.metrics.Collect(absOrSelf(dir)),
	}

	if w.monitor != nil {
		report.ResourceState = w.monitor.TakeSnapshot()
		report.ResourceHistory = w.monitor.GetHistory()
		trend := w.monitor.GetTrend()
		report.Trend = &trend
		report.Warnings = w.monitor.CheckHealth()
	} else {
		report.ResourceState = (&ResourceMonitor{started: processStart(report.Process)}).TakeSnapshot()
	}

	if w.includeStack {
		report.Goroutines = goroutineStacks()
	}
	if w.includeEnv {
		report.Environment = redactEnvironment(os.Environ())
	}

	return report
}

// LoadReport reads a report written by Produce.
func LoadReport(path string) (*Report, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &report, nil
}

func goroutineStacks() string {
	var buf bytes.Buffer
	if p := pprof.Lookup("goroutine"); p != nil {
		_ = p.WriteTo(&buf, 2)
	}
	return buf.String()
}

func processStart(p ProcessInfo) time.Time {
	if p.StartTime.IsZero() {
		return time.Now()
	}
	return p.StartTime
}

func absOrSelf(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

var sensitiveEnvSubstrings = []string{
	"TOKEN", "KEY", "SECRET", "PASSWORD", "PASSWD", "CREDENTIAL",
	"AUTH", "PRIVATE", "VCAP_SERVICES",
}

func redactEnvironment(environ []string) map[string]string {
	result := make(map[string]string, len(environ))
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || key == "" {
			continue
		}

		keyUpper := strings.ToUpper(key)
		for _, sensitive := range sensitiveEnvSubstrings {
			if strings.Contains(keyUpper, sensitive) {
				value = "[REDACTED]"
				break
			}
		}
		result[key] = value
	}
	return result
}
