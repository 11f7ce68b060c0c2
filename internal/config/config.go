package config

import (
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Name            string        `mapstructure:"name" json:"name" yaml:"name"`
	NodeReport      string        `mapstructure:"nodereport" json:"nodereport" yaml:"nodereport"`
	HeapDump        string        `mapstructure:"heapdump" json:"heapdump" yaml:"heapdump"`
	CoreDump        string        `mapstructure:"coredump" json:"coredump" yaml:"coredump"`
	Volume          string        `mapstructure:"volume" json:"volume" yaml:"volume"`
	ObjectStorage   string        `mapstructure:"objectstorage" json:"objectstorage" yaml:"objectstorage"`
	DumpDir         string        `mapstructure:"dump_dir" json:"dump_dir" yaml:"dump_dir"`
	ExceptionWait   string        `mapstructure:"exception_wait" json:"exception_wait" yaml:"exception_wait"`
	CoreDumpTool    string        `mapstructure:"coredump_tool" json:"coredump_tool" yaml:"coredump_tool"`
	CoreDumpTimeout string        `mapstructure:"coredump_timeout" json:"coredump_timeout" yaml:"coredump_timeout"`
	UploadRetries   int           `mapstructure:"upload_retries" json:"upload_retries" yaml:"upload_retries"`
	ShutdownGrace   string        `mapstructure:"shutdown_grace" json:"shutdown_grace" yaml:"shutdown_grace"`
	Report          ReportConfig  `mapstructure:"report" json:"report" yaml:"report"`
	Monitor         MonitorConfig `mapstructure:"monitor" json:"monitor" yaml:"monitor"`
	Log             LogConfig     `mapstructure:"log" json:"log" yaml:"log"`
	API             APIConfig     `mapstructure:"api" json:"api" yaml:"api"`
}

// ReportConfig configures the content of process reports.
type ReportConfig struct {
	IncludeStack bool `mapstructure:"include_stack" json:"include_stack" yaml:"include_stack"`
	IncludeEnv   bool `mapstructure:"include_env" json:"include_env" yaml:"include_env"`
}

// MonitorConfig configures periodic resource sampling.
type MonitorConfig struct {
	Enabled            bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Interval           string `mapstructure:"interval" json:"interval" yaml:"interval"`
	FDThresholdPercent int    `mapstructure:"fd_threshold_percent" json:"fd_threshold_percent" yaml:"fd_threshold_percent"`
	GoroutineThreshold int    `mapstructure:"goroutine_threshold" json:"goroutine_threshold" yaml:"goroutine_threshold"`
	MemoryThresholdMB  int    `mapstructure:"memory_threshold_mb" json:"memory_threshold_mb" yaml:"memory_threshold_mb"`
	MinFreeDiskMB      int    `mapstructure:"min_free_disk_mb" json:"min_free_disk_mb" yaml:"min_free_disk_mb"`
	HistorySize        int    `mapstructure:"history_size" json:"history_size" yaml:"history_size"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level" yaml:"level"`
	Format     string `mapstructure:"format" json:"format" yaml:"format"`
	File       string `mapstructure:"file" json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups"`
}

// APIConfig configures the HTTP trigger API.
type APIConfig struct {
	Enabled     bool     `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Host        string   `mapstructure:"host" json:"host" yaml:"host"`
	Port        int      `mapstructure:"port" json:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins,omitempty" yaml:"cors_origins,omitempty"`
}

// Modes returns the per-kind capability modes.
func (c *Config) Modes() core.Modes {
	return core.Modes{
		core.KindReport:       core.Mode(c.NodeReport),
		core.KindHeapSnapshot: core.Mode(c.HeapDump),
		core.KindCoreImage:    core.Mode(c.CoreDump),
	}
}

// ExceptionWaitDuration parses ExceptionWait, falling back to the default.
func (c *Config) ExceptionWaitDuration() time.Duration {
	return parseDurationOr(c.ExceptionWait, 30*time.Second)
}

// ShutdownGraceDuration parses ShutdownGrace, falling back to the default.
func (c *Config) ShutdownGraceDuration() time.Duration {
	return parseDurationOr(c.ShutdownGrace, 5*time.Minute)
}

// CoreDumpTimeoutDuration parses CoreDumpTimeout, falling back to the
// default.
func (c *Config) CoreDumpTimeoutDuration() time.Duration {
	return parseDurationOr(c.CoreDumpTimeout, 2*time.Minute)
}

// MonitorInterval parses Monitor.Interval, falling back to the default.
func (c *Config) MonitorInterval() time.Duration {
	return parseDurationOr(c.Monitor.Interval, 30*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
