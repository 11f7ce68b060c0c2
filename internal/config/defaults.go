package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// Default values shared by the loader and the init command.
const (
	DefaultName            = "cloud-diagnostics"
	DefaultVolume          = "var/dumps"
	DefaultContainer       = "dumps"
	DefaultDumpDir         = "."
	DefaultExceptionWait   = "30s"
	DefaultCoreDumpTool    = "gcore"
	DefaultCoreDumpTimeout = "2m"
	DefaultShutdownGrace   = "5m"
	DefaultUploadRetries   = 3
	DefaultAPIHost         = "127.0.0.1"
	DefaultAPIPort         = 8470
)

// ConfigName is the config file name without extension.
const ConfigName = "cloud-diagnostics"

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Name:            DefaultName,
		NodeReport:      core.DefaultMode,
		HeapDump:        core.DefaultMode,
		CoreDump:        core.DefaultMode,
		Volume:          DefaultVolume,
		ObjectStorage:   DefaultContainer,
		DumpDir:         DefaultDumpDir,
		ExceptionWait:   DefaultExceptionWait,
		CoreDumpTool:    DefaultCoreDumpTool,
		CoreDumpTimeout: DefaultCoreDumpTimeout,
		ShutdownGrace:   DefaultShutdownGrace,
		UploadRetries:   DefaultUploadRetries,
		Report: ReportConfig{
			IncludeStack: true,
			IncludeEnv:   true,
		},
		Monitor: MonitorConfig{
			Enabled:            true,
			Interval:           "30s",
			FDThresholdPercent: 80,
			GoroutineThreshold: 10000,
			MemoryThresholdMB:  4096,
			MinFreeDiskMB:      512,
			HistorySize:        120,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		API: APIConfig{
			Enabled: true,
			Host:    DefaultAPIHost,
			Port:    DefaultAPIPort,
		},
	}
}

// Render serializes cfg as "json" or "yaml".
func Render(cfg *Config, format string) ([]byte, error) {
	switch format {
	case "json", "":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
}
