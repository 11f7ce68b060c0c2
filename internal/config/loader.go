package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
	searchDirs []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return NewLoaderWithViper(viper.New())
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:          v,
		envPrefix:  "CLOUDDIAG",
		searchDirs: []string{"."},
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithSearchDirs replaces the directories searched for the config file.
func (l *Loader) WithSearchDirs(dirs ...string) *Loader {
	l.searchDirs = dirs
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (CLOUDDIAG_*)
// 3. cloud-diagnostics.{json,yaml} in the working directory
// 4. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(ConfigName)
		for _, dir := range l.searchDirs {
			l.v.AddConfigPath(dir)
		}
	}

	// A missing file means defaults
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults configures default values.
func (l *Loader) setDefaults() {
	d := Default()

	l.v.SetDefault("name", d.Name)
	l.v.SetDefault("nodereport", d.NodeReport)
	l.v.SetDefault("heapdump", d.HeapDump)
	l.v.SetDefault("coredump", d.CoreDump)
	l.v.SetDefault("volume", d.Volume)
	l.v.SetDefault("objectstorage", d.ObjectStorage)
	l.v.SetDefault("dump_dir", d.DumpDir)
	l.v.SetDefault("exception_wait", d.ExceptionWait)
	l.v.SetDefault("coredump_tool", d.CoreDumpTool)
	l.v.SetDefault("coredump_timeout", d.CoreDumpTimeout)
	l.v.SetDefault("upload_retries", d.UploadRetries)
	l.v.SetDefault("shutdown_grace", d.ShutdownGrace)

	// Report defaults
	l.v.SetDefault("report.include_stack", d.Report.IncludeStack)
	l.v.SetDefault("report.include_env", d.Report.IncludeEnv)

	// Monitor defaults
	l.v.SetDefault("monitor.enabled", d.Monitor.Enabled)
	l.v.SetDefault("monitor.interval", d.Monitor.Interval)
	l.v.SetDefault("monitor.fd_threshold_percent", d.Monitor.FDThresholdPercent)
	l.v.SetDefault("monitor.goroutine_threshold", d.Monitor.GoroutineThreshold)
	l.v.SetDefault("monitor.memory_threshold_mb", d.Monitor.MemoryThresholdMB)
	l.v.SetDefault("monitor.min_free_disk_mb", d.Monitor.MinFreeDiskMB)
	l.v.SetDefault("monitor.history_size", d.Monitor.HistorySize)

	// Log defaults
	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)
	l.v.SetDefault("log.file", "")
	l.v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	l.v.SetDefault("log.max_backups", d.Log.MaxBackups)

	// API defaults
	l.v.SetDefault("api.enabled", d.API.Enabled)
	l.v.SetDefault("api.host", d.API.Host)
	l.v.SetDefault("api.port", d.API.Port)
	l.v.SetDefault("api.cors_origins", []string{})
}

// Watch re-reads the config file whenever it changes and hands the result
// to onChange. Reload failures go to onError and leave the previous config
// in effect. It returns false when no config file is in use.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) bool {
	if l.v.ConfigFileUsed() == "" {
		return false
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.unmarshal()
		if err == nil {
			err = ValidateConfig(cfg)
		}
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reloading %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
	return true
}

// ConfigFile returns the config file path if one was used.
func (l *Loader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// Get returns a configuration value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a configuration value.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// IsSet checks if a key has been set.
func (l *Loader) IsSet(key string) bool {
	return l.v.IsSet(key)
}

// AllSettings returns all settings as a map.
func (l *Loader) AllSettings() map[string]interface{} {
	return l.v.AllSettings()
}
