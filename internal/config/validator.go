package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateModes(cfg)
	v.validateStorage(cfg)
	v.validateCapture(cfg)
	v.validateMonitor(&cfg.Monitor)
	v.validateLog(&cfg.Log)
	v.validateAPI(&cfg.API)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: msg,
	})
}

func (v *Validator) validateModes(cfg *Config) {
	for _, kind := range core.ArtifactKinds {
		mode := cfg.Modes()[kind]
		if err := mode.Validate(); err != nil {
			v.addError(kind.String(), string(mode), err.Error())
		}
	}

	// Panics only ever produce reports
	if core.Mode(cfg.HeapDump).Has(core.CapabilityException) {
		v.addError("heapdump", cfg.HeapDump, "exception capture is only available for nodereport")
	}
	if core.Mode(cfg.CoreDump).Has(core.CapabilityException) {
		v.addError("coredump", cfg.CoreDump, "exception capture is only available for nodereport")
	}
}

func (v *Validator) validateStorage(cfg *Config) {
	if strings.TrimSpace(cfg.Name) == "" {
		v.addError("name", cfg.Name, "required")
	}
	if cfg.ObjectStorage == "" {
		v.addError("objectstorage", cfg.ObjectStorage, "container name required")
	} else if strings.Contains(cfg.ObjectStorage, "/") {
		v.addError("objectstorage", cfg.ObjectStorage, "container name must not contain '/'")
	}
	if cfg.DumpDir == "" {
		v.addError("dump_dir", cfg.DumpDir, "required")
	}
	if cfg.UploadRetries < 1 || cfg.UploadRetries > 10 {
		v.addError("upload_retries", cfg.UploadRetries, "must be between 1 and 10")
	}
}

func (v *Validator) validateCapture(cfg *Config) {
	v.validateDuration("exception_wait", cfg.ExceptionWait)
	v.validateDuration("coredump_timeout", cfg.CoreDumpTimeout)
	v.validateDuration("shutdown_grace", cfg.ShutdownGrace)
	if cfg.CoreDumpTool == "" {
		v.addError("coredump_tool", cfg.CoreDumpTool, "required")
	}
}

func (v *Validator) validateMonitor(cfg *MonitorConfig) {
	if !cfg.Enabled {
		return
	}
	v.validateDuration("monitor.interval", cfg.Interval)
	if cfg.FDThresholdPercent < 0 || cfg.FDThresholdPercent > 100 {
		v.addError("monitor.fd_threshold_percent", cfg.FDThresholdPercent, "must be between 0 and 100")
	}
	if cfg.GoroutineThreshold < 0 {
		v.addError("monitor.goroutine_threshold", cfg.GoroutineThreshold, "must be non-negative")
	}
	if cfg.MemoryThresholdMB < 0 {
		v.addError("monitor.memory_threshold_mb", cfg.MemoryThresholdMB, "must be non-negative")
	}
	if cfg.MinFreeDiskMB < 0 {
		v.addError("monitor.min_free_disk_mb", cfg.MinFreeDiskMB, "must be non-negative")
	}
	if cfg.HistorySize < 0 {
		v.addError("monitor.history_size", cfg.HistorySize, "must be non-negative")
	}
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
	if cfg.MaxSizeMB < 0 {
		v.addError("log.max_size_mb", cfg.MaxSizeMB, "must be non-negative")
	}
	if cfg.MaxBackups < 0 {
		v.addError("log.max_backups", cfg.MaxBackups, "must be non-negative")
	}
}

func (v *Validator) validateAPI(cfg *APIConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("api.port", cfg.Port, "must be between 1 and 65535")
	}
}

func (v *Validator) validateDuration(field, value string) {
	d, err := time.ParseDuration(value)
	if err != nil {
		v.addError(field, value, "invalid duration format")
		return
	}
	if d <= 0 {
		v.addError(field, value, "must be positive")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
