package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// DumpFunc writes a core image of pid into dir and returns its path.
type DumpFunc func(ctx context.Context, dir string, pid int) (string, error)

// CoreOptions configures a CoreCollector.
type CoreOptions struct {
	// Tool is the core dumper executable, "gcore" when empty.
	Tool    string
	Timeout time.Duration
	Runner  *ToolRunner
	Namer   *core.Namer
	Logger  *slog.Logger

	// Overrides for tests.
	GOOS      string
	PID       int
	Dump      DumpFunc
	Libraries func(ctx context.Context, pid int) []string
	Exe       func() (string, error)
}

// CoreCollector produces a core image of the running process packaged with
// the executable and the shared libraries it has mapped.
type CoreCollector struct {
	tool      string
	timeout   time.Duration
	runner    *ToolRunner
	namer     *core.Namer
	logger    *slog.Logger
	goos      string
	pid       int
	dump      DumpFunc
	libraries func(ctx context.Context, pid int) []string
	exe       func() (string, error)
}

// NewCoreCollector creates a core collector.
func NewCoreCollector(opts CoreOptions) *CoreCollector {
	c := &CoreCollector{
		tool:      opts.Tool,
		timeout:   opts.Timeout,
		runner:    opts.Runner,
		namer:     opts.Namer,
		logger:    opts.Logger,
		goos:      opts.GOOS,
		pid:       opts.PID,
		dump:      opts.Dump,
		libraries: opts.Libraries,
		exe:       opts.Exe,
	}
	if c.tool == "" {
		c.tool = "gcore"
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.runner == nil {
		c.runner = NewToolRunner(nil, c.logger, 0)
	}
	if c.namer == nil {
		c.namer = core.NewNamer()
	}
	if c.goos == "" {
		c.goos = runtime.GOOS
	}
	if c.pid == 0 {
		c.pid = os.Getpid()
	}
	if c.dump == nil {
		c.dump = c.gcore
	}
	if c.libraries == nil {
		c.libraries = MappedFiles
	}
	if c.exe == nil {
		c.exe = os.Executable
	}
	return c
}

// Produce writes a core archive into dir. It implements core.Producer.
func (c *CoreCollector) Produce(ctx context.Context, dir string, info core.CaptureInfo) (string, error) {
	if c.goos == "windows" {
		return "", core.ErrUnsupported("core dump", c.goos)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating dump dir: %w", err)
	}

	// Same filesystem as the archive so nothing large crosses devices
	work, err := os.MkdirTemp(dir, ".coredump-")
	if err != nil {
		return "", fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(work)

	corePath, err := c.dump(ctx, work, c.pid)
	if err != nil {
		return "", fmt.Errorf("dumping core: %w", err)
	}

	manifest := Manifest{
		CreatedAt: time.Now().UTC(),
		ProcessID: c.pid,
		GoVersion: runtime.Version(),
		GOOS:      c.goos,
		GOARCH:    runtime.GOARCH,
		Tool:      c.tool,
		Trigger:   info.Trigger,
		RequestID: info.RequestID,
		Core:      "core/" + filepath.Base(corePath),
	}
	entries := []ArchiveEntry{{Name: manifest.Core, Path: corePath}}

	if exe, err := c.exe(); err == nil {
		manifest.Executable = exe
		entries = appendReadable(entries, &manifest, "bin/"+filepath.Base(exe), exe)
	}

	for _, lib := range c.libraries(ctx, c.pid) {
		if lib == manifest.Executable {
			continue
		}
		name := "lib/" + strings.TrimPrefix(filepath.ToSlash(lib), "/")
		before := len(entries)
		entries = appendReadable(entries, &manifest, name, lib)
		if len(entries) > before {
			manifest.Libraries = append(manifest.Libraries, lib)
		}
	}

	path := filepath.Join(dir, c.namer.Next(core.KindCoreImage))
	if err := WriteArchive(path, manifest, entries); err != nil {
		return "", err
	}

	c.logger.Debug("core archive written",
		"path", path,
		"libraries", len(manifest.Libraries),
		"skipped", len(manifest.Skipped),
	)
	return path, nil
}

func appendReadable(entries []ArchiveEntry, m *Manifest, name, path string) []ArchiveEntry {
	f, err := os.Open(path)
	if err != nil {
		m.Skipped = append(m.Skipped, path)
		return entries
	}
	_ = f.Close()
	return append(entries, ArchiveEntry{Name: name, Path: path})
}

// gcore runs `gcore -o <dir>/core <pid>`, which writes <dir>/core.<pid>.
func (c *CoreCollector) gcore(ctx context.Context, dir string, pid int) (string, error) {
	prefix := filepath.Join(dir, "core")
	out, err := c.runner.Run(ctx, c.timeout, c.tool, "-o", prefix, strconv.Itoa(pid))
	if err != nil {
		return "", err
	}

	expected := prefix + "." + strconv.Itoa(pid)
	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	}

	// Some dumpers ignore the pid suffix
	matches, _ := filepath.Glob(prefix + "*")
	if len(matches) > 0 {
		return matches[0], nil
	}
	return "", fmt.Errorf("%s produced no core file: %s", c.tool, strings.TrimSpace(out.Stdout+out.Stderr))
}
