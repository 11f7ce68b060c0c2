package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInfo describes the running process. Fields that could not be read
// are left empty.
type ProcessInfo struct {
	PID        int32     `json:"pid"`
	PPID       int32     `json:"ppid"`
	Name       string    `json:"name"`
	Executable string    `json:"executable"`
	Cmdline    []string  `json:"cmdline,omitempty"`
	Cwd        string    `json:"cwd,omitempty"`
	Username   string    `json:"username,omitempty"`
	StartTime  time.Time `json:"start_time"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"`
	RSSMB      float64   `json:"rss_mb"`
	VMSMB      float64   `json:"vms_mb"`
	CPUPercent float64   `json:"cpu_percent"`
}

// CollectProcessInfo reads information about process pid, best-effort.
func CollectProcessInfo(ctx context.Context, pid int) ProcessInfo {
	// #nosec G115 -- pids fit in int32 on all supported platforms
	info := ProcessInfo{PID: int32(pid)}

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return info
	}

	if v, err := proc.PpidWithContext(ctx); err == nil {
		info.PPID = v
	}
	if v, err := proc.NameWithContext(ctx); err == nil {
		info.Name = v
	}
	if v, err := proc.ExeWithContext(ctx); err == nil {
		info.Executable = v
	}
	if v, err := proc.CmdlineSliceWithContext(ctx); err == nil {
		info.Cmdline = v
	}
	if v, err := proc.CwdWithContext(ctx); err == nil {
		info.Cwd = v
	}
	if v, err := proc.UsernameWithContext(ctx); err == nil {
		info.Username = v
	}
	if v, err := proc.CreateTimeWithContext(ctx); err == nil {
		info.StartTime = time.UnixMilli(v).UTC()
	}
	if v, err := proc.NumThreadsWithContext(ctx); err == nil {
		info.NumThreads = v
	}
	if v, err := proc.NumFDsWithContext(ctx); err == nil {
		info.NumFDs = v
	}
	if v, err := proc.MemoryInfoWithContext(ctx); err == nil && v != nil {
		info.RSSMB = float64(v.RSS) / 1024 / 1024
		info.VMSMB = float64(v.VMS) / 1024 / 1024
	}
	if v, err := proc.CPUPercentWithContext(ctx); err == nil {
		info.CPUPercent = v
	}

	return info
}

// MappedFiles returns the shared objects mapped into process pid, sorted
// and without duplicates. Platforms without memory map support yield an
// empty list.
func MappedFiles(ctx context.Context, pid int) []string {
	// #nosec G115 -- pids fit in int32 on all supported platforms
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil
	}
	maps, err := proc.MemoryMapsWithContext(ctx, false)
	if err != nil || maps == nil {
		return nil
	}

	seen := make(map[string]bool)
	var files []string
	for _, m := range *maps {
		path := strings.TrimSpace(m.Path)
		if !isSharedObject(path) || seen[path] {
			continue
		}
		if st, err := os.Stat(path); err != nil || !st.Mode().IsRegular() {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	sort.Strings(files)
	return files
}

func isSharedObject(path string) bool {
	if !filepath.IsAbs(path) {
		return false
	}
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".so") || strings.Contains(base, ".so.") || strings.HasSuffix(base, ".dylib")
}
