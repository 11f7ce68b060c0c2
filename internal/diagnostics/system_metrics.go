package diagnostics

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// GPUInfo names a graphics card found on the host.
type GPUInfo struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Vendor string `json:"vendor,omitempty"`
}

// HostInfo describes the machine the process runs on.
type HostInfo struct {
	Hostname        string    `json:"hostname"`
	OS              string    `json:"os"`
	Platform        string    `json:"platform"`
	PlatformVersion string    `json:"platform_version"`
	KernelVersion   string    `json:"kernel_version"`
	KernelArch      string    `json:"kernel_arch"`
	Virtualization  string    `json:"virtualization,omitempty"`
	BootTime        time.Time `json:"boot_time"`
	Uptime          string    `json:"uptime"`
}

// SystemMetrics holds system-wide resource usage.
type SystemMetrics struct {
	Host HostInfo `json:"host"`

	// CPU
	CPUModel   string  `json:"cpu_model"`
	CPUCores   int     `json:"cpu_cores"`
	CPUThreads int     `json:"cpu_threads"`
	CPUPercent float64 `json:"cpu_percent"`

	// Memory (in MB)
	MemTotalMB     float64 `json:"mem_total_mb"`
	MemUsedMB      float64 `json:"mem_used_mb"`
	MemAvailableMB float64 `json:"mem_available_mb"`
	MemPercent     float64 `json:"mem_percent"`
	SwapTotalMB    float64 `json:"swap_total_mb"`
	SwapUsedMB     float64 `json:"swap_used_mb"`

	// Disk holding the dump directory (in GB)
	DiskPath    string  `json:"disk_path"`
	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskFreeGB  float64 `json:"disk_free_gb"`
	DiskPercent float64 `json:"disk_percent"`

	// Load Average (Unix)
	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`

	GPUs []GPUInfo `json:"gpus,omitempty"`
}

// SystemMetricsCollector collects system-wide statistics. Static hardware
// details are read once.
type SystemMetricsCollector struct {
	mu           sync.Mutex
	lastCPUTotal float64
	lastCPUIdle  float64

	infoCollected bool
	cpuModel      string
	cpuCores      int
	cpuThreads    int
	gpus          []GPUInfo
}

// NewSystemMetricsCollector creates a new system metrics collector.
func NewSystemMetricsCollector() *SystemMetricsCollector {
	return &SystemMetricsCollector{}
}

// Collect gathers current system statistics. diskPath selects the
// filesystem reported; empty means the root filesystem.
func (c *SystemMetricsCollector) Collect(diskPath string) SystemMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := SystemMetrics{}

	c.collectHardwareInfo(&stats)
	c.collectHostInfo(&stats)
	c.collectMemoryInfo(&stats)
	c.collectCPUInfo(&stats)
	c.collectDiskInfo(&stats, diskPath)
	c.collectLoadAvg(&stats)

	return stats
}

func (c *SystemMetricsCollector) collectHostInfo(stats *SystemMetrics) {
	info, err := host.Info()
	if err != nil || info == nil {
		return
	}
	stats.Host = HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		KernelArch:      info.KernelArch,
		Virtualization:  info.VirtualizationSystem,
		// #nosec G115 -- boot time in seconds fits int64
		BootTime: time.Unix(int64(info.BootTime), 0).UTC(),
		// #nosec G115 -- uptime in seconds fits int64
		Uptime: (time.Duration(info.Uptime) * time.Second).String(),
	}
}

// collectMemoryInfo reads system memory information.
func (c *SystemMetricsCollector) collectMemoryInfo(stats *SystemMetrics) {
	vm, err := mem.VirtualMemory()
	if err == nil {
		stats.MemTotalMB = float64(vm.Total) / 1024 / 1024
		stats.MemUsedMB = float64(vm.Used) / 1024 / 1024
		stats.MemAvailableMB = float64(vm.Available) / 1024 / 1024
		stats.MemPercent = vm.UsedPercent
	}

	swap, err := mem.SwapMemory()
	if err == nil {
		stats.SwapTotalMB = float64(swap.Total) / 1024 / 1024
		stats.SwapUsedMB = float64(swap.Used) / 1024 / 1024
	}
}

// collectCPUInfo reads system CPU usage. The percentage covers the time
// since the previous call and is 0 on the first one.
func (c *SystemMetricsCollector) collectCPUInfo(stats *SystemMetrics) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return
	}

	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	idleTime := t.Idle + t.Iowait

	if c.lastCPUTotal > 0 {
		totalDelta := total - c.lastCPUTotal
		idleDelta := idleTime - c.lastCPUIdle
		if totalDelta > 0 {
			stats.CPUPercent = (1 - idleDelta/totalDelta) * 100
		}
	}

	c.lastCPUTotal = total
	c.lastCPUIdle = idleTime
}

func (c *SystemMetricsCollector) collectDiskInfo(stats *SystemMetrics, path string) {
	if path == "" {
		path = rootDiskPath()
	}
	stats.DiskPath = path
	usage, err := disk.Usage(path)
	if err != nil {
		return
	}
	stats.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
	stats.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	stats.DiskPercent = usage.UsedPercent
}

// collectLoadAvg reads system load averages.
func (c *SystemMetricsCollector) collectLoadAvg(stats *SystemMetrics) {
	avg, err := load.Avg()
	if err != nil {
		return
	}
	stats.LoadAvg1 = avg.Load1
	stats.LoadAvg5 = avg.Load5
	stats.LoadAvg15 = avg.Load15
}

func (c *SystemMetricsCollector) collectHardwareInfo(stats *SystemMetrics) {
	if !c.infoCollected {
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			c.cpuModel = strings.TrimSpace(infos[0].ModelName)
		}
		if cores, err := cpu.Counts(false); err == nil && cores > 0 {
			c.cpuCores = cores
		}
		if threads, err := cpu.Counts(true); err == nil && threads > 0 {
			c.cpuThreads = threads
		}
		c.gpus = queryGPUs()
		c.infoCollected = true
	}
	stats.CPUModel = c.cpuModel
	stats.CPUCores = c.cpuCores
	stats.CPUThreads = c.cpuThreads
	stats.GPUs = append([]GPUInfo(nil), c.gpus...)
}

func queryGPUs() []GPUInfo {
	info, err := ghw.GPU()
	if err != nil || info == nil || len(info.GraphicsCards) == 0 {
		return nil
	}

	gpus := make([]GPUInfo, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		gpu := GPUInfo{Index: card.Index}
		if card.DeviceInfo != nil {
			if card.DeviceInfo.Vendor != nil {
				gpu.Vendor = strings.TrimSpace(card.DeviceInfo.Vendor.Name)
			}
			if card.DeviceInfo.Product != nil {
				gpu.Name = strings.TrimSpace(card.DeviceInfo.Product.Name)
			}
		}
		if gpu.Name == "" {
			gpu.Name = fmt.Sprintf("GPU %d", card.Index)
		}
		gpus = append(gpus, gpu)
	}
	return gpus
}

func rootDiskPath() string {
	if runtime.GOOS == "windows" {
		return "C:\\"
	}
	return "/"
}
