package tracker

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

const bytesPerGB = 1024 * 1024 * 1024

// HostInfo is a snapshot of the machine a run executes on.
type HostInfo struct {
	Platform         string
	GoVersion        string
	CPUCount         int
	MemoryTotalGB    float64
	DiskUsagePercent float64
}

// Metrics renders the snapshot with the dashboard key names.
func (h HostInfo) Metrics() Metrics {
	return Metrics{
		"system_platform":    h.Platform,
		"go_version":         h.GoVersion,
		"cpu_count":          h.CPUCount,
		"memory_total_gb":    h.MemoryTotalGB,
		"disk_usage_percent": h.DiskUsagePercent,
	}
}

// HostProbe gathers host telemetry.
type HostProbe interface {
	Probe(ctx context.Context) (HostInfo, error)
}

// HostProbeFunc adapts a function to HostProbe.
type HostProbeFunc func(ctx context.Context) (HostInfo, error)

func (f HostProbeFunc) Probe(ctx context.Context) (HostInfo, error) { return f(ctx) }

// SystemProbe reads host telemetry from the operating system.
type SystemProbe struct {
	// DiskPath is the mount point to measure. Defaults to "/".
	DiskPath string
}

func (p SystemProbe) Probe(ctx context.Context) (HostInfo, error) {
	diskPath := p.DiskPath
	if diskPath == "" {
		diskPath = "/"
	}

	platform := runtime.GOOS
	if hi, err := host.InfoWithContext(ctx); err == nil && hi.OS != "" {
		platform = hi.OS
	}

	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil || cpus == 0 {
		cpus = runtime.NumCPU()
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return HostInfo{}, fmt.Errorf("failed to read memory stats: %w", err)
	}

	du, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		return HostInfo{}, fmt.Errorf("failed to read disk usage of %s: %w", diskPath, err)
	}

	return HostInfo{
		Platform:         platform,
		GoVersion:        runtime.Version(),
		CPUCount:         cpus,
		MemoryTotalGB:    float64(vm.Total) / bytesPerGB,
		DiskUsagePercent: du.UsedPercent,
	}, nil
}
