package sysmon

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostInfo describes the machine the workers run on.
type HostInfo struct {
	Hostname      string `json:"hostname" yaml:"hostname"`
	OS            string `json:"os" yaml:"os"`
	Platform      string `json:"platform" yaml:"platform"`
	KernelVersion string `json:"kernel_version,omitempty" yaml:"kernel_version,omitempty"`
	// Machine is the hardware platform, e.g. x86_64 or aarch64.
	Machine       string `json:"machine" yaml:"machine"`
	LogicalCPUs   int    `json:"logical_cpus" yaml:"logical_cpus"`
	PhysicalCores int    `json:"physical_cores,omitempty" yaml:"physical_cores,omitempty"`
	CPUModel      string `json:"cpu_model,omitempty" yaml:"cpu_model,omitempty"`
	TotalMemory   uint64 `json:"total_memory" yaml:"total_memory"`
}

// CollectHostInfo gathers the host description. Fields gopsutil cannot
// provide fall back to the runtime and to uname where available; the call
// never fails outright.
func CollectHostInfo(ctx context.Context) HostInfo {
	info := HostInfo{
		OS:          runtime.GOOS,
		Machine:     runtime.GOARCH,
		LogicalCPUs: runtime.NumCPU(),
	}
	if name, err := os.Hostname(); err == nil {
		info.Hostname = name
	}
	if h, err := host.InfoWithContext(ctx); err == nil && h != nil {
		if h.Hostname != "" {
			info.Hostname = h.Hostname
		}
		info.Platform = h.Platform
		if h.PlatformVersion != "" {
			info.Platform += " " + h.PlatformVersion
		}
		info.KernelVersion = h.KernelVersion
		if h.KernelArch != "" {
			info.Machine = h.KernelArch
		}
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		info.LogicalCPUs = n
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil && n > 0 {
		info.PhysicalCores = n
	}
	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm != nil {
		info.TotalMemory = vm.Total
	}
	fillFromUname(&info)
	return info
}
