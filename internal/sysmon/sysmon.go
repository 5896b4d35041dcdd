// Package sysmon samples system-wide CPU and memory usage and describes the
// host for the information report.
package sysmon

import (
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Stats holds a single snapshot of system-wide resource usage.
type Stats struct {
	CPUPercent float64 // 0.0 .. 100.0, all CPUs combined
	MemPercent float64 // 0.0 .. 100.0
	// PerCPU is the busy percentage of each logical CPU, when requested.
	PerCPU []float64
}

// Sample collects a single system-wide CPU and memory snapshot.
// CPU uses interval=0 (delta since last call). Returns zero values on error.
func Sample() Stats {
	return sample(false)
}

// SamplePerCPU is Sample plus the per-CPU breakdown, which shows how a thread
// run spreads over the cores.
func SamplePerCPU() Stats {
	return sample(true)
}

func sample(perCPU bool) Stats {
	var s Stats
	cpuPcts, err := cpu.Percent(0, false)
	if err == nil && len(cpuPcts) > 0 {
		s.CPUPercent = cpuPcts[0]
	}
	if perCPU {
		if pcts, err := cpu.Percent(0, true); err == nil {
			s.PerCPU = pcts
		}
	}
	vmem, err := mem.VirtualMemory()
	if err == nil && vmem != nil {
		s.MemPercent = vmem.UsedPercent
	}
	return s
}
