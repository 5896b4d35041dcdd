package sysmon

import (
	"context"
	"runtime"
	"testing"
)

func TestSample_ReturnsValidRanges(t *testing.T) {
	s := Sample()
	if s.CPUPercent < 0 || s.CPUPercent > 100 {
		t.Errorf("CPUPercent out of range: %f", s.CPUPercent)
	}
	if s.MemPercent < 0 || s.MemPercent > 100 {
		t.Errorf("MemPercent out of range: %f", s.MemPercent)
	}
}

func TestSample_MemPercentNonZero(t *testing.T) {
	s := Sample()
	if s.MemPercent == 0 {
		t.Error("expected non-zero MemPercent on a running system")
	}
}

func TestCollectHostInfo(t *testing.T) {
	info := CollectHostInfo(context.Background())
	if info.LogicalCPUs < 1 {
		t.Errorf("LogicalCPUs = %d, want >= 1", info.LogicalCPUs)
	}
	if info.Hostname == "" {
		t.Error("expected a hostname")
	}
	if info.Machine == "" {
		t.Error("expected a hardware platform")
	}
	if info.TotalMemory == 0 {
		t.Error("expected non-zero total memory")
	}
	if info.OS != runtime.GOOS {
		t.Errorf("OS = %q, want %q", info.OS, runtime.GOOS)
	}
}

func TestFillFromUname_KeepsExistingValues(t *testing.T) {
	info := HostInfo{Hostname: "fixed", KernelVersion: "1.0", Machine: "m"}
	fillFromUname(&info)
	if info.Hostname != "fixed" || info.KernelVersion != "1.0" || info.Machine != "m" {
		t.Errorf("existing values were overwritten: %+v", info)
	}
}

func TestSamplePerCPU(t *testing.T) {
	s := SamplePerCPU()
	for i, pct := range s.PerCPU {
		if pct < 0 || pct > 100 {
			t.Errorf("PerCPU[%d] out of range: %f", i, pct)
		}
	}
}
