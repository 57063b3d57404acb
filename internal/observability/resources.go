package observability

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// ResourceUsage is one point-in-time process environment sample.
type ResourceUsage struct {
	CPUPercent    float64
	MemoryPercent float64
}

// SystemSampler reads CPU and memory usage from the host. The CPU reading
// is averaged over a one-second window, so Sample blocks briefly.
type SystemSampler struct {
	interval time.Duration
}

func NewSystemSampler() *SystemSampler {
	return &SystemSampler{interval: time.Second}
}

func (s *SystemSampler) Sample() (ResourceUsage, error) {
	interval := time.Second
	if s != nil && s.interval > 0 {
		interval = s.interval
	}

	cpuPercents, err := cpu.Percent(interval, false)
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("failed to sample cpu usage: %w", err)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return ResourceUsage{}, fmt.Errorf("failed to sample memory usage: %w", err)
	}

	usage := ResourceUsage{MemoryPercent: vm.UsedPercent}
	if len(cpuPercents) > 0 {
		usage.CPUPercent = cpuPercents[0]
	}
	return usage, nil
}
