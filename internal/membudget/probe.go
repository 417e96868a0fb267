package membudget

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/afero"
)

// Memory is a snapshot of host memory.
type Memory struct {
	TotalBytes     uint64
	AvailableBytes uint64
}

// AvailablePercent returns available memory as a percentage of total.
func (m Memory) AvailablePercent() float64 {
	if m.TotalBytes == 0 {
		return 0
	}
	return float64(m.AvailableBytes) * 100 / float64(m.TotalBytes)
}

// Probe reports host memory facts.
type Probe interface {
	Memory(ctx context.Context) (Memory, error)
	HardwareModel(ctx context.Context) (string, error)
}

type systemProbe struct {
	fs afero.Fs
}

// NewSystemProbe returns a probe backed by gopsutil with platform fallbacks.
// fs is used for files under /sys and /proc.
func NewSystemProbe(fs afero.Fs) Probe {
	return systemProbe{fs: fs}
}

func (p systemProbe) Memory(ctx context.Context) (Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil && vm.Total > 0 {
		return Memory{TotalBytes: vm.Total, AvailableBytes: vm.Available}, nil
	}

	m, ferr := platformMemory()
	if ferr != nil {
		return Memory{}, fmt.Errorf("failed to read host memory: %w", ferr)
	}
	return m, nil
}

func (p systemProbe) HardwareModel(ctx context.Context) (string, error) {
	return platformModel(p.fs)
}
