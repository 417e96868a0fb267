package membudget

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	mem      Memory
	memErr   error
	model    string
	modelErr error
}

func (p *fakeProbe) Memory(ctx context.Context) (Memory, error) {
	return p.mem, p.memErr
}

func (p *fakeProbe) HardwareModel(ctx context.Context) (string, error) {
	return p.model, p.modelErr
}

var testTable = []HardwareProfile{
	{Model: "Board A", PhysicalMB: 2048, CrashThresholdMB: 1300},
	{Model: "Board B", PhysicalMB: 2300, CrashThresholdMB: 1100},
	{Model: "Laptop C", PhysicalMB: 8192, CrashThresholdMB: 5000},
}

func physical(mb uint64) Memory {
	return Memory{TotalBytes: mb * MB, AvailableBytes: mb * MB / 2}
}

func TestResolver_Strategy(t *testing.T) {
	noModel := errors.New("no model")

	tests := []struct {
		name       string
		files      map[string]string
		override   int
		probe      *fakeProbe
		wantMB     int
		wantSource Source
	}{
		{
			name:       "override",
			override:   777,
			probe:      &fakeProbe{mem: physical(16384)},
			wantMB:     777,
			wantSource: SourceOverride,
		},
		{
			name:       "cgroup v2 limit",
			files:      map[string]string{"/sys/fs/cgroup/memory.max": "1073741824\n"},
			probe:      &fakeProbe{mem: physical(16384), model: "Laptop C"},
			wantMB:     1024,
			wantSource: SourceProcessLimit,
		},
		{
			name:       "cgroup v1 limit",
			files:      map[string]string{"/sys/fs/cgroup/memory/memory.limit_in_bytes": "2147483648"},
			probe:      &fakeProbe{mem: physical(16384)},
			wantMB:     2048,
			wantSource: SourceProcessLimit,
		},
		{
			name:       "unlimited cgroup falls through to model",
			files:      map[string]string{"/sys/fs/cgroup/memory.max": "max\n"},
			probe:      &fakeProbe{mem: physical(8192), model: "Laptop C"},
			wantMB:     5000,
			wantSource: SourceHardwareModel,
		},
		{
			name:       "v1 no limit sentinel",
			files:      map[string]string{"/sys/fs/cgroup/memory/memory.limit_in_bytes": "9223372036854771712"},
			probe:      &fakeProbe{mem: physical(8192), model: "laptop c"},
			wantMB:     5000,
			wantSource: SourceHardwareModel,
		},
		{
			name:       "limit above physical is ignored",
			files:      map[string]string{"/sys/fs/cgroup/memory.max": "68719476736"},
			probe:      &fakeProbe{mem: physical(4000), modelErr: noModel},
			wantMB:     2000,
			wantSource: SourcePhysicalHalf,
		},
		{
			name:       "nearby memory takes minimum threshold",
			probe:      &fakeProbe{mem: physical(2200), model: "Unknown Board"},
			wantMB:     1100,
			wantSource: SourceNearbyMemory,
		},
		{
			name:       "nearby boundary is inclusive",
			probe:      &fakeProbe{mem: physical(1548), modelErr: noModel},
			wantMB:     1300,
			wantSource: SourceNearbyMemory,
		},
		{
			name:       "half of physical",
			probe:      &fakeProbe{mem: physical(6000), modelErr: noModel},
			wantMB:     3000,
			wantSource: SourcePhysicalHalf,
		},
		{
			name:       "half of physical clamped low",
			probe:      &fakeProbe{mem: physical(300), modelErr: noModel},
			wantMB:     MinPhysicalCeilingMB,
			wantSource: SourcePhysicalHalf,
		},
		{
			name:       "half of physical clamped high",
			probe:      &fakeProbe{mem: physical(65536), modelErr: noModel},
			wantMB:     MaxPhysicalCeilingMB,
			wantSource: SourcePhysicalHalf,
		},
		{
			name:       "model without physical memory",
			probe:      &fakeProbe{memErr: errors.New("no memory info"), model: "Board A"},
			wantMB:     1300,
			wantSource: SourceHardwareModel,
		},
		{
			name:       "nothing known",
			probe:      &fakeProbe{memErr: errors.New("no memory info"), modelErr: noModel},
			wantMB:     FallbackCeilingMB,
			wantSource: SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for name, content := range tt.files {
				require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
			}

			r := NewResolver(WithFs(fs), WithProbe(tt.probe), WithTable(testTable), WithOverrideMB(tt.override))

			res := r.Resolve(context.Background())
			assert.Equal(t, tt.wantMB, res.CeilingMB)
			assert.Equal(t, tt.wantSource, res.Source)
			assert.Equal(t, tt.wantMB, r.ResolveDeviceMemoryCeilingMB(context.Background()))
		})
	}
}

func TestKnownHardwareIsConsistent(t *testing.T) {
	for _, p := range KnownHardware {
		assert.NotEmpty(t, p.Model)
		assert.Positive(t, p.CrashThresholdMB, p.Model)
		assert.Less(t, p.CrashThresholdMB, p.PhysicalMB, p.Model)
	}
}

func TestBudgetFor(t *testing.T) {
	tests := []struct {
		name        string
		ceilingMB   int
		maxEntries  int
		wantBytes   int64
		wantEntries int
	}{
		{name: "half of ceiling", ceilingMB: 3000, maxEntries: 200, wantBytes: 1500 * MB, wantEntries: 200},
		{name: "clamped low", ceilingMB: 256, maxEntries: 200, wantBytes: 512 * MB, wantEntries: 3},
		{name: "clamped high", ceilingMB: 16384, maxEntries: 200, wantBytes: 4096 * MB, wantEntries: 200},
		{name: "scarce host tightens count", ceilingMB: 1024, maxEntries: 200, wantBytes: 512 * MB, wantEntries: 3},
		{name: "configured count below derived", ceilingMB: 2000, maxEntries: 2, wantBytes: 1000 * MB, wantEntries: 2},
		{name: "unset count on scarce host", ceilingMB: 2000, maxEntries: 0, wantBytes: 1000 * MB, wantEntries: 7},
		{name: "unset count on roomy host", ceilingMB: 8192, maxEntries: 0, wantBytes: 4096 * MB, wantEntries: 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BudgetFor(tt.ceilingMB, tt.maxEntries)
			assert.Equal(t, tt.wantBytes, b.MaxBytes)
			assert.Equal(t, tt.wantEntries, b.MaxEntries)
		})
	}
}
