package membudget

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/altview/internal/bitmapcache"
	"github.com/javi11/altview/internal/config"
)

type budgetRecorder struct {
	got []bitmapcache.Budget
}

func (r *budgetRecorder) SetBudget(b bitmapcache.Budget) {
	r.got = append(r.got, b)
}

func TestBudgeter_ApplyUsesOverride(t *testing.T) {
	target := &budgetRecorder{}
	b := NewBudgeter(target,
		WithFs(afero.NewMemMapFs()),
		WithProbe(&fakeProbe{mem: physical(16384)}),
		WithTable(testTable))

	res, budget := b.Apply(context.Background(), config.CacheConfig{MaxEntries: 50, MemoryLimitMB: 800})
	assert.Equal(t, SourceOverride, res.Source)
	assert.Equal(t, 800, res.CeilingMB)
	assert.Equal(t, int64(MinCacheMB)*MB, budget.MaxBytes)
	assert.Equal(t, 3, budget.MaxEntries)
	require.Len(t, target.got, 1)
	assert.Equal(t, budget, target.got[0])
	assert.Equal(t, res, b.Last())
}

func TestBudgeter_UpdateBudgetReresolves(t *testing.T) {
	target := &budgetRecorder{}
	b := NewBudgeter(target,
		WithFs(afero.NewMemMapFs()),
		WithProbe(&fakeProbe{mem: physical(16384)}),
		WithTable(testTable))

	require.NoError(t, b.UpdateBudget(config.CacheConfig{MaxEntries: 50, MemoryLimitMB: 8192}))
	require.NoError(t, b.UpdateBudget(config.CacheConfig{MaxEntries: 20}))

	require.Len(t, target.got, 2)
	assert.Equal(t, bitmapcache.Budget{MaxEntries: 50, MaxBytes: int64(MaxCacheMB) * MB}, target.got[0])
	assert.Equal(t, SourcePhysicalHalf, b.Last().Source)
	assert.Equal(t, 20, target.got[1].MaxEntries)
}

func TestPressureConfigFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	pc := PressureConfigFrom(cfg)
	assert.Equal(t, 5*time.Second, pc.Interval)
	assert.Equal(t, 0.5, pc.TrimRatio)
	assert.Equal(t, 30*time.Second, pc.Cooldown)

	disabled := false
	cfg.Pressure.Enabled = &disabled
	cfg.Pressure.TrimRatio = 0.95
	pc = PressureConfigFrom(cfg)
	assert.Zero(t, pc.Interval)
	assert.Equal(t, config.MaxTrimRatio, pc.TrimRatio)
}

func TestPressureMonitor_UpdatePressure(t *testing.T) {
	trimmer := &recordingTrimmer{}
	m := NewPressureMonitor(PressureConfig{Interval: time.Hour, TrimRatio: 0.5}, &fakeProbe{}, trimmer)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	enabled := true
	require.NoError(t, m.UpdatePressure(config.PressureConfig{
		Enabled:             &enabled,
		IntervalSeconds:     60,
		LowAvailablePercent: 20,
		TrimRatio:           0.7,
	}))

	m.Signal(context.Background())
	assert.Equal(t, []float64{0.7}, trimmer.ratios)

	m.mu.Lock()
	assert.True(t, m.running)
	assert.Equal(t, time.Minute, m.cfg.Interval)
	m.mu.Unlock()
}

func TestPressureMonitor_UpdatePressureEnablesPolling(t *testing.T) {
	trimmer := &recordingTrimmer{}
	m := NewPressureMonitor(PressureConfig{TrimRatio: 0.5}, &fakeProbe{}, trimmer)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	m.mu.Lock()
	assert.False(t, m.running, "disabled monitor does not poll")
	m.mu.Unlock()

	enabled := true
	require.NoError(t, m.UpdatePressure(config.PressureConfig{
		Enabled:             &enabled,
		IntervalSeconds:     1,
		LowAvailablePercent: 10,
		TrimRatio:           0.5,
	}))

	m.mu.Lock()
	assert.True(t, m.running)
	assert.Equal(t, time.Second, m.cfg.Interval)
	m.mu.Unlock()

	disabled := false
	require.NoError(t, m.UpdatePressure(config.PressureConfig{Enabled: &disabled, TrimRatio: 0.5}))

	m.mu.Lock()
	assert.False(t, m.running)
	m.mu.Unlock()
}
