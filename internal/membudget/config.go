package membudget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/javi11/altview/internal/bitmapcache"
	"github.com/javi11/altview/internal/config"
)

// BudgetTarget is the part of the cache the budgeter resizes.
type BudgetTarget interface {
	SetBudget(b bitmapcache.Budget)
}

// Budgeter resolves the memory ceiling and applies the derived budget to
// the cache. It satisfies config.BudgetUpdater.
type Budgeter struct {
	target BudgetTarget
	opts   []Option
	log    *slog.Logger

	mu   sync.Mutex
	last Resolution
}

// NewBudgeter creates a budgeter. opts are passed to every resolver it
// builds; the override from the cache config is appended last.
func NewBudgeter(target BudgetTarget, opts ...Option) *Budgeter {
	return &Budgeter{
		target: target,
		opts:   opts,
		log:    slog.Default().With("component", "membudget"),
	}
}

// Apply resolves the ceiling for cfg and installs the budget.
func (b *Budgeter) Apply(ctx context.Context, cfg config.CacheConfig) (Resolution, bitmapcache.Budget) {
	opts := append(append([]Option(nil), b.opts...), WithOverrideMB(cfg.MemoryLimitMB))
	res := NewResolver(opts...).Resolve(ctx)
	budget := BudgetFor(res.CeilingMB, cfg.MaxEntries)

	b.target.SetBudget(budget)

	b.mu.Lock()
	b.last = res
	b.mu.Unlock()

	b.log.InfoContext(ctx, "Cache budget applied",
		"ceiling_mb", res.CeilingMB,
		"source", res.Source,
		"max_entries", budget.MaxEntries,
		"max_bytes", budget.MaxBytes)

	return res, budget
}

// UpdateBudget re-resolves after a configuration change.
func (b *Budgeter) UpdateBudget(cfg config.CacheConfig) error {
	b.Apply(context.Background(), cfg)
	return nil
}

// Last returns the most recent resolution.
func (b *Budgeter) Last() Resolution {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// PressureConfigFrom converts the pressure section of cfg.
func PressureConfigFrom(cfg *config.Config) PressureConfig {
	pc := PressureConfig{
		LowAvailablePercent: cfg.GetLowAvailablePercent(),
		TrimRatio:           cfg.GetTrimRatio(),
		Cooldown:            cfg.GetPressureCooldown(),
	}
	if cfg.GetPressureEnabled() {
		pc.Interval = cfg.GetPressureInterval()
	}
	return pc
}

// UpdatePressure retunes the monitor. A running monitor is stopped first;
// polling then starts whenever the new settings enable it. It satisfies
// config.PressureUpdater.
func (m *PressureMonitor) UpdatePressure(p config.PressureConfig) error {
	next := PressureConfigFrom(&config.Config{Pressure: p})

	m.mu.Lock()
	wasRunning := m.running
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if wasRunning {
		if err := m.Stop(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.cfg = next
	m.low = false
	m.mu.Unlock()

	return m.Start(ctx)
}
