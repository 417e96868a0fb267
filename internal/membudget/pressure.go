package membudget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/javi11/altview/internal/bitmapcache"
)

// Trimmer is the part of the cache the monitor drives.
type Trimmer interface {
	TrimToRatio(ratio float64) bitmapcache.TrimResult
}

// PressureConfig controls the low memory monitor.
type PressureConfig struct {
	// Interval between availability polls. Zero disables polling; Signal
	// still works.
	Interval time.Duration
	// LowAvailablePercent is the available memory percentage under which
	// the host is considered under pressure.
	LowAvailablePercent float64
	// TrimRatio is the share of cache bytes kept on a trim.
	TrimRatio float64
	// Cooldown is the minimum time between polled trims while pressure
	// persists.
	Cooldown time.Duration
}

// PressureMonitor trims the cache when the host runs low on memory.
type PressureMonitor struct {
	cfg     PressureConfig
	probe   Probe
	trimmer Trimmer
	log     *slog.Logger

	mu       sync.Mutex
	running  bool
	low      bool
	lastTrim time.Time
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	now func() time.Time
}

// NewPressureMonitor creates a monitor. Start begins polling.
func NewPressureMonitor(cfg PressureConfig, probe Probe, trimmer Trimmer) *PressureMonitor {
	return &PressureMonitor{
		cfg:     cfg,
		probe:   probe,
		trimmer: trimmer,
		log:     slog.Default().With("component", "memory-pressure"),
		now:     time.Now,
	}
}

// Start begins polling host memory.
func (m *PressureMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running || m.cfg.Interval <= 0 {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.pollLoop(loopCtx, m.cfg.Interval)

	m.log.InfoContext(ctx, "Memory pressure monitor started",
		"interval", m.cfg.Interval,
		"low_available_percent", m.cfg.LowAvailablePercent,
		"trim_ratio", m.cfg.TrimRatio)

	return nil
}

// Stop ends polling and waits for the loop to exit.
func (m *PressureMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.log.WarnContext(ctx, "Context cancelled while waiting for pressure monitor")
		return ctx.Err()
	}

	m.log.InfoContext(ctx, "Memory pressure monitor stopped")
	return nil
}

// Signal delivers a platform low memory notification and trims immediately.
func (m *PressureMonitor) Signal(ctx context.Context) bitmapcache.TrimResult {
	return m.trim(ctx, "signal")
}

// Check polls host memory once and trims if it is low. It reports whether a
// trim happened.
func (m *PressureMonitor) Check(ctx context.Context) bool {
	mem, err := m.probe.Memory(ctx)
	if err != nil || mem.TotalBytes == 0 || mem.AvailableBytes == 0 {
		return false
	}

	available := mem.AvailablePercent()

	m.mu.Lock()
	wasLow := m.low
	m.low = available < m.cfg.LowAvailablePercent
	due := m.low && (!wasLow || m.now().Sub(m.lastTrim) >= m.cfg.Cooldown)
	m.mu.Unlock()

	if !due {
		return false
	}

	m.log.WarnContext(ctx, "Host memory is low", "available_percent", available)
	m.trim(ctx, "poll")
	return true
}

func (m *PressureMonitor) pollLoop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *PressureMonitor) trim(ctx context.Context, reason string) bitmapcache.TrimResult {
	m.mu.Lock()
	ratio := m.cfg.TrimRatio
	m.mu.Unlock()

	res := m.trimmer.TrimToRatio(ratio)

	m.mu.Lock()
	m.lastTrim = m.now()
	m.mu.Unlock()

	m.log.InfoContext(ctx, "Trimmed bitmap cache",
		"reason", reason,
		"ratio", ratio,
		"bytes_before", res.BytesBefore,
		"count_before", res.CountBefore,
		"bytes_after", res.BytesAfter,
		"count_after", res.CountAfter)

	return res
}
