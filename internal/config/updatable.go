package config

import (
	"log/slog"
	"maps"
)

// ComponentUpdater defines interface for components that can update their configuration dynamically
type ComponentUpdater interface {
	UpdateConfig(newConfig *Config) error
}

// BudgetUpdater defines interface for components that re-resolve the cache budget
type BudgetUpdater interface {
	UpdateBudget(cache CacheConfig) error
}

// LoggingUpdater defines interface for components that can update logging levels
type LoggingUpdater interface {
	UpdateLevel(level string) error
}

// PressureUpdater defines interface for components that can retune memory pressure handling
type PressureUpdater interface {
	UpdatePressure(pressure PressureConfig) error
}

// ComponentRegistry holds references to updatable components
type ComponentRegistry struct {
	Budget   BudgetUpdater
	Logging  LoggingUpdater
	Pressure PressureUpdater
	logger   *slog.Logger
}

// NewComponentRegistry creates a new component registry
func NewComponentRegistry(logger *slog.Logger) *ComponentRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	return &ComponentRegistry{
		logger: logger,
	}
}

// RegisterBudget registers a cache budget updater
func (r *ComponentRegistry) RegisterBudget(updater BudgetUpdater) {
	r.Budget = updater
}

// RegisterLogging registers a logging updater
func (r *ComponentRegistry) RegisterLogging(updater LoggingUpdater) {
	r.Logging = updater
}

// RegisterPressure registers a memory pressure updater
func (r *ComponentRegistry) RegisterPressure(updater PressureUpdater) {
	r.Pressure = updater
}

// ApplyUpdates applies configuration updates to all registered components.
// It matches the ChangeCallback signature.
func (r *ComponentRegistry) ApplyUpdates(oldConfig, newConfig *Config) {
	if oldConfig == nil || newConfig == nil {
		return
	}

	// Update log level
	if oldConfig.Log.Level != newConfig.Log.Level {
		if r.Logging != nil {
			if err := r.Logging.UpdateLevel(newConfig.Log.Level); err != nil {
				r.logger.Error("Failed to update log level", "err", err)
			} else {
				r.logger.Info("Log level updated successfully",
					"old", oldConfig.Log.Level,
					"new", newConfig.Log.Level)
			}
		}
	}

	// Re-resolve the cache budget
	if oldConfig.Cache != newConfig.Cache {
		if r.Budget != nil {
			if err := r.Budget.UpdateBudget(newConfig.Cache); err != nil {
				r.logger.Error("Failed to update cache budget", "err", err)
			} else {
				r.logger.Info("Cache budget updated successfully",
					"max_entries", newConfig.Cache.MaxEntries,
					"memory_limit_mb", newConfig.Cache.MemoryLimitMB)
			}
		}
	}

	// Update memory pressure handling
	if pressureChanged(oldConfig.Pressure, newConfig.Pressure) {
		if r.Pressure != nil {
			if err := r.Pressure.UpdatePressure(newConfig.Pressure); err != nil {
				r.logger.Error("Failed to update memory pressure settings", "err", err)
			} else {
				r.logger.Info("Memory pressure settings updated successfully")
			}
		}
	}
}

// DecoderChanged reports whether decoder selection must be redone. The
// decoder is chosen once at startup so this only drives a restart notice.
func DecoderChanged(oldConfig, newConfig *Config) bool {
	return oldConfig.Decoder.DisableGoImage != newConfig.Decoder.DisableGoImage ||
		oldConfig.Decoder.DisableTools != newConfig.Decoder.DisableTools ||
		!maps.Equal(oldConfig.Decoder.ToolPaths, newConfig.Decoder.ToolPaths)
}

// PreloadChanged reports whether the preload tunables differ. The pipeline
// reads them once when it is built.
func PreloadChanged(oldConfig, newConfig *Config) bool {
	return oldConfig.Preload != newConfig.Preload
}

func pressureChanged(a, b PressureConfig) bool {
	aEnabled := a.Enabled == nil || *a.Enabled
	bEnabled := b.Enabled == nil || *b.Enabled
	return aEnabled != bEnabled ||
		a.IntervalSeconds != b.IntervalSeconds ||
		a.LowAvailablePercent != b.LowAvailablePercent ||
		a.TrimRatio != b.TrimRatio ||
		a.CooldownSeconds != b.CooldownSeconds
}
