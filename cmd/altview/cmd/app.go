package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/javi11/altview/internal/bitmapcache"
	"github.com/javi11/altview/internal/codec"
	"github.com/javi11/altview/internal/config"
	"github.com/javi11/altview/internal/loader"
	"github.com/javi11/altview/internal/membudget"
	"github.com/javi11/altview/internal/pathutil"
	"github.com/javi11/altview/internal/preload"
	"github.com/javi11/altview/internal/slogutil"
)

// app holds the wired engine components for a command run.
type app struct {
	cfg           *config.Config
	configManager *config.Manager
	logging       *slogutil.Logging
	logger        *slog.Logger

	fs       afero.Fs
	decoder  codec.Capability
	cache    *bitmapcache.Cache
	budgeter *membudget.Budgeter
	loader   *loader.Loader
	pipeline *preload.Pipeline
	pressure *membudget.PressureMonitor
}

// newApp loads configuration, sets up logging and builds the engine. The
// pipeline and the pressure monitor are created but not started.
func newApp(ctx context.Context) (*app, error) {
	// Load configuration first (using default logger for config loading errors)
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		slog.Default().Error("failed to load config", "err", err)
		return nil, err
	}

	fs := afero.NewOsFs()

	if err := pathutil.CheckFileDirectoryWritable(fs, cfg.Log.File, "log"); err != nil {
		slog.Default().Error("invalid log configuration", "err", err)
		return nil, err
	}

	logging := slogutil.Setup(cfg.Log, nil)
	slog.SetDefault(logging.Logger)
	logger := logging.Logger

	logger.DebugContext(ctx, "Logging configured",
		"log_file", cfg.Log.File,
		"log_level", cfg.Log.Level,
		"max_size_mb", cfg.Log.MaxSize,
		"max_age_days", cfg.Log.MaxAge,
		"max_backups", cfg.Log.MaxBackups,
		"compress", cfg.Log.Compress)

	// Create config manager for dynamic configuration updates
	configManager := config.NewManager(cfg, configFile)

	cache, err := bitmapcache.New(bitmapcache.Budget{MaxEntries: cfg.GetMaxEntries(), MaxBytes: bitmapcache.Unbounded})
	if err != nil {
		return nil, fmt.Errorf("failed to create bitmap cache: %w", err)
	}

	budgeter := membudget.NewBudgeter(cache, membudget.WithFs(fs))
	budgeter.Apply(ctx, cfg.Cache)

	decoder := codec.Detect(ctx, codec.Options{
		DisableGoImage: cfg.Decoder.DisableGoImage,
		DisableTools:   cfg.Decoder.DisableTools,
		ToolPaths:      cfg.Decoder.ToolPaths,
	})

	ld := loader.New(fs, decoder, cache, loader.Options{
		OpenAttempts: cfg.GetOpenAttempts(),
		OpenDelay:    cfg.GetOpenDelay(),
	})

	pipeline := preload.New(preload.Config{
		Permits:       cfg.GetPermits(),
		IdleInterval:  cfg.GetIdleInterval(),
		NonVisibleCap: cfg.GetNonVisibleCap(),
	}, ld, cache)

	pressure := membudget.NewPressureMonitor(
		membudget.PressureConfigFrom(cfg),
		membudget.NewSystemProbe(fs),
		cache,
	)

	// Register components for dynamic configuration updates
	registry := config.NewComponentRegistry(logger)
	registry.RegisterLogging(config.NewLoggingUpdater(logging.Leveler, cfg.Log.Level))
	registry.RegisterBudget(budgeter)
	registry.RegisterPressure(pressure)
	configManager.OnConfigChange(registry.ApplyUpdates)

	configManager.OnConfigChange(func(oldConfig, newConfig *config.Config) {
		if config.DecoderChanged(oldConfig, newConfig) {
			logger.Warn("Decoder settings changed, restart to apply")
		}
		if config.PreloadChanged(oldConfig, newConfig) {
			logger.Warn("Preload settings changed, restart to apply",
				"permits", newConfig.Preload.Permits,
				"idle_interval_ms", newConfig.Preload.IdleIntervalMs,
				"non_visible_cap", newConfig.Preload.NonVisibleCap)
		}
	})

	return &app{
		cfg:           cfg,
		configManager: configManager,
		logging:       logging,
		logger:        logger,
		fs:            fs,
		decoder:       decoder,
		cache:         cache,
		budgeter:      budgeter,
		loader:        ld,
		pipeline:      pipeline,
		pressure:      pressure,
	}, nil
}

// close stops background work and releases resources.
func (a *app) close(ctx context.Context) {
	if err := a.pipeline.Stop(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to stop preload pipeline", "error", err)
	}

	if err := a.pressure.Stop(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to stop memory pressure monitor", "error", err)
	}

	if err := a.cache.Close(); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close bitmap cache", "error", err)
	}

	if err := a.logging.Close(); err != nil {
		slog.Default().Error("Failed to close log file", "error", err)
	}
}
