package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Preload   PreloadConfig   `yaml:"preload" mapstructure:"preload"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail" mapstructure:"thumbnail"`
	Decoder   DecoderConfig   `yaml:"decoder" mapstructure:"decoder"`
	Pressure  PressureConfig  `yaml:"pressure" mapstructure:"pressure"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig represents bitmap cache configuration
type CacheConfig struct {
	MaxEntries    int `yaml:"max_entries" mapstructure:"max_entries"`         // Upper bound on cached bitmaps
	MemoryLimitMB int `yaml:"memory_limit_mb" mapstructure:"memory_limit_mb"` // Overrides the resolved memory ceiling (0 = resolve)
}

// PreloadConfig represents preload pipeline configuration
type PreloadConfig struct {
	Permits        int `yaml:"permits" mapstructure:"permits"`                   // Concurrent decodes
	IdleIntervalMs int `yaml:"idle_interval_ms" mapstructure:"idle_interval_ms"` // Empty queue re-check interval
	NonVisibleCap  int `yaml:"non_visible_cap" mapstructure:"non_visible_cap"`   // Non visible requests kept on a visible batch
}

// ThumbnailConfig represents thumbnail generation configuration
type ThumbnailConfig struct {
	MaxSize int `yaml:"max_size" mapstructure:"max_size"` // Long side bound in pixels
}

// DecoderConfig represents decoder selection and file access configuration
type DecoderConfig struct {
	DisableGoImage bool              `yaml:"disable_goimage" mapstructure:"disable_goimage"`
	DisableTools   bool              `yaml:"disable_tools" mapstructure:"disable_tools"`
	ToolPaths      map[string]string `yaml:"tool_paths" mapstructure:"tool_paths"` // Binary name -> path, skips PATH lookup
	OpenAttempts   int               `yaml:"open_attempts" mapstructure:"open_attempts"`
	OpenDelayMs    int               `yaml:"open_delay_ms" mapstructure:"open_delay_ms"`
}

// PressureConfig represents low memory handling configuration
type PressureConfig struct {
	Enabled             *bool   `yaml:"enabled" mapstructure:"enabled"`
	IntervalSeconds     int     `yaml:"interval_seconds" mapstructure:"interval_seconds"`
	LowAvailablePercent float64 `yaml:"low_available_percent" mapstructure:"low_available_percent"`
	TrimRatio           float64 `yaml:"trim_ratio" mapstructure:"trim_ratio"`
	CooldownSeconds     int     `yaml:"cooldown_seconds" mapstructure:"cooldown_seconds"`
}

// LogConfig represents logging configuration with rotation support
type LogConfig struct {
	File       string `yaml:"file" mapstructure:"file"`               // Log file path (empty = console only)
	Level      string `yaml:"level" mapstructure:"level"`             // Log level (debug, info, warn, error)
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // Max size in MB before rotation
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // Max age in days to keep files
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // Max number of old files to keep
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // Compress old log files
}

// Trim ratio bounds for memory pressure handling.
const (
	MinTrimRatio = 0.5
	MaxTrimRatio = 0.8
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// DeepCopy returns a deep copy of the configuration
func (c *Config) DeepCopy() *Config {
	if c == nil {
		return nil
	}

	copyCfg := *c

	if c.Pressure.Enabled != nil {
		v := *c.Pressure.Enabled
		copyCfg.Pressure.Enabled = &v
	}

	if c.Decoder.ToolPaths != nil {
		copyCfg.Decoder.ToolPaths = make(map[string]string, len(c.Decoder.ToolPaths))
		for k, v := range c.Decoder.ToolPaths {
			copyCfg.Decoder.ToolPaths[k] = v
		}
	}

	return &copyCfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache max_entries must be greater than 0")
	}

	if c.Cache.MemoryLimitMB < 0 {
		return fmt.Errorf("cache memory_limit_mb must be non-negative")
	}

	if c.Preload.Permits <= 0 {
		return fmt.Errorf("preload permits must be greater than 0")
	}

	if c.Preload.IdleIntervalMs <= 0 {
		return fmt.Errorf("preload idle_interval_ms must be greater than 0")
	}

	if c.Preload.NonVisibleCap < 0 {
		return fmt.Errorf("preload non_visible_cap must not be negative")
	}

	if c.Thumbnail.MaxSize <= 0 {
		return fmt.Errorf("thumbnail max_size must be greater than 0")
	}

	if c.Decoder.OpenAttempts <= 0 {
		return fmt.Errorf("decoder open_attempts must be greater than 0")
	}

	if c.Decoder.OpenDelayMs < 0 {
		return fmt.Errorf("decoder open_delay_ms must be non-negative")
	}

	if c.Pressure.Enabled != nil && *c.Pressure.Enabled {
		if c.Pressure.IntervalSeconds <= 0 {
			return fmt.Errorf("pressure interval_seconds must be greater than 0")
		}
		if c.Pressure.LowAvailablePercent <= 0 || c.Pressure.LowAvailablePercent >= 100 {
			return fmt.Errorf("pressure low_available_percent must be between 0 and 100")
		}
		if c.Pressure.CooldownSeconds < 0 {
			return fmt.Errorf("pressure cooldown_seconds must be non-negative")
		}
	}

	if c.Pressure.TrimRatio < MinTrimRatio || c.Pressure.TrimRatio > MaxTrimRatio {
		return fmt.Errorf("pressure trim_ratio must be between %.1f and %.1f", MinTrimRatio, MaxTrimRatio)
	}

	if c.Log.Level != "" && !slices.Contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of: %s", strings.Join(validLogLevels, ", "))
	}

	if c.Log.MaxSize < 0 {
		return fmt.Errorf("log.max_size must be non-negative")
	}

	if c.Log.MaxAge < 0 {
		return fmt.Errorf("log.max_age must be non-negative")
	}

	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("log.max_backups must be non-negative")
	}

	return nil
}

// ChangeCallback represents a function called when configuration changes
type ChangeCallback func(oldConfig, newConfig *Config)

// ConfigGetter represents a function that returns the current configuration
type ConfigGetter func() *Config

// Manager manages configuration state and persistence
type Manager struct {
	current    *Config
	configFile string
	mutex      sync.RWMutex
	callbacks  []ChangeCallback
}

// NewManager creates a new configuration manager
func NewManager(config *Config, configFile string) *Manager {
	return &Manager{
		current:    config,
		configFile: configFile,
	}
}

// GetConfig returns the current configuration (thread-safe)
func (m *Manager) GetConfig() *Config {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.current
}

// GetConfigGetter returns a function that provides the current configuration
func (m *Manager) GetConfigGetter() ConfigGetter {
	return m.GetConfig
}

// UpdateConfig validates and installs a new configuration, then notifies
// the registered callbacks outside the lock.
func (m *Manager) UpdateConfig(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.mutex.Lock()
	// Take a deep copy of the old config so callbacks get an immutable snapshot
	var oldConfig *Config
	if m.current != nil {
		oldConfig = m.current.DeepCopy()
	}
	m.current = config
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mutex.Unlock()

	for _, callback := range callbacks {
		callback(oldConfig, config)
	}
	return nil
}

// OnConfigChange registers a callback to be called when configuration changes
func (m *Manager) OnConfigChange(callback ChangeCallback) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ReloadConfig reloads configuration from file and notifies callbacks
func (m *Manager) ReloadConfig() error {
	m.mutex.RLock()
	configFile := m.configFile
	m.mutex.RUnlock()

	if configFile == "" {
		return fmt.Errorf("no config file to reload")
	}

	config, err := LoadConfig(configFile)
	if err != nil {
		return err
	}

	return m.UpdateConfig(config)
}

// SaveConfig saves the current configuration to file
func (m *Manager) SaveConfig() error {
	m.mutex.RLock()
	config := m.current
	m.mutex.RUnlock()

	if config == nil {
		return fmt.Errorf("no configuration to save")
	}

	return SaveToFile(config, m.configFile)
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	pressureEnabled := true

	return &Config{
		Cache: CacheConfig{
			MaxEntries:    200, // Thumbnails of a few screens plus some full images
			MemoryLimitMB: 0,   // Resolve from the host
		},
		Preload: PreloadConfig{
			Permits:        3,
			IdleIntervalMs: 50,
			NonVisibleCap:  10,
		},
		Thumbnail: ThumbnailConfig{
			MaxSize: 256,
		},
		Decoder: DecoderConfig{
			DisableGoImage: false,
			DisableTools:   false,
			ToolPaths:      map[string]string{},
			OpenAttempts:   3,
			OpenDelayMs:    20,
		},
		Pressure: PressureConfig{
			Enabled:             &pressureEnabled,
			IntervalSeconds:     5,
			LowAvailablePercent: 10,
			TrimRatio:           0.5,
			CooldownSeconds:     30,
		},
		Log: LogConfig{
			File:       "",     // Empty = console only
			Level:      "info", // Default log level
			MaxSize:    100,    // 100MB max size
			MaxAge:     30,     // Keep for 30 days
			MaxBackups: 10,     // Keep 10 old files
			Compress:   true,   // Compress old files
		},
	}
}

// SaveToFile saves a configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("no config file path provided")
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads configuration from file and merges with defaults.
// Values can be overridden with ALTVIEW_ prefixed environment variables,
// e.g. ALTVIEW_CACHE_MAX_ENTRIES. With no configFile and no config.yaml in
// the working directory or ~/.config/altview the defaults are used.
func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("ALTVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, config)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "altview"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindDefaults registers every scalar key so environment overrides apply
// even when the key is absent from the file.
func bindDefaults(v *viper.Viper, config *Config) {
	v.SetDefault("cache.max_entries", config.Cache.MaxEntries)
	v.SetDefault("cache.memory_limit_mb", config.Cache.MemoryLimitMB)
	v.SetDefault("preload.permits", config.Preload.Permits)
	v.SetDefault("preload.idle_interval_ms", config.Preload.IdleIntervalMs)
	v.SetDefault("preload.non_visible_cap", config.Preload.NonVisibleCap)
	v.SetDefault("thumbnail.max_size", config.Thumbnail.MaxSize)
	v.SetDefault("decoder.disable_goimage", config.Decoder.DisableGoImage)
	v.SetDefault("decoder.disable_tools", config.Decoder.DisableTools)
	v.SetDefault("decoder.open_attempts", config.Decoder.OpenAttempts)
	v.SetDefault("decoder.open_delay_ms", config.Decoder.OpenDelayMs)
	v.SetDefault("pressure.enabled", *config.Pressure.Enabled)
	v.SetDefault("pressure.interval_seconds", config.Pressure.IntervalSeconds)
	v.SetDefault("pressure.low_available_percent", config.Pressure.LowAvailablePercent)
	v.SetDefault("pressure.trim_ratio", config.Pressure.TrimRatio)
	v.SetDefault("pressure.cooldown_seconds", config.Pressure.CooldownSeconds)
	v.SetDefault("log.file", config.Log.File)
	v.SetDefault("log.level", config.Log.Level)
	v.SetDefault("log.max_size", config.Log.MaxSize)
	v.SetDefault("log.max_age", config.Log.MaxAge)
	v.SetDefault("log.max_backups", config.Log.MaxBackups)
	v.SetDefault("log.compress", config.Log.Compress)
}
