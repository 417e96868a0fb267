package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LevelSetter is implemented by dynamic slog levelers.
type LevelSetter interface {
	SetLevel(level slog.Level)
}

// DefaultLoggingUpdater manages dynamic logging level updates
type DefaultLoggingUpdater struct {
	leveler LevelSetter
	current string
	mutex   sync.RWMutex
}

// NewLoggingUpdater creates a new logging updater
func NewLoggingUpdater(leveler LevelSetter, initialLevel string) *DefaultLoggingUpdater {
	return &DefaultLoggingUpdater{
		leveler: leveler,
		current: strings.ToLower(initialLevel),
	}
}

// UpdateLevel switches the leveler to the named level
func (u *DefaultLoggingUpdater) UpdateLevel(level string) error {
	level = strings.ToLower(level)

	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.current == level {
		return nil // No change needed
	}

	parsed, err := ParseLevel(level)
	if err != nil {
		return err
	}

	u.current = level
	if u.leveler != nil {
		u.leveler.SetLevel(parsed)
	}

	return nil
}

// GetLevel returns the current level name
func (u *DefaultLoggingUpdater) GetLevel() string {
	u.mutex.RLock()
	defer u.mutex.RUnlock()
	return u.current
}

// ParseLevel converts a config level name to a slog level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
}
