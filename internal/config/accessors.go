package config

import "time"

// Accessor methods with default fallbacks. They convert the file friendly
// integer units into the types the components take.

// GetMaxEntries returns the cache entry bound with a default fallback.
func (c *Config) GetMaxEntries() int {
	if c.Cache.MaxEntries <= 0 {
		return 200 // Default: 200 entries
	}
	return c.Cache.MaxEntries
}

// GetPermits returns the preload decode concurrency with a default fallback.
func (c *Config) GetPermits() int {
	if c.Preload.Permits <= 0 {
		return 3 // Default: 3 concurrent decodes
	}
	return c.Preload.Permits
}

// GetIdleInterval returns the preload idle re-check interval with a default fallback.
func (c *Config) GetIdleInterval() time.Duration {
	if c.Preload.IdleIntervalMs <= 0 {
		return 50 * time.Millisecond // Default: 50ms
	}
	return time.Duration(c.Preload.IdleIntervalMs) * time.Millisecond
}

// GetNonVisibleCap returns how many non visible requests survive a visible
// batch. Zero keeps none.
func (c *Config) GetNonVisibleCap() int {
	if c.Preload.NonVisibleCap < 0 {
		return 10 // Default: 10 requests
	}
	return c.Preload.NonVisibleCap
}

// GetThumbnailSize returns the thumbnail long side bound with a default fallback.
func (c *Config) GetThumbnailSize() int {
	if c.Thumbnail.MaxSize <= 0 {
		return 256 // Default: 256px
	}
	return c.Thumbnail.MaxSize
}

// GetOpenAttempts returns the file open attempts with a default fallback.
func (c *Config) GetOpenAttempts() uint {
	if c.Decoder.OpenAttempts <= 0 {
		return 3 // Default: 3 attempts
	}
	return uint(c.Decoder.OpenAttempts)
}

// GetOpenDelay returns the initial file open backoff with a default fallback.
func (c *Config) GetOpenDelay() time.Duration {
	if c.Decoder.OpenDelayMs <= 0 {
		return 20 * time.Millisecond // Default: 20ms
	}
	return time.Duration(c.Decoder.OpenDelayMs) * time.Millisecond
}

// GetPressureEnabled returns whether the memory pressure monitor runs.
func (c *Config) GetPressureEnabled() bool {
	if c.Pressure.Enabled == nil {
		return true // Default: enabled
	}
	return *c.Pressure.Enabled
}

// GetPressureInterval returns the memory poll interval with a default fallback.
func (c *Config) GetPressureInterval() time.Duration {
	if c.Pressure.IntervalSeconds <= 0 {
		return 5 * time.Second // Default: 5 seconds
	}
	return time.Duration(c.Pressure.IntervalSeconds) * time.Second
}

// GetPressureCooldown returns the minimum time between trims while memory stays low.
func (c *Config) GetPressureCooldown() time.Duration {
	if c.Pressure.CooldownSeconds < 0 {
		return 30 * time.Second // Default: 30 seconds
	}
	return time.Duration(c.Pressure.CooldownSeconds) * time.Second
}

// GetLowAvailablePercent returns the available memory percentage below which
// the cache is trimmed.
func (c *Config) GetLowAvailablePercent() float64 {
	if c.Pressure.LowAvailablePercent <= 0 || c.Pressure.LowAvailablePercent >= 100 {
		return 10 // Default: 10%
	}
	return c.Pressure.LowAvailablePercent
}

// GetTrimRatio returns the retained fraction on a pressure trim, clamped to
// [MinTrimRatio, MaxTrimRatio].
func (c *Config) GetTrimRatio() float64 {
	switch {
	case c.Pressure.TrimRatio == 0:
		return MinTrimRatio
	case c.Pressure.TrimRatio < MinTrimRatio:
		return MinTrimRatio
	case c.Pressure.TrimRatio > MaxTrimRatio:
		return MaxTrimRatio
	}
	return c.Pressure.TrimRatio
}
