package slogutil

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/javi11/altview/internal/config"
)

// Logging is the result of Setup.
type Logging struct {
	Logger  *slog.Logger
	Leveler *DynamicLeveler
	closer  io.Closer
}

// Close releases the rotating log file, if any.
func (l *Logging) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Setup configures a text logger writing to console, and to a rotating file
// when logConfig.File is set. The level can be changed later through the
// returned leveler. An empty configured level falls back to LOG_LEVEL.
func Setup(logConfig config.LogConfig, console io.Writer) *Logging {
	if console == nil {
		console = os.Stderr
	}

	out := console
	var closer io.Closer

	// If log file is configured, set up dual logging (console + file with rotation)
	if logConfig.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   logConfig.File,
			MaxSize:    logConfig.MaxSize,    // MB
			MaxBackups: logConfig.MaxBackups, // number of old files
			MaxAge:     logConfig.MaxAge,     // days
			Compress:   logConfig.Compress,   // compress old files
		}
		out = io.MultiWriter(console, fileWriter)
		closer = fileWriter
	}

	level := logConfig.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	parsed, err := config.ParseLevel(level)
	if err != nil {
		parsed = slog.LevelInfo
	}

	leveler := NewDynamicLeveler(parsed)
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: leveler,
	})

	return &Logging{
		Logger:  slog.New(WrapHandler(handler)),
		Leveler: leveler,
		closer:  closer,
	}
}
