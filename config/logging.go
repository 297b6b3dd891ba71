package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps debug, info, warn and error to slog levels.
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
	default:
		return slog.LevelInfo, errors.Join(ErrInvalidConfig, fmt.Errorf("unknown log.level %q", level))
	}
}

// NewLogHandler builds the slog handler described by cfg, writing to w.
func NewLogHandler(cfg LogConfig, w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	options := &slog.HandlerOptions{Level: level}

	if cfg.Format == FormatText {
		return slog.NewTextHandler(w, options), nil
	}

	return slog.NewJSONHandler(w, options), nil
}
