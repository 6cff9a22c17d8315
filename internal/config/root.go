// Package config holds the settings of the tarball command line.
package config

import (
	"fmt"
	"log/slog"
)

const defaultLogLevel = "warn"

// Root holds settings shared by every command.
type Root struct {
	LogLevel   string
	NoProgress bool
}

// NewRoot returns the default root settings.
func NewRoot() *Root {
	return &Root{
		LogLevel:   defaultLogLevel,
		NoProgress: false,
	}
}

// Level parses LogLevel.
func (r *Root) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(r.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", r.LogLevel, err)
	}
	return level, nil
}

// Validate checks the settings.
func (r *Root) Validate() error {
	_, err := r.Level()
	return err
}
