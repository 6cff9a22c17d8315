package config

import (
	"errors"
	"fmt"

	"github.com/meigma/tarball"
)

// Extract holds settings for the extract command.
type Extract struct {
	Dir         string
	Compression string
	Workers     int
}

// NewExtract returns the default extract settings.
func NewExtract() *Extract {
	return &Extract{
		Dir:         ".",
		Compression: "",
		Workers:     0,
	}
}

// Options converts the settings to extraction options. The codec is
// detected from the archive unless set explicitly.
func (e *Extract) Options() ([]tarball.UntarOption, error) {
	opts := []tarball.UntarOption{tarball.UntarWithWorkers(e.Workers)}
	if e.Compression != "" {
		c, err := tarball.ParseCompression(e.Compression)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tarball.UntarWithCompression(c))
	}
	return opts, nil
}

// Validate checks the settings.
func (e *Extract) Validate() error {
	if e.Dir == "" {
		return errors.New("missing directory")
	}
	if e.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", e.Workers)
	}
	_, err := e.Options()
	return err
}
