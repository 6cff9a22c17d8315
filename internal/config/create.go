package config

import (
	"errors"
	"fmt"

	"github.com/meigma/tarball"
)

const maxLevel = 22

// Create holds settings for the create command.
type Create struct {
	Output       string
	Compression  string
	Level        int
	NoOwnerNames bool
}

// NewCreate returns the default create settings.
func NewCreate() *Create {
	return &Create{
		Output:       "",
		Compression:  "",
		Level:        0,
		NoOwnerNames: false,
	}
}

// Codec returns the configured codec. Without an explicit compression it
// is inferred from the output file name.
func (c *Create) Codec() (tarball.Compression, error) {
	if c.Compression == "" {
		return tarball.CompressionFromPath(c.Output), nil
	}
	return tarball.ParseCompression(c.Compression)
}

// Validate checks the settings.
func (c *Create) Validate() error {
	if c.Output == "" {
		return errors.New("missing output")
	}
	if c.Level < 0 || c.Level > maxLevel {
		return fmt.Errorf("invalid level: %d", c.Level)
	}
	_, err := c.Codec()
	return err
}
