package config

import "github.com/meigma/tarball"

// List holds settings for the list command.
type List struct {
	Tree        bool
	Digest      bool
	Compression string
}

// NewList returns the default list settings.
func NewList() *List {
	return &List{}
}

// Options converts the settings to load options.
func (l *List) Options() ([]tarball.LoadOption, error) {
	if l.Compression == "" {
		return nil, nil
	}
	c, err := tarball.ParseCompression(l.Compression)
	if err != nil {
		return nil, err
	}
	return []tarball.LoadOption{tarball.LoadWithCompression(c)}, nil
}

// Validate checks the settings.
func (l *List) Validate() error {
	_, err := l.Options()
	return err
}
