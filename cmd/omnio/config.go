package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the TOML configuration file. Flags override the fields they
// correspond to; log_format has no flag and is set only here.
type Config struct {
	Store     string `toml:"store"`
	Bucket    string `toml:"bucket"`
	PartSize  int64  `toml:"part_size"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // auto | text | json
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Bucket:    "main",
		LogLevel:  "info",
		LogFormat: "auto",
	}
}

// defaultConfigPath resolves ~/.config/omnio/config.toml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, ".config", "omnio", "config.toml"), nil
}

// LoadConfig reads the TOML file at path (or the default location when
// path is empty). A missing default file is not an error; a missing
// explicit file is.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""

	if !explicit {
		var err error
		if path, err = defaultConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := DefaultConfig()

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}

		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	return cfg, nil
}
