package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is read from ~/.config/devchat/config.toml:
//
//	server   = "http://localhost:8080"
//	email    = "ada@example.com"
//	password = "secret1"
type Config struct {
	Server   string `toml:"server"`
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

const defaultServer = "http://localhost:8080"

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "devchat", "config.toml")
}

// loadConfig reads path. A missing file is not an error; the defaults
// apply and the credentials are asked for interactively.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Server: defaultServer}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown keys %v", path, undecoded)
	}

	cfg.Server = strings.TrimSuffix(strings.TrimSpace(cfg.Server), "/")
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	if !strings.HasPrefix(cfg.Server, "http://") && !strings.HasPrefix(cfg.Server, "https://") {
		return nil, fmt.Errorf("%s: server must be an http:// or https:// URL", path)
	}
	return cfg, nil
}
