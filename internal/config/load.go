package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is the effective configuration plus where it and the state files live.
type Loaded struct {
	Path         string
	Exists       bool
	Config       Config
	Warnings     []Warning
	SettingsPath string
	HistoryPath  string
}

// Load reads the config file at the resolved path, falling back to defaults when it is absent.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Config: Default()}
	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	if loaded.SettingsPath, err = ResolveSettingsPath(loaded.Config); err != nil {
		return Loaded{}, err
	}
	if loaded.HistoryPath, err = ResolveHistoryPath(loaded.Config); err != nil {
		return Loaded{}, err
	}
	return loaded, nil
}
