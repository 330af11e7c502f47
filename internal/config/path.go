package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const appDir = "speechcraft"

// ResolvePath applies CLI/XDG/home fallback rules for config.yaml location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ResolveSettingsPath returns the settings file location, honoring an explicit override.
func ResolveSettingsPath(cfg Config) (string, error) {
	if p := strings.TrimSpace(cfg.Settings.Path); p != "" {
		return expandUserPath(p), nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// ResolveHistoryPath returns the practice history database location.
func ResolveHistoryPath(cfg Config) (string, error) {
	if p := strings.TrimSpace(cfg.History.Path); p != "" {
		return expandUserPath(p), nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// StateDir returns $XDG_STATE_HOME/speechcraft or ~/.local/state/speechcraft.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for state fallback")
	}
	return filepath.Join(home, ".local", "state", appDir), nil
}

func configDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}

	return filepath.Join(home, ".config", appDir), nil
}

func expandUserPath(raw string) string {
	if raw == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return raw
	}
	if !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw, "~/"))
}
