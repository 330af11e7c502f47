// Package settings persists the user's API token between runs.
package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Settings is the user-editable state saved across runs.
type Settings struct {
	APIToken string `json:"siliconFlowToken"`
}

// HasToken reports whether a non-blank token is stored.
func (s Settings) HasToken() bool {
	return strings.TrimSpace(s.APIToken) != ""
}

// MaskedToken renders the token for display without exposing it.
func (s Settings) MaskedToken() string {
	token := strings.TrimSpace(s.APIToken)
	switch {
	case token == "":
		return "(not set)"
	case len(token) <= 8:
		return strings.Repeat("*", len(token))
	default:
		return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
	}
}

// Store reads and writes Settings at one file path.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore builds a store rooted at path. logger may be nil.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved settings, or the zero value when the file is missing or unreadable.
func (s *Store) Load() Settings {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logWarn("read settings", err)
		}
		return Settings{}
	}

	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		s.logWarn("decode settings", err)
		return Settings{}
	}
	return out
}

// Save persists settings. Failures are logged and reported as false, never returned.
func (s *Store) Save(value Settings) bool {
	if err := s.write(value); err != nil {
		s.logWarn("save settings", err)
		return false
	}
	return true
}

func (s *Store) write(value Settings) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp settings: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp settings: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

func (s *Store) logWarn(msg string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, "path", s.path, "error", err.Error())
}
