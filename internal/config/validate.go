package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateHTTPURL(cfg.Transcription.Endpoint, "transcription.endpoint"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Transcription.Model) == "" {
		return nil, fmt.Errorf("transcription.model must not be empty")
	}
	if cfg.Transcription.Timeout <= 0 {
		return nil, fmt.Errorf("transcription.timeout must be > 0")
	}
	if err := validateHTTPURL(cfg.Feedback.BaseURL, "feedback.base_url"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Feedback.Model) == "" {
		return nil, fmt.Errorf("feedback.model must not be empty")
	}
	if cfg.Feedback.Timeout <= 0 {
		return nil, fmt.Errorf("feedback.timeout must be > 0")
	}
	if cfg.Audio.MaxDuration < 0 {
		return nil, fmt.Errorf("audio.max_duration must be >= 0")
	}
	if strings.TrimSpace(cfg.Audio.Input) == "" {
		return nil, fmt.Errorf("audio.input must not be empty")
	}
	if _, ok := validLogLevels[strings.ToLower(strings.TrimSpace(cfg.Log.Level))]; !ok {
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	if env := strings.TrimSpace(cfg.Feedback.APIKeyEnv); env != "" && strings.TrimSpace(os.Getenv(env)) == "" {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("feedback.api_key_env %q is not set; using the stored API token", env)})
	}
	if cfg.Telemetry.Enable && strings.TrimSpace(cfg.Telemetry.Path) == "" {
		warnings = append(warnings, Warning{Message: "telemetry.enable is true but telemetry.path is empty; traces go to the state directory"})
	}
	if cfg.Audio.MaxDuration == 0 {
		warnings = append(warnings, Warning{Message: "audio.max_duration is 0; recordings are unbounded"})
	}

	return warnings, nil
}

func validateHTTPURL(raw string, key string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%s must not be empty", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", key)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}
