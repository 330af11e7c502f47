// Package config resolves, parses, validates, and defaults speechcraft configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by speechcraft.
type Config struct {
	Transcription TranscriptionConfig
	Feedback      FeedbackConfig
	Audio         AudioConfig
	Settings      SettingsConfig
	History       HistoryConfig
	Indicator     IndicatorConfig
	Telemetry     TelemetryConfig
	Log           LogConfig
}

// TranscriptionConfig points at the speech-to-text endpoint.
type TranscriptionConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// FeedbackConfig points at the OpenAI-compatible chat completion endpoint.
//
// APIKeyEnv names an environment variable holding a dedicated feedback key;
// when it is unset or empty the stored settings token is used.
type FeedbackConfig struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	APIKeyEnv string
}

// AudioConfig controls input-source selection and the recording cap.
type AudioConfig struct {
	Input       string
	Fallback    string
	MaxDuration time.Duration
}

// SettingsConfig overrides where the user settings file lives.
type SettingsConfig struct {
	Path string
}

// HistoryConfig controls the practice history store.
type HistoryConfig struct {
	Enable bool
	Path   string
}

// IndicatorConfig controls terminal output and audio cue behavior.
type IndicatorConfig struct {
	SoundEnable bool
	Color       bool
}

// TelemetryConfig controls pipeline trace export.
type TelemetryConfig struct {
	Enable bool
	Path   string
}

// LogConfig controls the runtime log level.
type LogConfig struct {
	Level string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
