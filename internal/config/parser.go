package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlConfig struct {
	Transcription *yamlTranscription `yaml:"transcription"`
	Feedback      *yamlFeedback      `yaml:"feedback"`
	Audio         *yamlAudio         `yaml:"audio"`
	Settings      *yamlSettings      `yaml:"settings"`
	History       *yamlHistory       `yaml:"history"`
	Indicator     *yamlIndicator     `yaml:"indicator"`
	Telemetry     *yamlTelemetry     `yaml:"telemetry"`
	Log           *yamlLog           `yaml:"log"`
}

type yamlTranscription struct {
	Endpoint *string `yaml:"endpoint"`
	Model    *string `yaml:"model"`
	Timeout  *string `yaml:"timeout"`
}

type yamlFeedback struct {
	BaseURL   *string `yaml:"base_url"`
	Model     *string `yaml:"model"`
	Timeout   *string `yaml:"timeout"`
	APIKeyEnv *string `yaml:"api_key_env"`
}

type yamlAudio struct {
	Input       *string `yaml:"input"`
	Fallback    *string `yaml:"fallback"`
	MaxDuration *string `yaml:"max_duration"`
}

type yamlSettings struct {
	Path *string `yaml:"path"`
}

type yamlHistory struct {
	Enable *bool   `yaml:"enable"`
	Path   *string `yaml:"path"`
}

type yamlIndicator struct {
	SoundEnable *bool `yaml:"sound_enable"`
	Color       *bool `yaml:"color"`
}

type yamlTelemetry struct {
	Enable *bool   `yaml:"enable"`
	Path   *string `yaml:"path"`
}

type yamlLog struct {
	Level *string `yaml:"level"`
}

// Parse overlays YAML content onto base and validates the result.
//
// Unknown keys are rejected so typos surface instead of silently using defaults.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	decoder := yaml.NewDecoder(bytes.NewBufferString(content))
	decoder.KnownFields(true)

	var payload yamlConfig
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			warnings, verr := Validate(base)
			if verr != nil {
				return Config{}, nil, verr
			}
			return base, warnings, nil
		}
		return Config{}, nil, fmt.Errorf("decode yaml: %w", err)
	}

	cfg := base
	if err := applyYAML(&cfg, payload); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func applyYAML(cfg *Config, payload yamlConfig) error {
	if t := payload.Transcription; t != nil {
		setString(&cfg.Transcription.Endpoint, t.Endpoint)
		setString(&cfg.Transcription.Model, t.Model)
		if err := setDuration(&cfg.Transcription.Timeout, t.Timeout, "transcription.timeout"); err != nil {
			return err
		}
	}
	if f := payload.Feedback; f != nil {
		setString(&cfg.Feedback.BaseURL, f.BaseURL)
		setString(&cfg.Feedback.Model, f.Model)
		setString(&cfg.Feedback.APIKeyEnv, f.APIKeyEnv)
		if err := setDuration(&cfg.Feedback.Timeout, f.Timeout, "feedback.timeout"); err != nil {
			return err
		}
	}
	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
		if err := setDuration(&cfg.Audio.MaxDuration, a.MaxDuration, "audio.max_duration"); err != nil {
			return err
		}
	}
	if s := payload.Settings; s != nil {
		setString(&cfg.Settings.Path, s.Path)
	}
	if h := payload.History; h != nil {
		setBool(&cfg.History.Enable, h.Enable)
		setString(&cfg.History.Path, h.Path)
	}
	if i := payload.Indicator; i != nil {
		setBool(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setBool(&cfg.Indicator.Color, i.Color)
	}
	if t := payload.Telemetry; t != nil {
		setBool(&cfg.Telemetry.Enable, t.Enable)
		setString(&cfg.Telemetry.Path, t.Path)
	}
	if l := payload.Log; l != nil {
		setString(&cfg.Log.Level, l.Level)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *string, key string) error {
	if v == nil {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
