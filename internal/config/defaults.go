package config

import "time"

const (
	DefaultTranscriptionEndpoint = "https://api.siliconflow.cn/v1/audio/transcriptions"
	DefaultTranscriptionModel    = "TeleAI/TeleSpeechASR"
	DefaultFeedbackBaseURL       = "https://api.siliconflow.cn/v1"
	DefaultFeedbackModel         = "Qwen/Qwen2.5-7B-Instruct"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Transcription: TranscriptionConfig{
			Endpoint: DefaultTranscriptionEndpoint,
			Model:    DefaultTranscriptionModel,
			Timeout:  60 * time.Second,
		},
		Feedback: FeedbackConfig{
			BaseURL: DefaultFeedbackBaseURL,
			Model:   DefaultFeedbackModel,
			Timeout: 90 * time.Second,
		},
		Audio: AudioConfig{
			Input:       "default",
			Fallback:    "default",
			MaxDuration: 5 * time.Minute,
		},
		History:   HistoryConfig{Enable: true},
		Indicator: IndicatorConfig{SoundEnable: true, Color: true},
		Log:       LogConfig{Level: "info"},
	}
}
