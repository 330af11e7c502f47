package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rbright/speechcraft/internal/audio"
	"github.com/rbright/speechcraft/internal/config"
	"github.com/rbright/speechcraft/internal/settings"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestRunAllChecksPassAgainstFakeEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/models" {
			require.Equal(t, "Bearer sk-test-token", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Transcription.Endpoint = server.URL + "/v1/audio/transcriptions"
	cfg.Feedback.BaseURL = server.URL + "/v1"

	report := Run(context.Background(), Input{
		Config:      config.Loaded{Path: "/tmp/config.yaml", Config: cfg, Exists: true},
		Settings:    settings.Settings{APIToken: "sk-test-token"},
		HistoryPath: filepath.Join(t.TempDir(), "history.db"),
	}, Options{
		SelectDevice: func(context.Context, string, string) (audio.Selection, error) {
			return audio.Selection{Device: audio.Device{ID: "mic", Description: "Test Mic"}}, nil
		},
		HTTPClient: server.Client(),
	})

	require.True(t, report.OK(), report.String())
	require.Len(t, report.Checks, 7)
	require.Equal(t, "config", report.Checks[0].Name)
	require.Equal(t, "history", report.Checks[6].Name)
	require.Contains(t, report.String(), "Test Mic (mic)")
}

func TestRunReportsMissingTokenAndAudioFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Transcription.Endpoint = server.URL
	cfg.Feedback.BaseURL = server.URL
	cfg.History.Enable = false

	report := Run(context.Background(), Input{Config: config.Loaded{Path: "missing.yaml", Config: cfg}}, Options{
		SelectDevice: func(context.Context, string, string) (audio.Selection, error) {
			return audio.Selection{}, errors.New("no audio input devices found")
		},
		HTTPClient: server.Client(),
	})

	require.False(t, report.OK())
	byName := map[string]Check{}
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	require.False(t, byName["settings.token"].Pass)
	require.Contains(t, byName["settings.token"].Message, "Setup API Token First")
	require.False(t, byName["feedback.credential"].Pass)
	require.False(t, byName["audio.device"].Pass)
	require.True(t, byName["transcription.endpoint"].Pass)
	require.True(t, byName["history"].Pass)
	require.Contains(t, byName["config"].Message, "using defaults")
}

func TestCheckReachableRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	check := checkReachable(context.Background(), server.Client(), "feedback.endpoint", server.URL, "bad")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "token rejected")
}

func TestCheckReachableTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	check := checkReachable(context.Background(), http.DefaultClient, "transcription.endpoint", url, "")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "request failed")
}

func TestCheckFeedbackCredentialPrefersEnv(t *testing.T) {
	t.Setenv("SPEECHCRAFT_DOCTOR_KEY", "sk-env")
	check := checkFeedbackCredential(config.FeedbackConfig{APIKeyEnv: "SPEECHCRAFT_DOCTOR_KEY"}, settings.Settings{})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "$SPEECHCRAFT_DOCTOR_KEY")

	t.Setenv("SPEECHCRAFT_DOCTOR_KEY", "")
	check = checkFeedbackCredential(config.FeedbackConfig{APIKeyEnv: "SPEECHCRAFT_DOCTOR_KEY"}, settings.Settings{APIToken: "sk"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "stored token")
}
