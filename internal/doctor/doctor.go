// Package doctor runs readiness diagnostics for config, credentials, audio, and remote endpoints.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/speechcraft/internal/audio"
	"github.com/rbright/speechcraft/internal/config"
	"github.com/rbright/speechcraft/internal/history"
	"github.com/rbright/speechcraft/internal/settings"
	"github.com/rbright/speechcraft/internal/version"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Input is everything a doctor run inspects.
type Input struct {
	Config      config.Loaded
	Settings    settings.Settings
	HistoryPath string
}

// Options overrides probes for tests. Zero values use live probes.
type Options struct {
	SelectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	HTTPClient   *http.Client
}

// Run executes all checks concurrently and returns them in a stable order.
func Run(ctx context.Context, in Input, opts Options) Report {
	if opts.SelectDevice == nil {
		opts.SelectDevice = audio.SelectDevice
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 3 * time.Second}
	}
	cfg := in.Config.Config

	probes := []func(context.Context) Check{
		func(context.Context) Check { return checkConfig(in.Config) },
		func(context.Context) Check { return checkToken(in.Settings) },
		func(context.Context) Check { return checkFeedbackCredential(cfg.Feedback, in.Settings) },
		func(ctx context.Context) Check { return checkAudioSelection(ctx, cfg.Audio, opts.SelectDevice) },
		func(ctx context.Context) Check {
			return checkReachable(ctx, opts.HTTPClient, "transcription.endpoint", cfg.Transcription.Endpoint, "")
		},
		func(ctx context.Context) Check {
			return checkReachable(ctx, opts.HTTPClient, "feedback.endpoint", strings.TrimRight(cfg.Feedback.BaseURL, "/")+"/models", in.Settings.APIToken)
		},
		func(ctx context.Context) Check { return checkHistory(ctx, cfg.History, in.HistoryPath) },
	}

	checks := make([]Check, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, probe := range probes {
		g.Go(func() error {
			checks[i] = probe(gctx)
			return nil
		})
	}
	_ = g.Wait()

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(" (%d warning(s))", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func checkToken(s settings.Settings) Check {
	if !s.HasToken() {
		return Check{Name: "settings.token", Pass: false, Message: "Setup API Token First: run `speechcraft settings token`"}
	}
	return Check{Name: "settings.token", Pass: true, Message: "stored " + s.MaskedToken()}
}

func checkFeedbackCredential(cfg config.FeedbackConfig, s settings.Settings) Check {
	env := strings.TrimSpace(cfg.APIKeyEnv)
	if env != "" {
		if strings.TrimSpace(os.Getenv(env)) != "" {
			return Check{Name: "feedback.credential", Pass: true, Message: fmt.Sprintf("using $%s", env)}
		}
		if s.HasToken() {
			return Check{Name: "feedback.credential", Pass: true, Message: fmt.Sprintf("$%s is empty; using the stored token", env)}
		}
		return Check{Name: "feedback.credential", Pass: false, Message: fmt.Sprintf("$%s is empty and no token is stored", env)}
	}
	if s.HasToken() {
		return Check{Name: "feedback.credential", Pass: true, Message: "using the stored token"}
	}
	return Check{Name: "feedback.credential", Pass: false, Message: "no token is stored"}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.AudioConfig, selectDevice func(context.Context, string, string) (audio.Selection, error)) Check {
	selection, err := selectDevice(ctx, cfg.Input, cfg.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %s", audio.Describe(selection.Device))
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkReachable treats any HTTP response except 401/403 as reachable.
func checkReachable(ctx context.Context, client *http.Client, name string, url string, token string) Check {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if token == "" {
			return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d without token)", url, resp.StatusCode)}
		}
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("token rejected by %s (HTTP %d)", url, resp.StatusCode)}
	case resp.StatusCode >= 500:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	default:
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", url, resp.StatusCode)}
	}
}

func checkHistory(ctx context.Context, cfg config.HistoryConfig, path string) Check {
	if !cfg.Enable {
		return Check{Name: "history", Pass: true, Message: "disabled"}
	}
	store, err := history.Open(ctx, path, nil)
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	defer store.Close()

	attempts, err := store.List(ctx, 0)
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	return Check{Name: "history", Pass: true, Message: fmt.Sprintf("%d attempt(s) at %q", len(attempts), path)}
}
