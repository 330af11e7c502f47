// Package app wires configuration, capture, remote clients, and rendering into CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rbright/speechcraft/internal/apperr"
	"github.com/rbright/speechcraft/internal/audio"
	"github.com/rbright/speechcraft/internal/cli"
	"github.com/rbright/speechcraft/internal/config"
	"github.com/rbright/speechcraft/internal/doctor"
	"github.com/rbright/speechcraft/internal/feedback"
	"github.com/rbright/speechcraft/internal/history"
	"github.com/rbright/speechcraft/internal/indicator"
	"github.com/rbright/speechcraft/internal/logging"
	"github.com/rbright/speechcraft/internal/prompt"
	"github.com/rbright/speechcraft/internal/recording"
	"github.com/rbright/speechcraft/internal/scenario"
	"github.com/rbright/speechcraft/internal/session"
	"github.com/rbright/speechcraft/internal/settings"
	"github.com/rbright/speechcraft/internal/siliconflow"
	"github.com/rbright/speechcraft/internal/telemetry"
)

// TokenEnv overrides the stored API token when set.
const TokenEnv = "SPEECHCRAFT_TOKEN"

// Runner executes commands against injectable process I/O and collaborators.
//
// Nil collaborators select the live implementations.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	Microphone    recording.Microphone
	NewTicker     recording.TickerFactory
	HTTPClient    *http.Client
	ListDevices   func(context.Context) ([]audio.Device, error)
	DoctorOptions doctor.Options
}

// Execute runs one CLI invocation against process I/O and returns its exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	r := &Runner{Stdin: stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses args, dispatches to the matching command, and maps the result to an exit code.
func (r *Runner) Execute(ctx context.Context, args []string) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(r.Stderr, "warning: load .env: %v\n", err)
	}

	root := cli.NewRootCommand(r)
	root.SetArgs(args)
	root.SetIn(r.Stdin)
	root.SetOut(r.Stdout)
	root.SetErr(r.Stderr)

	err := root.ExecuteContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, cli.ErrReported):
	case cli.IsUsage(err):
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, root.UsageString())
	default:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
	}
	return cli.ExitCode(err)
}

// env is the per-command runtime resolved from flags, config, and state files.
type env struct {
	loaded   config.Loaded
	logger   *slog.Logger
	logPath  string
	settings *settings.Store
	close    func()
}

func (r *Runner) bootstrap(g cli.Globals) (*env, error) {
	loaded, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	e := &env{loaded: loaded, logger: r.Logger, close: func() {}}
	if e.logger == nil {
		logRuntime, err := logging.New(loaded.Config.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("setup logging: %w", err)
		}
		e.logger = logRuntime.Logger
		e.logPath = logRuntime.Path
		e.close = func() { _ = logRuntime.Close() }
	}

	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		if loaded.Exists {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		e.logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	e.settings = settings.NewStore(loaded.SettingsPath, e.logger)

	e.logger.Info("command start", "config", loaded.Path, "settings", loaded.SettingsPath, "log", e.logPath)
	return e, nil
}

// currentSettings loads stored settings with the environment token override applied.
func (e *env) currentSettings() settings.Settings {
	s := e.settings.Load()
	if token := strings.TrimSpace(os.Getenv(TokenEnv)); token != "" {
		s.APIToken = token
	}
	return s
}

func (e *env) transcriptionToken() string {
	return e.currentSettings().APIToken
}

// feedbackToken prefers the configured key env var, then the transcription token.
func (e *env) feedbackToken() string {
	if name := strings.TrimSpace(e.loaded.Config.Feedback.APIKeyEnv); name != "" {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v
		}
	}
	return e.transcriptionToken()
}

func (r *Runner) color(cfg config.Config) bool {
	return cfg.Indicator.Color && prompt.IsTerminal(r.Stdout)
}

// Scenarios lists the catalog.
func (r *Runner) Scenarios(_ context.Context, g cli.Globals) error {
	e, err := r.bootstrap(g)
	if err != nil {
		return err
	}
	defer e.close()

	indicator.NewReport(r.Stdout, r.color(e.loaded.Config)).Scenarios(scenario.Catalog(), e.currentSettings().HasToken())
	return nil
}

// SettingsShow prints settings with the token masked.
func (r *Runner) SettingsShow(_ context.Context, g cli.Globals) error {
	e, err := r.bootstrap(g)
	if err != nil {
		return err
	}
	defer e.close()

	s := e.currentSettings()
	source := "settings file"
	if strings.TrimSpace(os.Getenv(TokenEnv)) != "" {
		source = "$" + TokenEnv
	}
	fmt.Fprintf(r.Stdout, "config:   %s\n", e.loaded.Path)
	fmt.Fprintf(r.Stdout, "settings: %s\n", e.settings.Path())
	fmt.Fprintf(r.Stdout, "token:    %s", s.MaskedToken())
	if s.HasToken() {
		fmt.Fprintf(r.Stdout, " (from %s)", source)
	}
	fmt.Fprintln(r.Stdout)
	return nil
}

// SettingsToken stores a new API token, prompting when value is empty.
func (r *Runner) SettingsToken(_ context.Context, g cli.Globals, value string) error {
	e, err := r.bootstrap(g)
	if err != nil {
		return err
	}
	defer e.close()

	value = strings.TrimSpace(value)
	if value == "" {
		value, err = prompt.New(r.Stdin, r.Stdout).Token()
		if errors.Is(err, prompt.ErrNotInteractive) {
			return &cli.UsageError{Err: errors.New("token value required when stdin is not a terminal")}
		}
		if err != nil {
			return err
		}
	}

	s := e.settings.Load()
	s.APIToken = value
	if !e.settings.Save(s) {
		return fmt.Errorf("could not save settings to %q", e.settings.Path())
	}
	fmt.Fprintf(r.Stdout, "Token saved to %s (%s)\n", e.settings.Path(), s.MaskedToken())
	return nil
}

// History lists recent attempts.
func (r *Runner) History(ctx context.Context, g cli.Globals, limit int) error {
	e, err := r.bootstrap(g)
	if err != nil {
		return err
	}
	defer e.close()

	cfg := e.loaded.Config
	if !cfg.History.Enable {
		fmt.Fprintln(r.Stdout, "history is disabled (history.enable: false)")
		return nil
	}
	store, err := history.Open(ctx, e.loaded.HistoryPath, e.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	attempts, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	indicator.NewReport(r.Stdout, r.color(cfg)).History(attempts)
	return nil
}

// Devices lists Pulse input sources.
func (r *Runner) Devices(ctx context.Context, g cli.Globals) error {
	e, err := r.bootstrap(g)
	if err != nil {
		return err
	}
	defer e.close()

	list := r.ListDevices
	if list == nil {
		list = audio.ListDevices
	}
	devices, err := list(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return cli.ErrReported
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}
	return nil
}

// Doctor runs readiness checks and fails when any check fails.
func (r *Runner) Doctor(ctx context.Context, g cli.Globals) error {
	e, err := r.bootstrap(g)
	if err != nil {
		return err
	}
	defer e.close()

	opts := r.DoctorOptions
	if opts.HTTPClient == nil {
		opts.HTTPClient = r.HTTPClient
	}
	report := doctor.Run(ctx, doctor.Input{
		Config:      e.loaded,
		Settings:    e.currentSettings(),
		HistoryPath: e.loaded.HistoryPath,
	}, opts)
	fmt.Fprintln(r.Stdout, report.String())
	if !report.OK() {
		return cli.ErrReported
	}
	return nil
}

// Practice runs the record, transcribe, and feedback loop for one scenario.
func (r *Runner) Practice(ctx context.Context, g cli.Globals, opts cli.PracticeOptions) error {
	e, err := r.bootstrap(g)
	if err != nil {
		return err
	}
	defer e.close()
	cfg := e.loaded.Config
	logger := e.logger

	prompter := prompt.New(r.Stdin, r.Stdout)
	scn, err := r.chooseScenario(prompter, opts.ScenarioID)
	if err != nil {
		return err
	}

	tel, err := telemetry.Setup(cfg.Telemetry, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: telemetry disabled: %v\n", err)
		tel = telemetry.Disabled()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err.Error())
		}
	}()

	recorder, closeHistory := r.openHistory(ctx, e.loaded, logger)
	defer closeHistory()

	term := indicator.NewTerminal(r.Stdout, cfg.Indicator, prompt.IsTerminal(r.Stdout), logger)
	defer term.Wait(time.Second)
	report := indicator.NewReport(r.Stdout, r.color(cfg))

	maxDuration := cfg.Audio.MaxDuration
	if opts.MaxDuration > 0 {
		maxDuration = opts.MaxDuration
	}
	mic := r.Microphone
	if mic == nil {
		mic = audio.Microphone{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Logger: logger}
	}
	capture := recording.NewController(mic, recording.Options{
		SampleRate:  audio.SampleRate,
		Channels:    audio.Channels,
		MaxDuration: maxDuration,
		NewTicker:   r.NewTicker,
		OnTick:      term.Tick,
		Logger:      logger,
	})

	transcriber := siliconflow.NewClient(siliconflow.Config{
		Endpoint: cfg.Transcription.Endpoint,
		Model:    cfg.Transcription.Model,
		Timeout:  cfg.Transcription.Timeout,
	}, r.httpClient(cfg.Transcription.Timeout), logger)
	generator := feedback.NewClient(feedback.Config{
		BaseURL: cfg.Feedback.BaseURL,
		Model:   cfg.Feedback.Model,
		Timeout: cfg.Feedback.Timeout,
	}, e.feedbackToken, r.httpClient(cfg.Feedback.Timeout), logger)

	ctl := session.NewController(scn, capture, transcriber, generator, e.transcriptionToken, session.Options{
		Logger:    logger,
		Indicator: term,
		History:   recorder,
		Tracer:    tel.Tracer,
	})
	defer ctl.Close(context.WithoutCancel(ctx))

	remoteStop, closeControl, err := startControl(ctx, ctl, logger)
	if err != nil {
		return err
	}
	defer closeControl()

	if !e.currentSettings().HasToken() {
		term.ShowTokenBanner()
	}
	report.Prompt(scn)

	lines := newLineReader(r.Stdin)
	for {
		snap, err := r.attempt(ctx, ctl, term, lines, remoteStop)
		switch {
		case errors.Is(err, errInputClosed):
			return nil
		case errors.Is(err, context.Canceled), errors.Is(err, session.ErrClosed):
			fmt.Fprintln(r.Stdout, "cancelled")
			return nil
		}

		failed := err != nil
		if failed {
			if snap.ErrorKind == apperr.KindConfigurationMissing {
				term.ShowTokenBanner()
			}
			ctl.DismissError()
		} else if snap.Feedback != nil {
			report.Feedback(scn, snap.Transcript, *snap.Feedback, snap.Elapsed)
		}

		if !r.confirm(prompter, lines, "Practice again?") {
			if failed {
				return cli.ErrReported
			}
			return nil
		}
		if err := ctl.PracticeAgain(); err != nil {
			return err
		}
		report.Prompt(scn)
	}
}

var errInputClosed = errors.New("input closed")

// attempt waits for Enter, records until Enter, a remote stop, or the time limit, then runs the pipeline.
func (r *Runner) attempt(ctx context.Context, ctl *session.Controller, term *indicator.Terminal, lines *lineReader, remoteStop <-chan struct{}) (session.Snapshot, error) {
	fmt.Fprintln(r.Stdout, "Press Enter to start recording.")
	select {
	case <-ctx.Done():
		return session.Snapshot{}, ctx.Err()
	case res := <-lines.next():
		lines.consume()
		if res.err != nil && res.line == "" {
			return session.Snapshot{}, errInputClosed
		}
	}

	drain(remoteStop)
	if err := ctl.StartRecording(ctx); err != nil {
		return ctl.Snapshot(), err
	}

	select {
	case <-ctx.Done():
		ctl.Close(context.WithoutCancel(ctx))
		return session.Snapshot{}, ctx.Err()
	case <-lines.next():
		lines.consume()
	case <-remoteStop:
		term.Notice("Stopped remotely.")
	case <-ctl.RecordingDone():
		term.Notice("Time limit reached.")
	}

	return ctl.StopRecording(ctx)
}

func (r *Runner) chooseScenario(prompter *prompt.Prompter, key string) (scenario.Scenario, error) {
	if strings.TrimSpace(key) != "" {
		s, ok := scenario.Lookup(key)
		if !ok {
			return scenario.Scenario{}, &cli.UsageError{Err: fmt.Errorf("unknown scenario %q (see `speechcraft scenarios`)", key)}
		}
		return s, nil
	}
	s, err := prompter.SelectScenario(scenario.Catalog())
	if errors.Is(err, prompt.ErrNotInteractive) {
		return scenario.Scenario{}, &cli.UsageError{Err: errors.New("--scenario is required when stdin is not a terminal")}
	}
	return s, err
}

// confirm uses a form on a terminal and reads a y/n line otherwise.
func (r *Runner) confirm(prompter *prompt.Prompter, lines *lineReader, question string) bool {
	if prompter.Interactive() && !lines.pending() {
		return prompter.Confirm(question, false)
	}
	fmt.Fprintf(r.Stdout, "%s [y/N] ", question)
	res := <-lines.next()
	lines.consume()
	fmt.Fprintln(r.Stdout)
	switch strings.ToLower(strings.TrimSpace(res.line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// openHistory returns nil when history is off or unavailable; practice continues without it.
func (r *Runner) openHistory(ctx context.Context, loaded config.Loaded, logger *slog.Logger) (session.Recorder, func()) {
	if !loaded.Config.History.Enable {
		return nil, func() {}
	}
	path := loaded.HistoryPath
	store, err := history.Open(ctx, path, logger)
	if err != nil {
		logger.Warn("history disabled", "path", path, "error", err.Error())
		return nil, func() {}
	}
	return store, func() { _ = store.Close() }
}

func (r *Runner) httpClient(timeout time.Duration) *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: timeout}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
