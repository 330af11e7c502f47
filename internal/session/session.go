// Package session sequences recording, transcription, and feedback for one scenario.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rbright/speechcraft/internal/apperr"
	"github.com/rbright/speechcraft/internal/feedback"
	"github.com/rbright/speechcraft/internal/fsm"
	"github.com/rbright/speechcraft/internal/history"
	"github.com/rbright/speechcraft/internal/recording"
	"github.com/rbright/speechcraft/internal/scenario"
)

// Snapshot is the view-facing state of one practice session.
type Snapshot struct {
	Recording  fsm.State
	Elapsed    int
	Processing bool
	Transcript string
	Feedback   *feedback.Result
	Error      string
	ErrorKind  apperr.Kind
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowRecording(context.Context)
	ShowProcessing(context.Context)
	ShowError(context.Context, string)
	CueStop(context.Context)
	CueComplete(context.Context)
	Hide(context.Context)
}

// noopIndicator preserves session flow when no indicator is wired.
type noopIndicator struct{}

func (noopIndicator) ShowRecording(context.Context)     {}
func (noopIndicator) ShowProcessing(context.Context)    {}
func (noopIndicator) ShowError(context.Context, string) {}
func (noopIndicator) CueStop(context.Context)           {}
func (noopIndicator) CueComplete(context.Context)       {}
func (noopIndicator) Hide(context.Context)              {}

// Options carries optional collaborators. Zero values are safe.
type Options struct {
	Logger    *slog.Logger
	Indicator Indicator
	History   Recorder
	Tracer    trace.Tracer
}

// Controller owns the processing flag and visible results for one scenario.
type Controller struct {
	scenario    scenario.Scenario
	capture     Capture
	transcriber Transcriber
	generator   FeedbackGenerator
	token       TokenSource

	logger    *slog.Logger
	indicator Indicator
	history   Recorder
	tracer    trace.Tracer

	mu         sync.Mutex
	generation uint64
	closed     bool
	processing bool
	transcript string
	feedback   *feedback.Result
	errMsg     string
	errKind    apperr.Kind
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	scn scenario.Scenario,
	capture Capture,
	transcriber Transcriber,
	generator FeedbackGenerator,
	token TokenSource,
	opts Options,
) *Controller {
	if token == nil {
		token = func() string { return "" }
	}
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}
	if opts.History == nil {
		opts.History = RecordFunc(func(_ context.Context, a history.Attempt) (history.Attempt, error) { return a, nil })
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Controller{
		scenario:    scn,
		capture:     capture,
		transcriber: transcriber,
		generator:   generator,
		token:       token,
		logger:      opts.Logger,
		indicator:   opts.Indicator,
		history:     opts.History,
		tracer:      opts.Tracer,
	}
}

// Scenario returns the scenario this session practices.
func (c *Controller) Scenario() scenario.Scenario {
	return c.scenario
}

// Snapshot returns a copy of the current visible state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Recording:  c.capture.State(),
		Elapsed:    c.capture.Elapsed(),
		Processing: c.processing,
		Transcript: c.transcript,
		Error:      c.errMsg,
		ErrorKind:  c.errKind,
	}
	if c.feedback != nil {
		fb := *c.feedback
		fb.Suggestions = append([]string(nil), c.feedback.Suggestions...)
		snap.Feedback = &fb
	}
	return snap
}

// RecordingDone is closed when the active recording reaches its time limit.
func (c *Controller) RecordingDone() <-chan struct{} {
	return c.capture.Done()
}

// StartRecording begins capture. It is rejected while a previous run is
// processing. Results of the previous attempt are cleared before capture opens.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.processing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.transcript = ""
	c.feedback = nil
	c.errMsg = ""
	c.errKind = ""
	gen := c.generation
	c.mu.Unlock()

	if err := c.capture.Start(ctx); err != nil {
		if errors.Is(err, recording.ErrAlreadyRecording) {
			return err
		}
		c.fail(ctx, gen, err)
		return err
	}

	c.indicator.ShowRecording(ctx)
	c.logInfo("recording started", "scenario", c.scenario.ID)
	return nil
}

// StopRecording stops capture and runs transcription then feedback.
//
// It does nothing when no recording is active. Results that arrive after
// Close are discarded and ErrClosed is returned.
func (c *Controller) StopRecording(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.processing {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	artifact, ok := c.capture.Stop()
	if !ok {
		return c.Snapshot(), nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	gen := c.generation
	c.transcript = ""
	c.feedback = nil
	c.errMsg = ""
	c.errKind = ""
	c.processing = true
	c.mu.Unlock()

	c.indicator.CueStop(ctx)
	c.indicator.ShowProcessing(ctx)

	if err := c.runPipeline(ctx, gen, artifact); err != nil {
		if errors.Is(err, ErrClosed) {
			return Snapshot{}, err
		}
		return c.Snapshot(), err
	}
	return c.Snapshot(), nil
}

func (c *Controller) runPipeline(ctx context.Context, gen uint64, artifact recording.Artifact) error {
	ctx, span := c.tracer.Start(ctx, "practice.pipeline", trace.WithAttributes(
		attribute.String("scenario.id", c.scenario.ID),
		attribute.Int("recording.elapsed_s", artifact.Elapsed),
		attribute.Int("recording.bytes", len(artifact.Data)),
	))
	defer span.End()

	token := strings.TrimSpace(c.token())
	if token == "" {
		err := apperr.ConfigurationMissing(apperr.MsgTokenMissing)
		endWithError(span, err)
		return c.fail(ctx, gen, err)
	}

	text, err := c.transcribe(ctx, artifact, token)
	if err != nil {
		endWithError(span, err)
		return c.fail(ctx, gen, err)
	}

	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		c.logInfo("discarding late transcript", "scenario", c.scenario.ID)
		return ErrClosed
	}
	c.transcript = text
	c.mu.Unlock()

	result, err := c.generate(ctx, text)
	if err != nil {
		endWithError(span, err)
		return c.fail(ctx, gen, err)
	}

	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		c.logInfo("discarding late feedback", "scenario", c.scenario.ID)
		return ErrClosed
	}
	c.feedback = &result
	c.processing = false
	c.mu.Unlock()

	span.SetAttributes(attribute.Float64("feedback.score", result.Score))
	c.indicator.CueComplete(ctx)
	c.logInfo("feedback ready", "scenario", c.scenario.ID, "score", result.Score)

	saved, herr := c.history.Record(ctx, history.Attempt{
		ScenarioID:     c.scenario.ID,
		ScenarioTitle:  c.scenario.Title,
		Transcript:     text,
		Feedback:       result,
		ElapsedSeconds: artifact.Elapsed,
		CreatedAt:      time.Now(),
	})
	if herr != nil {
		c.logWarn("record attempt", "error", herr.Error())
	} else if saved.ID != "" {
		c.logDebug("attempt saved", "id", saved.ID)
	}
	return nil
}

func (c *Controller) transcribe(ctx context.Context, artifact recording.Artifact, token string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "practice.transcribe")
	defer span.End()

	text, err := c.transcriber.Transcribe(ctx, artifact, token)
	if err != nil {
		endWithError(span, err)
		return "", err
	}
	span.SetAttributes(attribute.Int("transcript.chars", len(text)))
	return text, nil
}

func (c *Controller) generate(ctx context.Context, transcript string) (feedback.Result, error) {
	ctx, span := c.tracer.Start(ctx, "practice.feedback")
	defer span.End()

	result, err := c.generator.Generate(ctx, transcript, c.scenario.EvaluationPrompt, c.scenario.Title)
	if err != nil {
		endWithError(span, err)
		return feedback.Result{}, err
	}
	return result, nil
}

// fail records err as the visible error unless the session moved on.
func (c *Controller) fail(ctx context.Context, gen uint64, err error) error {
	c.mu.Lock()
	if c.stale(gen) {
		c.mu.Unlock()
		c.logInfo("discarding late failure", "error", err.Error())
		return ErrClosed
	}
	c.processing = false
	c.feedback = nil
	c.errMsg = apperr.UserMessage(err)
	c.errKind = apperr.KindOf(err)
	msg := c.errMsg
	kind := c.errKind
	c.mu.Unlock()

	c.logError("practice pipeline failed", "kind", string(kind), "error", err.Error())
	c.indicator.ShowError(ctx, msg)
	return err
}

// stale reports whether gen belongs to a torn-down session. Caller holds c.mu.
func (c *Controller) stale(gen uint64) bool {
	return c.closed || gen != c.generation
}

// DismissError clears the visible error and returns a failed recorder to idle.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.errMsg = ""
	c.errKind = ""
	c.mu.Unlock()

	if c.capture.State() == fsm.StateError {
		_ = c.capture.Reset()
	}
}

// PracticeAgain clears transcript, feedback, error, and elapsed time.
func (c *Controller) PracticeAgain() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.processing {
		c.mu.Unlock()
		return ErrBusy
	}
	c.transcript = ""
	c.feedback = nil
	c.errMsg = ""
	c.errKind = ""
	c.mu.Unlock()

	return c.capture.Reset()
}

// Close aborts any recording and invalidates in-flight pipeline results.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.processing = false
	c.mu.Unlock()

	c.capture.Abort()
	c.indicator.Hide(ctx)
}

func endWithError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperr.KindOf(err)))
}

func (c *Controller) logDebug(msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, attrs...)
}

func (c *Controller) logInfo(msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(msg, attrs...)
}

func (c *Controller) logWarn(msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, attrs...)
}

func (c *Controller) logError(msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Error(msg, attrs...)
}
