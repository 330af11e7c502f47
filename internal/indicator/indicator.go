// Package indicator renders practice progress to the terminal and plays audio cues.
package indicator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/speechcraft/internal/config"
	"github.com/rbright/speechcraft/internal/recording"
)

// Terminal is the indicator used by interactive practice sessions.
type Terminal struct {
	out      io.Writer
	cfg      config.IndicatorConfig
	live     bool
	logger   *slog.Logger
	messages messages
	styles   styles
	cue      func(context.Context, cueKind) error

	mu       sync.Mutex
	lineOpen bool
	soundMu  sync.Mutex
	pending  sync.WaitGroup
}

// NewTerminal writes status to out. live enables in-place elapsed-time updates.
func NewTerminal(out io.Writer, cfg config.IndicatorConfig, live bool, logger *slog.Logger) *Terminal {
	return &Terminal{
		out:      out,
		cfg:      cfg,
		live:     live,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
		styles:   newStyles(lipgloss.NewRenderer(out), cfg.Color),
		cue:      emitCue,
	}
}

// ShowRecording prints the recording line and emits the start cue.
func (t *Terminal) ShowRecording(ctx context.Context) {
	t.playCue(ctx, cueStart)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLineLocked()
	t.renderRecordingLocked(0)
}

// Tick refreshes the elapsed time on the recording line.
func (t *Terminal) Tick(elapsedSeconds int) {
	if !t.live {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.lineOpen {
		return
	}
	t.renderRecordingLocked(elapsedSeconds)
}

// ShowProcessing signals the transcription and feedback stage.
func (t *Terminal) ShowProcessing(context.Context) {
	t.println(t.styles.processing.Render("… " + t.messages.processing))
}

// ShowError prints a user-facing error and emits the error cue.
func (t *Terminal) ShowError(ctx context.Context, text string) {
	if text == "" {
		text = t.messages.errorText
	}
	t.playCue(ctx, cueError)
	t.println(t.styles.err.Render("✗ " + text))
}

// ShowTokenBanner prints the missing-token setup hint.
func (t *Terminal) ShowTokenBanner() {
	t.println(t.styles.warn.Render("! " + t.messages.tokenBanner))
}

// Notice prints an informational line, closing any live recording line first.
func (t *Terminal) Notice(text string) {
	t.println(t.styles.muted.Render(text))
}

// CueStop emits the stop cue.
func (t *Terminal) CueStop(ctx context.Context) {
	t.playCue(ctx, cueStop)
}

// CueComplete emits the completion cue and prints the ready line.
func (t *Terminal) CueComplete(ctx context.Context) {
	t.playCue(ctx, cueComplete)
	t.println(t.styles.ok.Render("✓ " + t.messages.complete))
}

// Hide ends any in-place line and waits briefly for queued cues.
func (t *Terminal) Hide(context.Context) {
	t.mu.Lock()
	t.closeLineLocked()
	t.mu.Unlock()
	t.Wait(800 * time.Millisecond)
}

// Wait blocks until queued cues finish or timeout elapses.
func (t *Terminal) Wait(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		t.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

func (t *Terminal) renderRecordingLocked(elapsed int) {
	line := fmt.Sprintf("%s %s %s  %s",
		t.styles.recordingDot.Render("●"),
		t.styles.recording.Render(t.messages.recording),
		recording.FormatElapsed(elapsed),
		t.styles.muted.Render("("+t.messages.stopHint+")"),
	)
	if t.live {
		fmt.Fprint(t.out, "\r\033[K"+line)
		t.lineOpen = true
		return
	}
	fmt.Fprintln(t.out, line)
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLineLocked()
	fmt.Fprintln(t.out, line)
}

func (t *Terminal) closeLineLocked() {
	if t.lineOpen {
		fmt.Fprintln(t.out)
		t.lineOpen = false
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (t *Terminal) playCue(ctx context.Context, kind cueKind) {
	if !t.cfg.SoundEnable {
		return
	}
	ctx = context.WithoutCancel(ctx)
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		t.soundMu.Lock()
		defer t.soundMu.Unlock()
		if err := t.cue(ctx, kind); err != nil {
			t.log("indicator audio cue failed", err)
		}
	}()
}

// log emits debug-only indicator failures to the runtime logger.
func (t *Terminal) log(message string, err error) {
	if t.logger == nil || err == nil {
		return
	}
	t.logger.Debug(message, "error", err.Error())
}
