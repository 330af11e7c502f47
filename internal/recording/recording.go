// Package recording owns one microphone capture lifecycle and produces the WAV artifact.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/speechcraft/internal/apperr"
	"github.com/rbright/speechcraft/internal/fsm"
)

const (
	MediaTypeWAV = "audio/wav"

	DefaultSampleRate = 16000
	DefaultChannels   = 1
)

// ErrAlreadyRecording is returned when Start is called while a capture is active.
var ErrAlreadyRecording = errors.New("recording already in progress")

// errAborted reports that Abort ran while the microphone was being opened.
var errAborted = errors.New("recording aborted")

// Microphone acquires an input stream, suspending on device or permission grant.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is one open capture. Stop must close Chunks.
type Stream interface {
	Chunks() <-chan []byte
	Stop() error
}

// Ticker is the elapsed-time source; it fires once per interval until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates tickers so tests can drive elapsed time.
type TickerFactory func(interval time.Duration) Ticker

// Artifact is one finished recording, handed to the transcription stage.
type Artifact struct {
	Data      []byte
	MediaType string
	Elapsed   int
}

// Options tunes a Controller. Zero values select production defaults.
type Options struct {
	SampleRate  int
	Channels    int
	MaxDuration time.Duration
	NewTicker   TickerFactory
	OnTick      func(elapsedSeconds int)
	Logger      *slog.Logger
}

// Controller serializes capture sessions: at most one stream and one ticker are live.
type Controller struct {
	mic  Microphone
	opts Options

	mu        sync.Mutex
	state     fsm.State
	elapsed   int
	attempt   uint64
	stream    Stream
	ticker    Ticker
	quit      chan struct{}
	collected chan [][]byte
	done      chan struct{}
	doneOnce  *sync.Once
}

// NewController builds an idle controller around mic.
func NewController(mic Microphone, opts Options) *Controller {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = DefaultChannels
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newTimeTicker
	}
	return &Controller{
		mic:      mic,
		opts:     opts,
		state:    fsm.StateIdle,
		done:     make(chan struct{}),
		doneOnce: &sync.Once{},
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns whole seconds recorded in the current or last session.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Done is closed when the active recording reaches MaxDuration.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Start opens the microphone and begins capture plus the one-second ticker.
//
// A failed open leaves the controller in fsm.StateError with no ticker running.
// Starting from fsm.StateError clears the previous failure first.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == fsm.StateError {
		c.state, _ = fsm.Transition(c.state, fsm.EventReset)
	}
	next, err := fsm.Transition(c.state, fsm.EventStart)
	if err != nil {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	c.state = next
	c.elapsed = 0
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	stream, openErr := c.mic.Open(ctx)

	c.mu.Lock()
	if c.attempt != attempt || c.state != fsm.StateRequestingPermission {
		c.mu.Unlock()
		if stream != nil {
			_ = stream.Stop()
		}
		return errAborted
	}
	if openErr != nil {
		c.state, _ = fsm.Transition(c.state, fsm.EventDenied)
		c.mu.Unlock()
		c.logWarn("microphone unavailable", "error", openErr.Error())
		return apperr.PermissionDenied(openErr)
	}

	c.state, _ = fsm.Transition(c.state, fsm.EventGranted)
	c.stream = stream
	c.ticker = c.opts.NewTicker(time.Second)
	c.quit = make(chan struct{})
	c.collected = make(chan [][]byte, 1)
	c.done = make(chan struct{})
	c.doneOnce = &sync.Once{}

	go collect(stream.Chunks(), c.collected)
	go c.runTicker(c.ticker, c.quit, c.done, c.doneOnce)
	c.mu.Unlock()

	c.logInfo("recording started")
	return nil
}

// Stop halts capture and returns the encoded artifact.
//
// Outside fsm.StateRecording it does nothing and reports false.
func (c *Controller) Stop() (Artifact, bool) {
	c.mu.Lock()
	next, err := fsm.Transition(c.state, fsm.EventStop)
	if err != nil {
		c.mu.Unlock()
		return Artifact{}, false
	}
	c.state = next
	stream, collected := c.release()
	elapsed := c.elapsed
	c.mu.Unlock()

	if err := stream.Stop(); err != nil {
		c.logWarn("stop capture stream", "error", err.Error())
	}
	chunks := <-collected

	pcm := concat(chunks)
	artifact := Artifact{
		Data:      EncodeWAV(pcm, c.opts.SampleRate, c.opts.Channels),
		MediaType: MediaTypeWAV,
		Elapsed:   elapsed,
	}

	c.mu.Lock()
	if c.state == fsm.StateStopping {
		c.state, _ = fsm.Transition(c.state, fsm.EventCaptured)
	}
	c.mu.Unlock()

	c.logInfo("recording stopped", "elapsed_s", elapsed, "pcm_bytes", len(pcm))
	return artifact, true
}

// Abort releases the stream and ticker from any state and discards captured audio.
func (c *Controller) Abort() {
	c.mu.Lock()
	c.attempt++
	stream, collected := c.release()
	c.state, _ = fsm.Transition(c.state, fsm.EventAbort)
	c.elapsed = 0
	c.mu.Unlock()

	if stream != nil {
		_ = stream.Stop()
		<-collected
	}
}

// Reset clears a failed or finished session back to idle with zero elapsed time.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case fsm.StateIdle:
	case fsm.StateError:
		next, err := fsm.Transition(c.state, fsm.EventReset)
		if err != nil {
			return err
		}
		c.state = next
	default:
		return fmt.Errorf("reset while %s: %w", c.state, ErrAlreadyRecording)
	}
	c.elapsed = 0
	return nil
}

// release detaches the live stream and stops the ticker. Caller holds c.mu.
func (c *Controller) release() (Stream, chan [][]byte) {
	if c.quit != nil {
		close(c.quit)
		c.quit = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	stream, collected := c.stream, c.collected
	c.stream = nil
	c.collected = nil
	return stream, collected
}

func (c *Controller) runTicker(t Ticker, quit <-chan struct{}, done chan struct{}, once *sync.Once) {
	limit := int(c.opts.MaxDuration / time.Second)
	for {
		select {
		case <-quit:
			return
		case <-t.C():
		}

		c.mu.Lock()
		select {
		case <-quit:
			c.mu.Unlock()
			return
		default:
		}
		c.elapsed++
		elapsed := c.elapsed
		c.mu.Unlock()

		if c.opts.OnTick != nil {
			c.opts.OnTick(elapsed)
		}
		if limit > 0 && elapsed >= limit {
			once.Do(func() { close(done) })
		}
	}
}

// collect drains chunks until the stream closes them, then reports the full set.
func collect(in <-chan []byte, out chan<- [][]byte) {
	var chunks [][]byte
	for chunk := range in {
		if len(chunk) == 0 {
			continue
		}
		chunks = append(chunks, chunk)
	}
	out <- chunks
}

func concat(chunks [][]byte) []byte {
	size := 0
	for _, chunk := range chunks {
		size += len(chunk)
	}
	out := make([]byte, 0, size)
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out
}

// FormatElapsed renders seconds as m:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

type timeTicker struct {
	t *time.Ticker
}

func newTimeTicker(interval time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(interval)}
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }

func (t timeTicker) Stop() { t.t.Stop() }

func (c *Controller) logInfo(msg string, attrs ...any) {
	if c.opts.Logger == nil {
		return
	}
	c.opts.Logger.Info(msg, attrs...)
}

func (c *Controller) logWarn(msg string, attrs ...any) {
	if c.opts.Logger == nil {
		return
	}
	c.opts.Logger.Warn(msg, attrs...)
}
