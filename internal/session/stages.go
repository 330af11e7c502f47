package session

import (
	"context"
	"errors"

	"github.com/rbright/speechcraft/internal/feedback"
	"github.com/rbright/speechcraft/internal/fsm"
	"github.com/rbright/speechcraft/internal/history"
	"github.com/rbright/speechcraft/internal/recording"
)

var (
	// ErrBusy indicates a pipeline run is still processing the previous recording.
	ErrBusy = errors.New("still processing the previous recording")
	// ErrClosed indicates the session was torn down; late results are discarded.
	ErrClosed = errors.New("practice session closed")
)

// Capture is the recording lifecycle the orchestrator drives.
type Capture interface {
	Start(context.Context) error
	Stop() (recording.Artifact, bool)
	Abort()
	Reset() error
	State() fsm.State
	Elapsed() int
	Done() <-chan struct{}
}

// Transcriber turns a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, artifact recording.Artifact, token string) (string, error)
}

// FeedbackGenerator critiques a transcript against a scenario rubric.
type FeedbackGenerator interface {
	Generate(ctx context.Context, transcript, evaluationPrompt, scenarioTitle string) (feedback.Result, error)
}

// TokenSource returns the current API token; it is read once per pipeline run.
type TokenSource func() string

// Recorder stores completed attempts.
type Recorder interface {
	Record(context.Context, history.Attempt) (history.Attempt, error)
}

// RecordFunc adapts a function to the Recorder interface.
type RecordFunc func(context.Context, history.Attempt) (history.Attempt, error)

func (f RecordFunc) Record(ctx context.Context, attempt history.Attempt) (history.Attempt, error) {
	return f(ctx, attempt)
}
