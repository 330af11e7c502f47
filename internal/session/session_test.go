package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/speechcraft/internal/apperr"
	"github.com/rbright/speechcraft/internal/feedback"
	"github.com/rbright/speechcraft/internal/fsm"
	"github.com/rbright/speechcraft/internal/history"
	"github.com/rbright/speechcraft/internal/recording"
	"github.com/rbright/speechcraft/internal/scenario"
)

type fakeIndicator struct {
	mu           sync.Mutex
	errors       []string
	stopCues     atomic.Int32
	completeCues atomic.Int32
	hides        atomic.Int32
}

func (*fakeIndicator) ShowRecording(context.Context)  {}
func (*fakeIndicator) ShowProcessing(context.Context) {}
func (f *fakeIndicator) ShowError(_ context.Context, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
}
func (f *fakeIndicator) CueStop(context.Context)     { f.stopCues.Add(1) }
func (f *fakeIndicator) CueComplete(context.Context) { f.completeCues.Add(1) }
func (f *fakeIndicator) Hide(context.Context)        { f.hides.Add(1) }

func (f *fakeIndicator) lastError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errors) == 0 {
		return ""
	}
	return f.errors[len(f.errors)-1]
}

// fakeCapture is an in-memory recording lifecycle.
type fakeCapture struct {
	mu       sync.Mutex
	state    fsm.State
	elapsed  int
	startErr error
	aborts   int
	done     chan struct{}
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{state: fsm.StateIdle, done: make(chan struct{})}
}

func (f *fakeCapture) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == fsm.StateRecording {
		return recording.ErrAlreadyRecording
	}
	if f.startErr != nil {
		f.state = fsm.StateError
		return apperr.PermissionDenied(f.startErr)
	}
	f.state = fsm.StateRecording
	f.elapsed = 10
	return nil
}

func (f *fakeCapture) Stop() (recording.Artifact, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != fsm.StateRecording {
		return recording.Artifact{}, false
	}
	f.state = fsm.StateIdle
	return recording.Artifact{Data: []byte("RIFF"), MediaType: recording.MediaTypeWAV, Elapsed: f.elapsed}, true
}

func (f *fakeCapture) Abort() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	f.state = fsm.StateIdle
	f.elapsed = 0
}

func (f *fakeCapture) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == fsm.StateRecording {
		return recording.ErrAlreadyRecording
	}
	f.state = fsm.StateIdle
	f.elapsed = 0
	return nil
}

func (f *fakeCapture) State() fsm.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeCapture) Elapsed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elapsed
}

func (f *fakeCapture) Done() <-chan struct{} { return f.done }

type fakeTranscriber struct {
	text  string
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, _ recording.Artifact, _ string) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	return f.text, f.err
}

type fakeGenerator struct {
	result feedback.Result
	err    error
	calls  atomic.Int32
	title  string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, _ string, title string) (feedback.Result, error) {
	f.calls.Add(1)
	f.title = title
	return f.result, f.err
}

func coffeeShop(t *testing.T) scenario.Scenario {
	t.Helper()
	scn, ok := scenario.Lookup("The Coffee Shop Dilemma")
	if !ok {
		t.Fatal("coffee shop scenario missing")
	}
	return scn
}

func staticToken(token string) TokenSource {
	return func() string { return token }
}

func TestEndToEndPracticeProducesScoreAndTranscript(t *testing.T) {
	capture := newFakeCapture()
	transcriber := &fakeTranscriber{text: "we should switch to paper bags"}
	generator := &fakeGenerator{result: feedback.Result{
		Score:           82,
		Clarity:         "...",
		Logic:           "...",
		Suggestions:     []string{"..."},
		ImprovedVersion: "...",
	}}
	ind := &fakeIndicator{}

	var recorded []history.Attempt
	ctrl := NewController(coffeeShop(t), capture, transcriber, generator, staticToken("sk-test"), Options{
		Indicator: ind,
		History: RecordFunc(func(_ context.Context, a history.Attempt) (history.Attempt, error) {
			recorded = append(recorded, a)
			return a, nil
		}),
	})

	if err := ctrl.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	snap, err := ctrl.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}

	if snap.Feedback == nil || snap.Feedback.Score != 82 {
		t.Fatalf("expected score 82, got %+v", snap.Feedback)
	}
	if snap.Transcript != "we should switch to paper bags" {
		t.Fatalf("unexpected transcript %q", snap.Transcript)
	}
	if snap.Processing || snap.Error != "" {
		t.Fatalf("expected settled snapshot, got %+v", snap)
	}
	if generator.title != "The Coffee Shop Dilemma" {
		t.Fatalf("feedback got scenario %q", generator.title)
	}
	if ind.stopCues.Load() != 1 || ind.completeCues.Load() != 1 {
		t.Fatalf("expected one stop and one complete cue")
	}
	if len(recorded) != 1 || recorded[0].ElapsedSeconds != 10 || recorded[0].ScenarioID != "1" {
		t.Fatalf("unexpected history %+v", recorded)
	}
}

func TestTranscriptionServiceErrorSurfacesRemoteMessage(t *testing.T) {
	transcriber := &fakeTranscriber{err: apperr.Service("overloaded", apperr.MsgTranscription, errors.New("HTTP 500"))}
	generator := &fakeGenerator{}
	ind := &fakeIndicator{}
	ctrl := NewController(coffeeShop(t), newFakeCapture(), transcriber, generator, staticToken("sk-test"), Options{Indicator: ind})

	_ = ctrl.StartRecording(context.Background())
	snap, err := ctrl.StopRecording(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if snap.Error != "overloaded" || ind.lastError() != "overloaded" {
		t.Fatalf("expected visible error overloaded, got %q / %q", snap.Error, ind.lastError())
	}
	if snap.ErrorKind != apperr.KindServiceError {
		t.Fatalf("unexpected kind %s", snap.ErrorKind)
	}
	if generator.calls.Load() != 0 {
		t.Fatal("feedback must not run after a transcription failure")
	}
	if snap.Transcript != "" || snap.Feedback != nil || snap.Processing {
		t.Fatalf("expected cleared downstream state, got %+v", snap)
	}
}

func TestFeedbackParseFailureClearsPreviousFeedback(t *testing.T) {
	capture := newFakeCapture()
	transcriber := &fakeTranscriber{text: "first attempt"}
	generator := &fakeGenerator{result: feedback.Result{Score: 70, Suggestions: []string{}}}
	ctrl := NewController(coffeeShop(t), capture, transcriber, generator, staticToken("sk-test"), Options{})

	_ = ctrl.StartRecording(context.Background())
	if snap, err := ctrl.StopRecording(context.Background()); err != nil || snap.Feedback == nil {
		t.Fatalf("first run failed: %v", err)
	}

	transcriber.text = "second attempt"
	generator.err = apperr.Parse(apperr.MsgFeedback, errors.New("invalid character 'S'"))
	_ = ctrl.StartRecording(context.Background())
	snap, err := ctrl.StopRecording(context.Background())

	if apperr.KindOf(err) != apperr.KindParseFailure {
		t.Fatalf("expected parse failure, got %v", err)
	}
	if snap.Feedback != nil {
		t.Fatalf("stale feedback still visible: %+v", snap.Feedback)
	}
	if snap.Error != "Feedback generation failed" {
		t.Fatalf("unexpected visible error %q", snap.Error)
	}
	if snap.Transcript != "second attempt" {
		t.Fatalf("expected fresh transcript, got %q", snap.Transcript)
	}
}

func TestMissingTokenFailsBeforeTranscription(t *testing.T) {
	transcriber := &fakeTranscriber{text: "unused"}
	ctrl := NewController(coffeeShop(t), newFakeCapture(), transcriber, &fakeGenerator{}, staticToken("  "), Options{})

	_ = ctrl.StartRecording(context.Background())
	snap, err := ctrl.StopRecording(context.Background())
	if apperr.KindOf(err) != apperr.KindConfigurationMissing {
		t.Fatalf("expected configuration missing, got %v", err)
	}
	if transcriber.calls.Load() != 0 {
		t.Fatal("transcriber must not be called without a token")
	}
	if snap.Error != apperr.MsgTokenMissing {
		t.Fatalf("unexpected visible error %q", snap.Error)
	}
}

func TestPermissionDeniedSetsErrorAndDismissResets(t *testing.T) {
	capture := newFakeCapture()
	capture.startErr = errors.New("no source")
	ctrl := NewController(coffeeShop(t), capture, &fakeTranscriber{}, &fakeGenerator{}, staticToken("sk"), Options{})

	err := ctrl.StartRecording(context.Background())
	if apperr.KindOf(err) != apperr.KindPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	snap := ctrl.Snapshot()
	if snap.Recording != fsm.StateError || snap.Error != apperr.MsgPermissionDenied {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	ctrl.DismissError()
	snap = ctrl.Snapshot()
	if snap.Error != "" || snap.Recording != fsm.StateIdle {
		t.Fatalf("expected dismissed idle snapshot, got %+v", snap)
	}
}

func TestDeniedRestartDropsPreviousAttempt(t *testing.T) {
	capture := newFakeCapture()
	generator := &fakeGenerator{result: feedback.Result{Score: 82, Suggestions: []string{"slow down"}}}
	ctrl := NewController(coffeeShop(t), capture, &fakeTranscriber{text: "we should switch to paper bags"}, generator, staticToken("sk"), Options{})

	if err := ctrl.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	snap, err := ctrl.StopRecording(context.Background())
	if err != nil || snap.Transcript == "" || snap.Feedback == nil {
		t.Fatalf("expected a completed attempt, got %+v (err=%v)", snap, err)
	}

	capture.mu.Lock()
	capture.startErr = errors.New("denied")
	capture.mu.Unlock()

	err = ctrl.StartRecording(context.Background())
	if apperr.KindOf(err) != apperr.KindPermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}
	snap = ctrl.Snapshot()
	if snap.Error != apperr.MsgPermissionDenied {
		t.Fatalf("unexpected error %q", snap.Error)
	}
	if snap.Transcript != "" || snap.Feedback != nil {
		t.Fatalf("previous attempt still visible: transcript=%q feedback=%+v", snap.Transcript, snap.Feedback)
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	transcriber := &fakeTranscriber{}
	ctrl := NewController(coffeeShop(t), newFakeCapture(), transcriber, &fakeGenerator{}, staticToken("sk"), Options{})

	snap, err := ctrl.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	if snap.Processing || transcriber.calls.Load() != 0 {
		t.Fatalf("expected no pipeline run, got %+v", snap)
	}
}

func TestStartRejectedWhileProcessing(t *testing.T) {
	gate := make(chan struct{})
	transcriber := &fakeTranscriber{text: "hello", gate: gate}
	ctrl := NewController(coffeeShop(t), newFakeCapture(), transcriber, &fakeGenerator{}, staticToken("sk"), Options{})

	_ = ctrl.StartRecording(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = ctrl.StopRecording(context.Background())
	}()

	waitFor(t, func() bool { return transcriber.calls.Load() == 1 })
	if !ctrl.Snapshot().Processing {
		t.Fatal("expected processing while transcription is in flight")
	}
	if err := ctrl.StartRecording(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := ctrl.PracticeAgain(); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy from PracticeAgain, got %v", err)
	}

	close(gate)
	<-done
}

func TestCloseDiscardsLateResults(t *testing.T) {
	gate := make(chan struct{})
	capture := newFakeCapture()
	transcriber := &fakeTranscriber{text: "late", gate: gate}
	generator := &fakeGenerator{result: feedback.Result{Score: 90}}
	ind := &fakeIndicator{}
	ctrl := NewController(coffeeShop(t), capture, transcriber, generator, staticToken("sk"), Options{Indicator: ind})

	_ = ctrl.StartRecording(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := ctrl.StopRecording(context.Background())
		errCh <- err
	}()

	waitFor(t, func() bool { return transcriber.calls.Load() == 1 })
	ctrl.Close(context.Background())
	close(gate)

	if err := <-errCh; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	snap := ctrl.Snapshot()
	if snap.Transcript != "" || snap.Feedback != nil {
		t.Fatalf("late result leaked into closed session: %+v", snap)
	}
	if generator.calls.Load() != 0 {
		t.Fatal("feedback must not run after close")
	}
	if ind.completeCues.Load() != 0 || ind.hides.Load() != 1 {
		t.Fatal("unexpected indicator activity after close")
	}
	if err := ctrl.StartRecording(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
}

func TestCloseAbortsActiveRecording(t *testing.T) {
	capture := newFakeCapture()
	ctrl := NewController(coffeeShop(t), capture, &fakeTranscriber{}, &fakeGenerator{}, staticToken("sk"), Options{})

	_ = ctrl.StartRecording(context.Background())
	ctrl.Close(context.Background())
	ctrl.Close(context.Background())

	if capture.aborts != 1 || capture.State() != fsm.StateIdle {
		t.Fatalf("expected one abort and idle capture, got %d / %s", capture.aborts, capture.State())
	}
}

func TestPracticeAgainResetsEverything(t *testing.T) {
	capture := newFakeCapture()
	ctrl := NewController(coffeeShop(t), capture, &fakeTranscriber{text: "hi"}, &fakeGenerator{result: feedback.Result{Score: 50}}, staticToken("sk"), Options{})

	_ = ctrl.StartRecording(context.Background())
	if _, err := ctrl.StopRecording(context.Background()); err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	if err := ctrl.PracticeAgain(); err != nil {
		t.Fatalf("PracticeAgain() error = %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.Elapsed != 0 || snap.Transcript != "" || snap.Feedback != nil || snap.Recording != fsm.StateIdle {
		t.Fatalf("expected reset snapshot, got %+v", snap)
	}
}

func TestHistoryFailureIsNotVisible(t *testing.T) {
	ctrl := NewController(coffeeShop(t), newFakeCapture(), &fakeTranscriber{text: "hi"}, &fakeGenerator{result: feedback.Result{Score: 40}}, staticToken("sk"), Options{
		History: RecordFunc(func(context.Context, history.Attempt) (history.Attempt, error) {
			return history.Attempt{}, errors.New("disk full")
		}),
	})

	_ = ctrl.StartRecording(context.Background())
	snap, err := ctrl.StopRecording(context.Background())
	if err != nil || snap.Error != "" || snap.Feedback == nil {
		t.Fatalf("history failure leaked: err=%v snap=%+v", err, snap)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
