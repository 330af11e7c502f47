package app

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rbright/speechcraft/internal/ipc"
	"github.com/rbright/speechcraft/internal/recording"
	"github.com/rbright/speechcraft/internal/scenario"
	"github.com/rbright/speechcraft/internal/session"
	"github.com/stretchr/testify/require"
)

func TestStatusIdleWithoutSession(t *testing.T) {
	paths := setupRunnerEnv(t)
	runner, stdout, stderr := newTestRunner(t, "")

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestStopWithoutSessionFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	runner, _, stderr := newTestRunner(t, "")

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no active practice session")
}

func TestPracticeRemoteStopFromSecondProcess(t *testing.T) {
	paths := setupRunnerEnv(t)
	server, calls := newRemoteServer(t)
	writeConfig(t, paths, server.URL)
	t.Setenv(TokenEnv, "sk-test-token")

	stdinR, stdinW := io.Pipe()
	practice, practiceOut, practiceErr := newTestRunner(t, "")
	practice.Stdin = stdinR
	practice.HTTPClient = server.Client()

	exitCh := make(chan int, 1)
	go func() {
		exitCh <- practice.Execute(context.Background(), []string{"--config", paths.configPath, "practice", "--scenario", "1"})
	}()

	_, err := stdinW.Write([]byte("\n"))
	require.NoError(t, err)

	socketPath, err := ipc.RuntimeSocketPath()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		resp, handled, err := ipc.Forward(context.Background(), socketPath, ipc.CommandStatus, controlSendTimeout)
		return handled && err == nil && resp.State == "recording"
	}, 5*time.Second, 10*time.Millisecond)

	status, statusOut, _ := newTestRunner(t, "")
	require.Equal(t, 0, status.Execute(context.Background(), []string{"status"}))
	require.Equal(t, "recording 0:00 The Coffee Shop Dilemma\n", statusOut.String())

	second, _, secondErr := newTestRunner(t, "")
	require.Equal(t, 1, second.Execute(context.Background(), []string{"--config", paths.configPath, "practice", "--scenario", "2"}))
	require.Contains(t, secondErr.String(), "already running")

	stop, stopOut, stopErr := newTestRunner(t, "")
	require.Equal(t, 0, stop.Execute(context.Background(), []string{"stop"}), stopErr.String())
	require.Equal(t, "stopping\n", stopOut.String())

	require.Eventually(t, func() bool { return calls.feedback.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	_, err = stdinW.Write([]byte("n\n"))
	require.NoError(t, err)
	require.NoError(t, stdinW.Close())

	select {
	case code := <-exitCh:
		require.Equal(t, 0, code, practiceErr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("practice did not exit")
	}

	out := practiceOut.String()
	require.Contains(t, out, "Stopped remotely.")
	require.Contains(t, out, "Score: 82/100")
	require.Equal(t, 1, strings.Count(out, "Score:"))
}

func TestControlHandleRejectsStopWhenIdle(t *testing.T) {
	c := &control{ctl: newIdleController(), stop: make(chan struct{}, 1)}

	resp := c.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, resp.OK)
	require.Equal(t, "not recording", resp.Error)
	require.Equal(t, "idle", resp.State)
	require.Empty(t, c.stop)

	resp = c.Handle(context.Background(), ipc.Request{Command: "toggle"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "unsupported command")
}

func newIdleController() *session.Controller {
	scn, _ := scenario.Lookup("1")
	capture := recording.NewController(&fakeMic{}, recording.Options{NewTicker: (&manualClock{}).newTicker})
	return session.NewController(scn, capture, nil, nil, nil, session.Options{})
}
