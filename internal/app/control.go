package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/speechcraft/internal/cli"
	"github.com/rbright/speechcraft/internal/fsm"
	"github.com/rbright/speechcraft/internal/ipc"
	"github.com/rbright/speechcraft/internal/recording"
	"github.com/rbright/speechcraft/internal/session"
)

const (
	controlProbeTimeout = 180 * time.Millisecond
	controlSendTimeout  = 220 * time.Millisecond
	controlRetries      = 8
)

// control answers `speechcraft status` and `speechcraft stop` for the running practice loop.
type control struct {
	ctl  *session.Controller
	stop chan struct{}
}

func (c *control) Handle(_ context.Context, req ipc.Request) ipc.Response {
	snap := c.ctl.Snapshot()
	state := stateName(snap)

	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: state, Scenario: c.ctl.Scenario().Title, Elapsed: snap.Elapsed}
	case ipc.CommandStop:
		if snap.Recording != fsm.StateRecording {
			return ipc.Response{State: state, Error: "not recording"}
		}
		select {
		case c.stop <- struct{}{}:
		default:
		}
		return ipc.Response{OK: true, State: state, Message: "stopping"}
	default:
		return ipc.Response{State: state, Error: fmt.Sprintf("unsupported command %q", req.Command)}
	}
}

func stateName(snap session.Snapshot) string {
	if snap.Processing {
		return "processing"
	}
	return string(snap.Recording)
}

// startControl serves the control socket while ctl is alive.
//
// The returned channel fires on remote stop requests; it is nil when the
// socket is unavailable, which leaves practice driven by stdin alone.
func startControl(ctx context.Context, ctl *session.Controller, logger *slog.Logger) (<-chan struct{}, func(), error) {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		logger.Debug("control socket disabled", "error", err.Error())
		return nil, func() {}, nil
	}

	listener, err := ipc.Acquire(ctx, socketPath, controlProbeTimeout, controlRetries)
	if errors.Is(err, ipc.ErrAlreadyRunning) {
		return nil, nil, err
	}
	if err != nil {
		logger.Warn("control socket disabled", "path", socketPath, "error", err.Error())
		return nil, func() {}, nil
	}

	c := &control{ctl: ctl, stop: make(chan struct{}, 1)}
	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := ipc.Serve(serveCtx, listener, c); err != nil {
			logger.Warn("control socket failed", "error", err.Error())
		}
	}()

	logger.Debug("control socket listening", "path", socketPath)
	return c.stop, func() {
		cancel()
		<-done
	}, nil
}

// Status prints the running session state, or idle when none is running.
func (r *Runner) Status(ctx context.Context, _ cli.Globals) error {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return nil
	}

	resp, handled, err := ipc.Forward(ctx, socketPath, ipc.CommandStatus, controlSendTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return nil
	}
	if err != nil {
		return err
	}

	if resp.State == "" {
		resp.State = "idle"
	}
	if resp.Scenario == "" {
		fmt.Fprintln(r.Stdout, resp.State)
		return nil
	}
	fmt.Fprintf(r.Stdout, "%s %s %s\n", resp.State, recording.FormatElapsed(resp.Elapsed), resp.Scenario)
	return nil
}

// Stop asks the running session to end its recording.
func (r *Runner) Stop(ctx context.Context, _ cli.Globals) error {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return err
	}

	resp, handled, err := ipc.Forward(ctx, socketPath, ipc.CommandStop, controlSendTimeout)
	if !handled {
		return errors.New("no active practice session")
	}
	if err != nil {
		return err
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return nil
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
