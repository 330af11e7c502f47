// Package fsm defines the recording session state machine.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateRecording            State = "recording"
	StateStopping             State = "stopping"
	StateError                State = "error"
)

const (
	EventStart    Event = "start"
	EventGranted  Event = "granted"
	EventDenied   Event = "denied"
	EventStop     Event = "stop"
	EventCaptured Event = "captured"
	EventAbort    Event = "abort"
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

type edge struct {
	from State
	on   Event
}

var table = map[edge]State{
	{StateIdle, EventStart}:                   StateRequestingPermission,
	{StateRequestingPermission, EventGranted}: StateRecording,
	{StateRequestingPermission, EventDenied}:  StateError,
	{StateRecording, EventStop}:               StateStopping,
	{StateStopping, EventCaptured}:            StateIdle,
	{StateError, EventReset}:                  StateIdle,
}

var known = map[State]struct{}{
	StateIdle:                 {},
	StateRequestingPermission: {},
	StateRecording:            {},
	StateStopping:             {},
	StateError:                {},
}

// Transition returns the state reached from current on event. Fail and Abort
// are accepted from every known state; everything else follows the table.
func Transition(current State, event Event) (State, error) {
	if _, ok := known[current]; !ok {
		if event == EventFail {
			return StateError, nil
		}
		return current, fmt.Errorf("unknown state %q", current)
	}

	switch event {
	case EventFail:
		return StateError, nil
	case EventAbort:
		return StateIdle, nil
	}

	if next, ok := table[edge{current, event}]; ok {
		return next, nil
	}
	return current, fmt.Errorf("invalid transition: %s on %s", current, event)
}
