// Package ipc lets a second speechcraft process query or stop the active practice session
// over a unix socket, one JSON line per request and response.
package ipc

const (
	CommandStatus = "status"
	CommandStop   = "stop"
)

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK       bool   `json:"ok"`
	State    string `json:"state,omitempty"`
	Scenario string `json:"scenario,omitempty"`
	Elapsed  int    `json:"elapsed_s,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}
