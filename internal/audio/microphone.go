package audio

import (
	"context"
	"log/slog"

	"github.com/rbright/speechcraft/internal/recording"
)

// Microphone opens Pulse capture streams from the configured input preferences.
type Microphone struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

// Open selects a device and starts capture. The stream stops when ctx ends.
func (m Microphone) Open(ctx context.Context) (recording.Stream, error) {
	selection, err := SelectDevice(ctx, m.Input, m.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && m.Logger != nil {
		m.Logger.Warn(selection.Warning)
	}

	capture, err := StartCapture(ctx, selection.Device)
	if err != nil {
		return nil, err
	}
	if m.Logger != nil {
		m.Logger.Info("microphone opened", "device", Describe(selection.Device), "fallback", selection.Fallback)
	}
	return capture, nil
}

// Describe formats device metadata for logs and terminal output.
func Describe(device Device) string {
	description := device.Description
	id := device.ID
	switch {
	case description == "":
		return id
	case id == "":
		return description
	default:
		return description + " (" + id + ")"
	}
}
