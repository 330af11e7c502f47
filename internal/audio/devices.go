// Package audio discovers Pulse input sources, picks the practice microphone, and captures PCM.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const clientName = "speechcraft"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
	// Monitor marks a loopback of an output sink rather than a microphone.
	Monitor bool
}

// Selection is the source to record from. Warning is set when a fallback was used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns every Pulse source with default, availability, and mute state.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, deviceFromInfo(info, defaultSource.ID()))
	}
	return devices, nil
}

func deviceFromInfo(info *pulseproto.GetSourceInfoReply, defaultID string) Device {
	return Device{
		ID:          info.SourceName,
		Description: info.Device,
		State:       sourceStateString(info.State),
		Available:   sourceAvailable(info),
		Muted:       info.Mute,
		Default:     info.SourceName == defaultID,
		Monitor:     strings.HasSuffix(info.SourceName, ".monitor"),
	}
}

// SelectDevice applies the audio.input and audio.fallback preferences to the live source list.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// preference is a configured device search term. Empty and "default" mean the server default.
type preference string

func newPreference(raw string) preference {
	return preference(strings.ToLower(strings.TrimSpace(raw)))
}

func (p preference) isDefault() bool {
	return p == "" || p == "default"
}

// resolve finds the device p names. Monitor sources only match terms that ask for them.
func (p preference) resolve(devices []Device) (Device, error) {
	if p.isDefault() {
		for _, d := range devices {
			if d.Default {
				return d, nil
			}
		}
		return Device{}, errors.New("default audio source is unavailable")
	}

	wantMonitor := strings.Contains(string(p), "monitor")
	for _, d := range devices {
		if d.Monitor && !wantMonitor {
			continue
		}
		if deviceMatches(d, string(p)) {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%q did not match any device", string(p))
}

// unusable names why d cannot record, or returns "".
func unusable(d Device) string {
	switch {
	case d.Muted:
		return "muted"
	case !d.Available:
		return "unavailable"
	default:
		return ""
	}
}

func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	primaryPref := newPreference(input)
	primary, err := primaryPref.resolve(devices)
	if err != nil {
		if primaryPref.isDefault() {
			return Selection{}, err
		}
		return Selection{}, fmt.Errorf("audio.input %w", err)
	}

	reason := unusable(primary)
	if reason == "" {
		return Selection{Device: primary}, nil
	}

	fallbackPref := newPreference(fallback)
	backup, err := fallbackPref.resolve(devices)
	if err != nil {
		if fallbackPref.isDefault() {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: %w", primary.ID, reason, err)
		}
		return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, reason, string(fallbackPref))
	}
	if why := unusable(backup); why != "" {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", backup.ID, why)
	}

	return Selection{
		Device:   backup,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, backup.ID),
		Fallback: backup.ID != primary.ID,
	}, nil
}

// deviceMatches reports whether term is a substring of the device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

func newClient() (*pulse.Client, error) {
	return pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable reads the active port's availability (unknown=0, no=1, yes=2).
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
