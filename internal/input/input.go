// Package input defines the controller event model and the sources that
// produce it.
package input

import (
	"fmt"
	"strings"
)

// DeviceID identifies a connected controller for as long as it stays
// connected.
type DeviceID int32

// Button uses the SDL game controller mapping names.
type Button string

const (
	ButtonA             Button = "a"
	ButtonB             Button = "b"
	ButtonX             Button = "x"
	ButtonY             Button = "y"
	ButtonBack          Button = "back"
	ButtonGuide         Button = "guide"
	ButtonStart         Button = "start"
	ButtonLeftStick     Button = "leftstick"
	ButtonRightStick    Button = "rightstick"
	ButtonLeftShoulder  Button = "leftshoulder"
	ButtonRightShoulder Button = "rightshoulder"
	ButtonDPadUp        Button = "dpup"
	ButtonDPadDown      Button = "dpdown"
	ButtonDPadLeft      Button = "dpleft"
	ButtonDPadRight     Button = "dpright"
	// analog triggers, reported as buttons once past the threshold
	ButtonLeftTrigger  Button = "lefttrigger"
	ButtonRightTrigger Button = "righttrigger"
)

var buttons = []Button{
	ButtonA, ButtonB, ButtonX, ButtonY, ButtonBack, ButtonGuide, ButtonStart,
	ButtonLeftStick, ButtonRightStick, ButtonLeftShoulder, ButtonRightShoulder,
	ButtonDPadUp, ButtonDPadDown, ButtonDPadLeft, ButtonDPadRight,
	ButtonLeftTrigger, ButtonRightTrigger,
}

// ParseButton accepts a mapping name, case-insensitively.
func ParseButton(s string) (Button, error) {
	b := Button(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range buttons {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown button %q", s)
}

type EventType uint8

const (
	EventOther EventType = iota
	EventConnected
	EventDisconnected
	EventButtonPressed
	EventButtonReleased
)

func (t EventType) String() string {
	switch t {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventButtonPressed:
		return "pressed"
	case EventButtonReleased:
		return "released"
	default:
		return "other"
	}
}

// Event is one controller notification. Name is set for EventConnected;
// Button and Value for the button events.
type Event struct {
	Type   EventType
	ID     DeviceID
	Name   string
	Button Button
	Value  float64
}

// Pressed reports whether ev is a press of b.
func (ev Event) Pressed(b Button) bool {
	return ev.Type == EventButtonPressed && ev.Button == b
}

// Source is a non-blocking controller event queue.
type Source interface {
	// Poll returns the next pending event, or false when none is queued.
	Poll() (Event, bool)
	// Close releases every device handle held by the source.
	Close() error
}

// Opener acquires a Source. It is called each time the listener starts so
// that device handles are only held while the guest is stopped.
type Opener func() (Source, error)
