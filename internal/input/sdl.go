//go:build cgo

package input

import (
	"fmt"
	"runtime"

	"github.com/veandco/go-sdl2/sdl"
)

const axisMax = 32767

var sdlButtons = map[sdl.GameControllerButton]Button{
	sdl.CONTROLLER_BUTTON_A:             ButtonA,
	sdl.CONTROLLER_BUTTON_B:             ButtonB,
	sdl.CONTROLLER_BUTTON_X:             ButtonX,
	sdl.CONTROLLER_BUTTON_Y:             ButtonY,
	sdl.CONTROLLER_BUTTON_BACK:          ButtonBack,
	sdl.CONTROLLER_BUTTON_GUIDE:         ButtonGuide,
	sdl.CONTROLLER_BUTTON_START:         ButtonStart,
	sdl.CONTROLLER_BUTTON_LEFTSTICK:     ButtonLeftStick,
	sdl.CONTROLLER_BUTTON_RIGHTSTICK:    ButtonRightStick,
	sdl.CONTROLLER_BUTTON_LEFTSHOULDER:  ButtonLeftShoulder,
	sdl.CONTROLLER_BUTTON_RIGHTSHOULDER: ButtonRightShoulder,
	sdl.CONTROLLER_BUTTON_DPAD_UP:       ButtonDPadUp,
	sdl.CONTROLLER_BUTTON_DPAD_DOWN:     ButtonDPadDown,
	sdl.CONTROLLER_BUTTON_DPAD_LEFT:     ButtonDPadLeft,
	sdl.CONTROLLER_BUTTON_DPAD_RIGHT:    ButtonDPadRight,
}

var sdlTriggers = map[sdl.GameControllerAxis]Button{
	sdl.CONTROLLER_AXIS_TRIGGERLEFT:  ButtonLeftTrigger,
	sdl.CONTROLLER_AXIS_TRIGGERRIGHT: ButtonRightTrigger,
}

// SDL reads controllers through the SDL2 game controller API. Controllers
// already plugged in when the source opens are reported as connect events on
// the first drain.
//
// SDL must be driven from one OS thread; the caller's goroutine is locked to
// its thread by OpenSDL and every later call must come from that goroutine.
type SDL struct {
	pads     map[sdl.JoystickID]*sdl.GameController
	triggers *TriggerTracker
}

// OpenSDL initialises the SDL game controller subsystem.
func OpenSDL(threshold float64) (*SDL, error) {
	runtime.LockOSThread()

	// the daemon has no window, so it never has focus
	sdl.SetHint(sdl.HINT_JOYSTICK_ALLOW_BACKGROUND_EVENTS, "1")
	if err := sdl.Init(sdl.INIT_GAMECONTROLLER); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("sdl: %w", err)
	}
	return &SDL{
		pads:     make(map[sdl.JoystickID]*sdl.GameController),
		triggers: NewTriggerTracker(threshold),
	}, nil
}

// SDLOpener returns an Opener for OpenSDL.
func SDLOpener(threshold float64) Opener {
	return func() (Source, error) {
		s, err := OpenSDL(threshold)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func (s *SDL) Poll() (Event, bool) {
	for {
		raw := sdl.PollEvent()
		if raw == nil {
			return Event{}, false
		}
		if ev, ok := s.translate(raw); ok {
			return ev, true
		}
	}
}

// translate maps one SDL event. Trigger motion that does not cross the
// threshold produces nothing.
func (s *SDL) translate(raw sdl.Event) (Event, bool) {
	switch e := raw.(type) {
	case *sdl.ControllerDeviceEvent:
		switch e.Type {
		case sdl.CONTROLLERDEVICEADDED:
			// Which is a device index here, an instance id everywhere else
			pad := sdl.GameControllerOpen(int(e.Which))
			if pad == nil {
				return Event{}, false
			}
			id := pad.Joystick().InstanceID()
			s.pads[id] = pad
			return Event{Type: EventConnected, ID: DeviceID(id), Name: pad.Name()}, true
		case sdl.CONTROLLERDEVICEREMOVED:
			if pad, ok := s.pads[e.Which]; ok {
				pad.Close()
				delete(s.pads, e.Which)
			}
			s.triggers.Forget(DeviceID(e.Which))
			return Event{Type: EventDisconnected, ID: DeviceID(e.Which)}, true
		}
		return Event{Type: EventOther, ID: DeviceID(e.Which)}, true

	case *sdl.ControllerButtonEvent:
		b, ok := sdlButtons[sdl.GameControllerButton(e.Button)]
		if !ok {
			return Event{Type: EventOther, ID: DeviceID(e.Which)}, true
		}
		if e.State == sdl.PRESSED {
			return Event{Type: EventButtonPressed, ID: DeviceID(e.Which), Button: b, Value: 1}, true
		}
		return Event{Type: EventButtonReleased, ID: DeviceID(e.Which), Button: b}, true

	case *sdl.ControllerAxisEvent:
		b, ok := sdlTriggers[sdl.GameControllerAxis(e.Axis)]
		if !ok {
			return Event{Type: EventOther, ID: DeviceID(e.Which)}, true
		}
		return s.triggers.Update(DeviceID(e.Which), b, float64(e.Value)/axisMax)
	}
	return Event{Type: EventOther}, true
}

// Close closes every open controller, shuts SDL down and releases the OS
// thread locked by OpenSDL.
func (s *SDL) Close() error {
	for id, pad := range s.pads {
		pad.Close()
		delete(s.pads, id)
	}
	sdl.Quit()
	runtime.UnlockOSThread()
	return nil
}
