package input

import "testing"

func TestParseButton(t *testing.T) {
	b, err := ParseButton(" RightTrigger ")
	if err != nil || b != ButtonRightTrigger {
		t.Fatalf("ParseButton = %q, %v", b, err)
	}
	if _, err := ParseButton("rt2"); err == nil {
		t.Fatalf("expected error for unknown button")
	}
}

func TestEventPressed(t *testing.T) {
	press := Event{Type: EventButtonPressed, Button: ButtonRightTrigger}
	if !press.Pressed(ButtonRightTrigger) {
		t.Fatalf("expected press to match")
	}
	if press.Pressed(ButtonA) {
		t.Fatalf("other button must not match")
	}
	release := Event{Type: EventButtonReleased, Button: ButtonRightTrigger}
	if release.Pressed(ButtonRightTrigger) {
		t.Fatalf("release must not count as press")
	}
}

func TestTriggerTrackerCrossings(t *testing.T) {
	tr := NewTriggerTracker(0.75)
	steps := []struct {
		v    float64
		emit bool
		typ  EventType
	}{
		{0.10, false, 0},
		{0.50, false, 0},
		{0.75, true, EventButtonPressed},
		{0.90, false, 0}, // still held
		{1.00, false, 0},
		{0.74, true, EventButtonReleased},
		{0.00, false, 0},
		{0.80, true, EventButtonPressed},
	}
	for i, s := range steps {
		ev, ok := tr.Update(1, ButtonRightTrigger, s.v)
		if ok != s.emit {
			t.Fatalf("step %d (%v): emit=%v want %v", i, s.v, ok, s.emit)
		}
		if ok && (ev.Type != s.typ || ev.Button != ButtonRightTrigger || ev.ID != 1) {
			t.Fatalf("step %d: unexpected event %+v", i, ev)
		}
	}
}

func TestTriggerTrackerPerDevice(t *testing.T) {
	tr := NewTriggerTracker(0.5)
	if _, ok := tr.Update(1, ButtonRightTrigger, 1); !ok {
		t.Fatalf("device 1 press expected")
	}
	if _, ok := tr.Update(2, ButtonRightTrigger, 1); !ok {
		t.Fatalf("device 2 has its own state")
	}
	if _, ok := tr.Update(1, ButtonLeftTrigger, 1); !ok {
		t.Fatalf("left trigger has its own state")
	}
	tr.Forget(1)
	if _, ok := tr.Update(1, ButtonRightTrigger, 1); !ok {
		t.Fatalf("forgotten device should press again")
	}
	if _, ok := tr.Update(2, ButtonRightTrigger, 1); ok {
		t.Fatalf("device 2 state must survive Forget(1)")
	}
}

func TestScriptedBatches(t *testing.T) {
	a := Event{Type: EventConnected, ID: 1, Name: "pad"}
	b := Event{Type: EventButtonPressed, ID: 1, Button: ButtonA}
	c := Event{Type: EventDisconnected, ID: 1}
	s := NewScripted([]Event{a, b}, nil, []Event{c})

	drain := func() []Event {
		var out []Event
		for {
			ev, ok := s.Poll()
			if !ok {
				return out
			}
			out = append(out, ev)
		}
	}
	if got := drain(); len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("first drain: %+v", got)
	}
	if got := drain(); len(got) != 0 {
		t.Fatalf("second drain should be idle: %+v", got)
	}
	if got := drain(); len(got) != 1 || got[0] != c {
		t.Fatalf("third drain: %+v", got)
	}
	if got := drain(); len(got) != 0 {
		t.Fatalf("exhausted source must stay empty: %+v", got)
	}
	s.Push(a)
	if got := drain(); len(got) != 1 {
		t.Fatalf("pushed batch not delivered: %+v", got)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %d", s.Pending())
	}
	_ = s.Close()
	if !s.Closed() {
		t.Fatalf("Close not recorded")
	}
}
