package input

// TriggerTracker turns analog trigger positions into press and release
// events. A press is reported when the value rises to or above the threshold
// and a release when it falls back below it.
type TriggerTracker struct {
	threshold float64
	down      map[triggerKey]bool
}

type triggerKey struct {
	id DeviceID
	b  Button
}

func NewTriggerTracker(threshold float64) *TriggerTracker {
	return &TriggerTracker{threshold: threshold, down: make(map[triggerKey]bool)}
}

// Update records value (0..1) for trigger b on device id.
func (t *TriggerTracker) Update(id DeviceID, b Button, value float64) (Event, bool) {
	k := triggerKey{id: id, b: b}
	was := t.down[k]
	now := value >= t.threshold
	if was == now {
		return Event{}, false
	}
	t.down[k] = now
	typ := EventButtonReleased
	if now {
		typ = EventButtonPressed
	}
	return Event{Type: typ, ID: id, Button: b, Value: value}, true
}

// Forget drops the state of a disconnected device.
func (t *TriggerTracker) Forget(id DeviceID) {
	for k := range t.down {
		if k.id == id {
			delete(t.down, k)
		}
	}
}
