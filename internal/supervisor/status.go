package supervisor

import (
	"sort"
	"sync"
	"time"

	"github.com/loykin/padwake/internal/input"
	"github.com/loykin/padwake/internal/metrics"
)

type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "vm_running"
	StateStopped  State = "vm_stopped"
)

var allStates = []string{string(StateStarting), string(StateRunning), string(StateStopped)}

// Controller is a connected gamepad as seen by the listener.
type Controller struct {
	ID   input.DeviceID `json:"id"`
	Name string         `json:"name"`
}

// Snapshot is a point-in-time copy of Status. It is informational only; the
// supervisor never makes decisions from it.
type Snapshot struct {
	GuestID      string       `json:"guest_id"`
	State        State        `json:"state"`
	Since        time.Time    `json:"since"`
	LastRunning  bool         `json:"last_running"`
	LastCheck    time.Time    `json:"last_check"`
	Listening    bool         `json:"listening"`
	Controllers  []Controller `json:"controllers"`
	Wakes        int          `json:"wakes"`
	FailedWakes  int          `json:"failed_wakes"`
	StatusChecks int          `json:"status_checks"`
}

// Status is written by the supervisor goroutine and read by the HTTP
// server.
type Status struct {
	mu   sync.RWMutex
	snap Snapshot
	pads map[input.DeviceID]string
	now  func() time.Time
}

func NewStatus(guestID string) *Status {
	s := &Status{pads: make(map[input.DeviceID]string), now: time.Now}
	s.snap = Snapshot{GuestID: guestID, State: StateStarting, Since: s.now()}
	return s
}

func (s *Status) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.Controllers = make([]Controller, 0, len(s.pads))
	for id, name := range s.pads {
		out.Controllers = append(out.Controllers, Controller{ID: id, Name: name})
	}
	sort.Slice(out.Controllers, func(i, j int) bool { return out.Controllers[i].ID < out.Controllers[j].ID })
	return out
}

func (s *Status) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.State != st {
		s.snap.State = st
		s.snap.Since = s.now()
	}
	metrics.SetState(string(st), allStates...)
}

func (s *Status) observe(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastRunning = running
	s.snap.LastCheck = s.now()
	s.snap.StatusChecks++
}

func (s *Status) setListening(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Listening = on
	if !on {
		// handles are released with the source
		s.pads = make(map[input.DeviceID]string)
	}
}

func (s *Status) connected(id input.DeviceID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pads[id] = name
}

func (s *Status) disconnected(id input.DeviceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pads, id)
}

func (s *Status) woke(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.snap.Wakes++
	} else {
		s.snap.FailedWakes++
	}
}
