package input

import "sync"

// Scripted is a Source fed from a fixed queue. Events are grouped in
// batches: one drain (Poll until false) consumes exactly one batch, so a
// test controls which events are visible in each listener iteration.
type Scripted struct {
	mu      sync.Mutex
	batches [][]Event
	ended   bool // current batch reported empty
	polls   int
	closed  bool
}

func NewScripted(batches ...[]Event) *Scripted {
	return &Scripted{batches: batches}
}

// Push appends a batch.
func (s *Scripted) Push(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, events)
}

func (s *Scripted) Poll() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.ended {
		s.ended = false
		if len(s.batches) > 0 {
			s.batches = s.batches[1:]
		}
	}
	if len(s.batches) == 0 {
		return Event{}, false
	}
	if len(s.batches[0]) == 0 {
		s.ended = true
		return Event{}, false
	}
	ev := s.batches[0][0]
	s.batches[0] = s.batches[0][1:]
	return ev, true
}

// Pending reports how many events have not been polled yet.
func (s *Scripted) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func (s *Scripted) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Scripted) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
