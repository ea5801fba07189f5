package supervisor

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// fakeGuest scripts the control plane. Once a script runs out the last
// value repeats.
type fakeGuest struct {
	running      []bool
	runningCalls int
	starts       []bool
	startCalls   int
}

func next(script []bool, i int) bool {
	if len(script) == 0 {
		return false
	}
	if i < len(script) {
		return script[i]
	}
	return script[len(script)-1]
}

func (g *fakeGuest) Running(context.Context) bool {
	v := next(g.running, g.runningCalls)
	g.runningCalls++
	return v
}

func (g *fakeGuest) Start(context.Context) bool {
	v := next(g.starts, g.startCalls)
	g.startCalls++
	return v
}

// sleeper records requested sleeps without sleeping and cancels the
// context on call number cancelAt.
type sleeper struct {
	calls    []time.Duration
	cancelAt int
	cancel   context.CancelFunc
}

func (s *sleeper) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	if len(s.calls) == s.cancelAt {
		s.cancel()
	}
	return ctx.Err()
}

func newSleeper(cancelAt int) (*sleeper, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &sleeper{cancelAt: cancelAt, cancel: cancel}, ctx
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
