package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/padwake/internal/guest"
	"github.com/loykin/padwake/internal/input"
	"github.com/loykin/padwake/internal/metrics"
)

// CheckDue is told how many iterations ran since the last guest status
// check and decides whether another one is due.
type CheckDue func(iterations int) bool

// EveryN schedules a check every n iterations.
func EveryN(n int) CheckDue {
	return func(iterations int) bool { return iterations >= n }
}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcome says why Listen returned.
type Outcome int

const (
	OutcomeCancelled Outcome = iota
	// OutcomeWoken: the trigger was pressed and the guest start was accepted.
	OutcomeWoken
	// OutcomeGuestRunning: a periodic check found the guest already running.
	OutcomeGuestRunning
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWoken:
		return "woken"
	case OutcomeGuestRunning:
		return "guest_running"
	default:
		return "cancelled"
	}
}

type ListenerConfig struct {
	Trigger      input.Button
	PollInterval time.Duration
	CheckDue     CheckDue
}

// Listener consumes controller events while the guest is stopped.
type Listener struct {
	cfg    ListenerConfig
	guest  guest.StatusProvider
	waker  guest.Waker
	src    input.Source
	status *Status
	log    *slog.Logger
	sleep  SleepFunc
}

func NewListener(cfg ListenerConfig, sp guest.StatusProvider, w guest.Waker, src input.Source, st *Status, log *slog.Logger) *Listener {
	if cfg.CheckDue == nil {
		cfg.CheckDue = EveryN(100)
	}
	if st == nil {
		st = NewStatus("")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Listener{cfg: cfg, guest: sp, waker: w, src: src, status: st, log: log, sleep: sleepCtx}
}

// Listen runs until the guest is woken, the guest is found running, or ctx
// is done. Only the last case returns an error.
func (l *Listener) Listen(ctx context.Context) (Outcome, error) {
	iterations := 0
	for {
		if err := ctx.Err(); err != nil {
			return OutcomeCancelled, err
		}
		iterations++
		metrics.IncIteration()
		if l.cfg.CheckDue(iterations) {
			iterations = 0
			running := l.guest.Running(ctx)
			l.status.observe(running)
			if running {
				l.log.Info("guest is now running, stopping listener to allow USB passthrough")
				return OutcomeGuestRunning, nil
			}
		}

		for {
			ev, ok := l.src.Poll()
			if !ok {
				break
			}
			if l.handle(ctx, ev) {
				return OutcomeWoken, nil
			}
		}

		if err := l.sleep(ctx, l.cfg.PollInterval); err != nil {
			return OutcomeCancelled, err
		}
	}
}

// handle reports whether the guest was started.
func (l *Listener) handle(ctx context.Context, ev input.Event) bool {
	metrics.IncControllerEvent(ev.Type.String())
	switch ev.Type {
	case input.EventConnected:
		l.status.connected(ev.ID, ev.Name)
		l.log.Info("gamepad connected", "name", ev.Name, "id", ev.ID)
	case input.EventDisconnected:
		l.status.disconnected(ev.ID)
		l.log.Info("gamepad disconnected", "id", ev.ID)
	case input.EventButtonPressed:
		if ev.Button != l.cfg.Trigger {
			return false
		}
		l.log.Info("trigger pressed, attempting to wake guest", "button", ev.Button, "id", ev.ID)
		ok := l.waker.Start(ctx)
		l.status.woke(ok)
		if !ok {
			l.log.Warn("wake failed, press the trigger again to retry")
			return false
		}
		l.log.Info("guest start accepted, stopping listener for USB passthrough")
		return true
	}
	return false
}
