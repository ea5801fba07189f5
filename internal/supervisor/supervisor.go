// Package supervisor alternates between waiting for the guest to stop and
// listening for the controller trigger that starts it again.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/padwake/internal/guest"
	"github.com/loykin/padwake/internal/input"
)

type Config struct {
	RunningPollInterval time.Duration
	Listener            ListenerConfig
}

// Supervisor owns the VM_RUNNING / VM_STOPPED state for one guest. Every
// decision re-queries the control plane; a failed query counts as stopped.
type Supervisor struct {
	cfg    Config
	guest  guest.StatusProvider
	waker  guest.Waker
	open   input.Opener
	status *Status
	log    *slog.Logger
	sleep  SleepFunc
}

func New(cfg Config, sp guest.StatusProvider, w guest.Waker, open input.Opener, st *Status, log *slog.Logger) *Supervisor {
	if st == nil {
		st = NewStatus("")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		cfg:    cfg,
		guest:  sp,
		waker:  w,
		open:   open,
		status: st,
		log:    log.With("component", "supervisor"),
		sleep:  sleepCtx,
	}
}

func (s *Supervisor) Status() *Status { return s.status }

// Run loops until ctx is done, which yields nil. The only error is a failure
// to open the input backend.
func (s *Supervisor) Run(ctx context.Context) error {
	running := s.query(ctx)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if running {
			s.status.setState(StateRunning)
			s.log.Info("guest is running, waiting for it to stop")
			if err := s.waitForStop(ctx); err != nil {
				return nil
			}
			s.log.Info("guest has stopped")
		}

		s.status.setState(StateStopped)
		s.log.Info("guest is stopped, starting controller listener")
		outcome, err := s.listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.log.Info("controller listener stopped", "reason", outcome.String())
		running = s.query(ctx)
	}
}

func (s *Supervisor) query(ctx context.Context) bool {
	running := s.guest.Running(ctx)
	s.status.observe(running)
	return running
}

func (s *Supervisor) waitForStop(ctx context.Context) error {
	for {
		if err := s.sleep(ctx, s.cfg.RunningPollInterval); err != nil {
			return err
		}
		if !s.query(ctx) {
			return nil
		}
	}
}

// listen holds the input backend only for the duration of one listener run
// so the device is free for passthrough once the guest starts.
func (s *Supervisor) listen(ctx context.Context) (Outcome, error) {
	src, err := s.open()
	if err != nil {
		return OutcomeCancelled, fmt.Errorf("initialize controller input: %w", err)
	}
	s.status.setListening(true)
	defer func() {
		if cerr := src.Close(); cerr != nil {
			s.log.Warn("closing controller input", "error", cerr)
		}
		s.status.setListening(false)
	}()

	l := NewListener(s.cfg.Listener, s.guest, s.waker, src, s.status, s.log.With("component", "listener"))
	l.sleep = s.sleep
	return l.Listen(ctx)
}
