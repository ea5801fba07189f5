package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/loykin/padwake/internal/input"
	"github.com/loykin/padwake/internal/metrics"
	"github.com/loykin/padwake/internal/server"
	"github.com/loykin/padwake/internal/supervisor"
	"github.com/loykin/padwake/internal/tls"
	"github.com/prometheus/client_golang/prometheus"
)

var errWakeFailed = errors.New("guest start was rejected by the control plane")

// cmdStatus prints whether the guest is running.
func cmdStatus(ctx context.Context, a *app, w io.Writer) error {
	state := "stopped"
	if a.guest.Running(ctx) {
		state = "running"
	}
	_, err := fmt.Fprintf(w, "guest %s: %s\n", a.cfg.GuestID, state)
	return err
}

// cmdWake sends one start request.
func cmdWake(ctx context.Context, a *app, w io.Writer) error {
	if !a.guest.Start(ctx) {
		return fmt.Errorf("guest %s: %w", a.cfg.GuestID, errWakeFailed)
	}
	_, err := fmt.Fprintf(w, "guest %s: start requested\n", a.cfg.GuestID)
	return err
}

// cmdDevices opens the input backend, collects connect events for wait and
// lists the controllers found.
func cmdDevices(ctx context.Context, open input.Opener, wait, poll time.Duration, w io.Writer) error {
	src, err := open()
	if err != nil {
		return fmt.Errorf("initialize controller input: %w", err)
	}
	defer func() { _ = src.Close() }()

	names := make(map[input.DeviceID]string)
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	tick := time.NewTicker(poll)
	defer tick.Stop()
	for done := false; !done; {
		for {
			ev, ok := src.Poll()
			if !ok {
				break
			}
			switch ev.Type {
			case input.EventConnected:
				names[ev.ID] = ev.Name
			case input.EventDisconnected:
				delete(names, ev.ID)
			}
		}
		select {
		case <-ctx.Done():
			done = true
		case <-deadline.C:
			done = true
		case <-tick.C:
		}
	}

	if len(names) == 0 {
		_, err = fmt.Fprintln(w, "no controllers found")
		return err
	}
	ids := make([]input.DeviceID, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", id, names[id]); err != nil {
			return err
		}
	}
	return nil
}

// runDaemon wires metrics and the status server around the supervisor and
// blocks until ctx is cancelled or the input backend fails.
func runDaemon(ctx context.Context, a *app, open input.Opener) error {
	cfg := a.cfg
	status := supervisor.NewStatus(cfg.GuestID)

	if cfg.Metrics.Enabled || cfg.Server.Listen != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			a.log.Warn("failed to register metrics", "error", err)
		}
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server error", "error", err)
			}
		}()
		a.log.Info("serving metrics", "listen", cfg.Metrics.Listen)
	}
	if cfg.Server.Listen != "" {
		tlsCfg, err := tls.Setup(cfg.TLSOptions())
		if err != nil {
			return fmt.Errorf("status server tls: %w", err)
		}
		srv := server.NewServer(cfg.Server.Listen, cfg.Server.BasePath, status, tlsCfg, a.log.With("component", "server"))
		defer func() { _ = srv.Close() }()
		a.log.Info("serving status", "listen", cfg.Server.Listen, "base_path", cfg.Server.BasePath, "tls", tlsCfg != nil)
	}

	sup := supervisor.New(supervisor.Config{
		RunningPollInterval: cfg.Supervisor.RunningPollInterval,
		Listener: supervisor.ListenerConfig{
			Trigger:      cfg.Button,
			PollInterval: cfg.Listener.PollInterval,
			CheckDue:     supervisor.EveryN(cfg.Listener.StatusCheckEvery),
		},
	}, a.guest, a.guest, open, status, a.log)

	a.log.Info("monitoring guest",
		"guest", cfg.GuestID,
		"status_command", a.guest.Describe(),
		"trigger", string(cfg.Button))
	err := sup.Run(ctx)
	a.log.Info("shutting down")
	return err
}
