package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/loykin/padwake/internal/config"
	"github.com/loykin/padwake/internal/guest"
)

// app holds what every command needs: validated config, a logger and the
// control plane client.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	closer io.Closer
	guest  *guest.Controller
}

// loadApp reads the config and applies flag overrides, which take
// precedence over both the file and the environment.
func loadApp(flags GlobalFlags, logFile string) (*app, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	fc := cfg.FileConfig
	if flags.GuestID != "" {
		fc.GuestID = flags.GuestID
	}
	if flags.LogLevel != "" {
		fc.Log.Level = flags.LogLevel
	}
	if logFile != "" {
		fc.Log.File = logFile
	}
	if cfg, err = config.New(fc); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, closer := cfg.Logger().NewSlogger()
	runner := guest.ExecRunner{Timeout: cfg.ControlPlane.Timeout, Env: cfg.CommandEnviron()}
	ctl := guest.NewController(guest.Config{
		ID:            cfg.GuestID,
		Command:       cfg.ControlPlane.Command,
		StatusVerb:    cfg.ControlPlane.StatusVerb,
		StartVerb:     cfg.ControlPlane.StartVerb,
		RunningMarker: cfg.ControlPlane.RunningMarker,
	}, runner, log)
	return &app{cfg: cfg, log: log, closer: closer, guest: ctl}, nil
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
