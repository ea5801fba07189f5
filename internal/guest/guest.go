// Package guest queries and starts the managed virtual machine through the
// virtualization control plane CLI.
package guest

import (
	"context"
	"log/slog"
	"strings"

	"github.com/loykin/padwake/internal/metrics"
)

// StatusProvider answers whether the guest is running. Failures count as
// not running.
type StatusProvider interface {
	Running(ctx context.Context) bool
}

// Waker asks the control plane to boot the guest and reports whether the
// request was accepted.
type Waker interface {
	Start(ctx context.Context) bool
}

// Config describes the control plane invocation for one guest.
type Config struct {
	ID            string
	Command       []string // argv prefix, e.g. ["qm"] or ["ssh", "root@pve", "qm"]
	StatusVerb    string
	StartVerb     string
	RunningMarker string
}

// Controller implements StatusProvider and Waker on top of a Runner.
type Controller struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
}

func NewController(cfg Config, runner Runner, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		runner: runner,
		log:    log.With("component", "guest", "guest", cfg.ID),
	}
}

func (c *Controller) ID() string { return c.cfg.ID }

// Describe returns the status command line.
func (c *Controller) Describe() string {
	name, args := c.argv(c.cfg.StatusVerb)
	return strings.Join(append([]string{name}, args...), " ")
}

func (c *Controller) argv(verb string) (string, []string) {
	args := make([]string, 0, len(c.cfg.Command)+1)
	args = append(args, c.cfg.Command[1:]...)
	args = append(args, verb, c.cfg.ID)
	return c.cfg.Command[0], args
}

// Running is true only when the status command exits zero and its stdout
// contains the running marker.
func (c *Controller) Running(ctx context.Context) bool {
	name, args := c.argv(c.cfg.StatusVerb)
	res, err := c.runner.Run(ctx, name, args...)
	if err != nil {
		c.log.Warn("status query failed", "error", err)
		metrics.IncStatusCheck(metrics.ResultError)
		return false
	}
	if res.ExitCode != 0 {
		c.log.Debug("status command exited non-zero",
			"exit_code", res.ExitCode,
			"stderr", strings.TrimSpace(string(res.Stderr)))
		metrics.IncStatusCheck(metrics.ResultError)
		return false
	}
	if strings.Contains(string(res.Stdout), c.cfg.RunningMarker) {
		metrics.IncStatusCheck(metrics.ResultRunning)
		return true
	}
	metrics.IncStatusCheck(metrics.ResultStopped)
	return false
}

// Start runs the start command. It returns once the control plane accepted
// or rejected the request; it does not wait for the guest to boot.
func (c *Controller) Start(ctx context.Context) bool {
	name, args := c.argv(c.cfg.StartVerb)
	res, err := c.runner.Run(ctx, name, args...)
	if err != nil {
		c.log.Error("failed to start guest", "error", err)
		metrics.IncWake(metrics.ResultFailure)
		return false
	}
	if res.ExitCode != 0 {
		c.log.Error("failed to start guest",
			"exit_code", res.ExitCode,
			"stderr", strings.TrimSpace(string(res.Stderr)))
		metrics.IncWake(metrics.ResultFailure)
		return false
	}
	attrs := []any{}
	if out := strings.TrimSpace(string(res.Stdout)); out != "" {
		attrs = append(attrs, "output", out)
	}
	c.log.Info("guest started", attrs...)
	metrics.IncWake(metrics.ResultSuccess)
	return true
}
