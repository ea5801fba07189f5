package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/padwake/internal/input"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := buildRoot(nil)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the command tree. A nil opener selects the SDL backend
// with the configured trigger threshold.
func buildRoot(open input.Opener) *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	devicesFlags := &DevicesFlags{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(globalFlags, runFlags, open),
		createStatusCommand(globalFlags),
		createWakeCommand(globalFlags),
		createDevicesCommand(globalFlags, devicesFlags, open),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:     "padwake",
		Short:   "Start a virtual machine from a gamepad button",
		Version: version,
		Long: `padwake shares one USB gamepad between a Proxmox host and a guest that
receives it through USB passthrough. While the guest is stopped padwake
listens for the trigger button and starts the guest; while the guest runs
padwake releases the controller and waits for the guest to stop.

Examples:
  padwake run                          # guest from PROXMOX_VM_ID (default 100)
  padwake run --guest-id=105 --config=/etc/padwake.toml
  padwake status
  padwake devices --wait=2s`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().StringVar(&flags.GuestID, "guest-id", "", "guest identifier, overrides PROXMOX_VM_ID and the config file")
	root.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	return root
}

func createRunCommand(globalFlags *GlobalFlags, runFlags *RunFlags, open input.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the wake-on-gamepad daemon",
		Long: `Run the supervisor loop until interrupted. The process exits non-zero only
when the controller input subsystem cannot be initialised.

Examples:
  padwake run
  padwake run --daemonize --pidfile=/run/padwake.pid --logfile=/var/log/padwake.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runFlags.Daemonize {
				return daemonize(runFlags.PidFile, runFlags.LogFile)
			}
			a, err := loadApp(*globalFlags, runFlags.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if runFlags.PidFile != "" {
				if err := writePidFile(runFlags.PidFile, os.Getpid()); err != nil {
					return fmt.Errorf("failed to write PID file: %w", err)
				}
				defer func() { _ = removePidFile(runFlags.PidFile) }()
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDaemon(ctx, a, openerFor(a, open))
		},
	}

	cmd.Flags().BoolVar(&runFlags.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&runFlags.PidFile, "pidfile", "", "write the daemon PID to this file")
	cmd.Flags().StringVar(&runFlags.LogFile, "logfile", "", "also log to this file, rotated")
	return cmd
}

func createStatusCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Query whether the guest is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*globalFlags, "")
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return cmdStatus(commandContext(cmd), a, cmd.OutOrStdout())
		},
	}
}

func createWakeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "wake",
		Short: "Ask the control plane to start the guest",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*globalFlags, "")
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return cmdWake(commandContext(cmd), a, cmd.OutOrStdout())
		},
	}
}

func createDevicesCommand(globalFlags *GlobalFlags, devicesFlags *DevicesFlags, open input.Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected game controllers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*globalFlags, "")
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return cmdDevices(commandContext(cmd), openerFor(a, open), devicesFlags.Wait, a.cfg.Listener.PollInterval, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&devicesFlags.Wait, "wait", time.Second, "how long to collect connect events")
	return cmd
}

func openerFor(a *app, open input.Opener) input.Opener {
	if open != nil {
		return open
	}
	return input.SDLOpener(a.cfg.Listener.TriggerThreshold)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
