package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/padwake/internal/env"
	"github.com/loykin/padwake/internal/input"
	"github.com/loykin/padwake/internal/logger"
	"github.com/loykin/padwake/internal/tls"
	"github.com/spf13/viper"
)

// GuestIDEnv names the environment variable that selects the managed guest.
const GuestIDEnv = "PROXMOX_VM_ID"

// Defaults applied before the config file and environment are read.
const (
	DefaultGuestID             = "100"
	DefaultStatusVerb          = "status"
	DefaultStartVerb           = "start"
	DefaultRunningMarker       = "running"
	DefaultTrigger             = string(input.ButtonRightTrigger)
	DefaultTriggerThreshold    = 0.75
	DefaultListenerPoll        = 10 * time.Millisecond
	DefaultStatusCheckEvery    = 100
	DefaultRunningPollInterval = 10 * time.Second
)

// DefaultCommand is the Proxmox VE guest management CLI.
var DefaultCommand = []string{"qm"}

// FileConfig is the TOML layout of the config file.
type FileConfig struct {
	GuestID      string             `toml:"guest_id" mapstructure:"guest_id"`
	EnvFile      string             `toml:"env_file" mapstructure:"env_file"`
	ControlPlane ControlPlaneConfig `toml:"control_plane" mapstructure:"control_plane"`
	Listener     ListenerConfig     `toml:"listener" mapstructure:"listener"`
	Supervisor   SupervisorConfig   `toml:"supervisor" mapstructure:"supervisor"`
	Log          LogConfig          `toml:"log" mapstructure:"log"`
	Metrics      MetricsConfig      `toml:"metrics" mapstructure:"metrics"`
	Server       ServerConfig       `toml:"server" mapstructure:"server"`

	envFileVars env.Vars
}

type ControlPlaneConfig struct {
	Command       []string      `toml:"command" mapstructure:"command"`
	StatusVerb    string        `toml:"status_verb" mapstructure:"status_verb"`
	StartVerb     string        `toml:"start_verb" mapstructure:"start_verb"`
	RunningMarker string        `toml:"running_marker" mapstructure:"running_marker"`
	Timeout       time.Duration `toml:"timeout" mapstructure:"timeout"`
	// Env entries (KEY=VALUE) added to the command environment after the
	// env file.
	Env []string `toml:"env" mapstructure:"env"`
}

type ListenerConfig struct {
	Trigger          string        `toml:"trigger" mapstructure:"trigger"`
	TriggerThreshold float64       `toml:"trigger_threshold" mapstructure:"trigger_threshold"`
	PollInterval     time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
	StatusCheckEvery int           `toml:"status_check_every" mapstructure:"status_check_every"`
}

type SupervisorConfig struct {
	RunningPollInterval time.Duration `toml:"running_poll_interval" mapstructure:"running_poll_interval"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	TimeStamps bool   `toml:"timestamps" mapstructure:"timestamps"`
	Source     bool   `toml:"source" mapstructure:"source"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

type ServerConfig struct {
	Listen   string    `toml:"listen" mapstructure:"listen"`
	BasePath string    `toml:"base_path" mapstructure:"base_path"`
	TLS      TLSConfig `toml:"tls" mapstructure:"tls"`
}

type TLSConfig struct {
	Enabled      bool     `toml:"enabled" mapstructure:"enabled"`
	CertFile     string   `toml:"cert_file" mapstructure:"cert_file"`
	KeyFile      string   `toml:"key_file" mapstructure:"key_file"`
	Dir          string   `toml:"dir" mapstructure:"dir"`
	AutoGenerate bool     `toml:"auto_generate" mapstructure:"auto_generate"`
	MinVersion   string   `toml:"min_version" mapstructure:"min_version"`
	Hosts        []string `toml:"hosts" mapstructure:"hosts"`
}

// Config is the validated runtime configuration. It is built once at
// startup and handed to each component.
type Config struct {
	FileConfig
	// Button is the parsed trigger.
	Button input.Button

	commandVars env.Vars
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	// every key needs a default, zero or not, for AutomaticEnv to reach it
	// through Unmarshal
	v.SetDefault("guest_id", DefaultGuestID)
	v.SetDefault("env_file", "")
	v.SetDefault("control_plane.command", DefaultCommand)
	v.SetDefault("control_plane.status_verb", DefaultStatusVerb)
	v.SetDefault("control_plane.start_verb", DefaultStartVerb)
	v.SetDefault("control_plane.running_marker", DefaultRunningMarker)
	v.SetDefault("control_plane.timeout", time.Duration(0))
	v.SetDefault("control_plane.env", []string{})
	v.SetDefault("listener.trigger", DefaultTrigger)
	v.SetDefault("listener.trigger_threshold", DefaultTriggerThreshold)
	v.SetDefault("listener.poll_interval", DefaultListenerPoll)
	v.SetDefault("listener.status_check_every", DefaultStatusCheckEvery)
	v.SetDefault("supervisor.running_poll_interval", DefaultRunningPollInterval)
	v.SetDefault("log.level", string(logger.LevelInfo))
	v.SetDefault("log.format", string(logger.FormatText))
	v.SetDefault("log.color", false)
	v.SetDefault("log.timestamps", true)
	v.SetDefault("log.source", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 0)
	v.SetDefault("log.max_backups", 0)
	v.SetDefault("log.max_age_days", 0)
	v.SetDefault("log.compress", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("server.listen", "")
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.cert_file", "")
	v.SetDefault("server.tls.key_file", "")
	v.SetDefault("server.tls.dir", "")
	v.SetDefault("server.tls.auto_generate", false)
	v.SetDefault("server.tls.min_version", "")
	v.SetDefault("server.tls.hosts", []string{})

	// PADWAKE_LISTENER_POLL_INTERVAL etc.
	v.SetEnvPrefix("padwake")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("guest_id", GuestIDEnv)
	return v
}

// Load reads the optional TOML file at path, applies environment overrides
// and validates the result. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if fc.EnvFile != "" {
		envPath := fc.EnvFile
		if path != "" && !filepath.IsAbs(envPath) {
			envPath = filepath.Join(filepath.Dir(path), envPath)
		}
		pairs, err := env.ReadFile(envPath)
		if err != nil {
			return nil, fmt.Errorf("read env file: %w", err)
		}
		fc.envFileVars = pairs
		// the process environment still wins over the file; empty counts
		// as unset, as it does for viper
		if id, ok := pairs[GuestIDEnv]; ok {
			if strings.TrimSpace(os.Getenv(GuestIDEnv)) == "" {
				fc.GuestID = id
			}
		}
	}
	return New(fc)
}

// New validates fc and returns the runtime configuration.
func New(fc FileConfig) (*Config, error) {
	fc.GuestID = strings.TrimSpace(fc.GuestID)
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	b, _ := input.ParseButton(fc.Listener.Trigger)
	vars, _ := env.Parse(fc.ControlPlane.Env)
	return &Config{FileConfig: fc, Button: b, commandVars: vars}, nil
}

// Validate reports every problem found in fc.
func (fc FileConfig) Validate() error {
	var errs []error
	if fc.GuestID == "" {
		errs = append(errs, errors.New("guest_id must not be empty"))
	}
	if len(fc.ControlPlane.Command) == 0 || strings.TrimSpace(fc.ControlPlane.Command[0]) == "" {
		errs = append(errs, errors.New("control_plane.command must name an executable"))
	}
	if fc.ControlPlane.StatusVerb == "" || fc.ControlPlane.StartVerb == "" {
		errs = append(errs, errors.New("control_plane status_verb and start_verb are required"))
	}
	if fc.ControlPlane.RunningMarker == "" {
		errs = append(errs, errors.New("control_plane.running_marker must not be empty"))
	}
	if fc.ControlPlane.Timeout < 0 {
		errs = append(errs, errors.New("control_plane.timeout must not be negative"))
	}
	if _, err := env.Parse(fc.ControlPlane.Env); err != nil {
		errs = append(errs, fmt.Errorf("control_plane.env: %w", err))
	}
	if _, err := input.ParseButton(fc.Listener.Trigger); err != nil {
		errs = append(errs, fmt.Errorf("listener.trigger: %w", err))
	}
	if fc.Listener.TriggerThreshold <= 0 || fc.Listener.TriggerThreshold > 1 {
		errs = append(errs, fmt.Errorf("listener.trigger_threshold %v must be in (0,1]", fc.Listener.TriggerThreshold))
	}
	if fc.Listener.PollInterval <= 0 {
		errs = append(errs, errors.New("listener.poll_interval must be positive"))
	}
	if fc.Listener.StatusCheckEvery <= 0 {
		errs = append(errs, errors.New("listener.status_check_every must be positive"))
	}
	if fc.Supervisor.RunningPollInterval <= 0 {
		errs = append(errs, errors.New("supervisor.running_poll_interval must be positive"))
	}
	if _, err := logger.ParseLevel(fc.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if fc.Server.TLS.Enabled {
		if _, err := tls.ParseVersion(fc.Server.TLS.MinVersion); err != nil {
			errs = append(errs, fmt.Errorf("server.tls.min_version: %w", err))
		}
	}
	switch logger.Format(fc.Log.Format) {
	case "", logger.FormatText, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", fc.Log.Format))
	}
	return errors.Join(errs...)
}

// Logger converts the [log] section into a logger.Config.
func (c *Config) Logger() logger.Config {
	lvl, _ := logger.ParseLevel(c.Log.Level)
	format := logger.Format(c.Log.Format)
	if format == "" {
		format = logger.FormatText
	}
	return logger.Config{
		Slog: logger.SlogConfig{
			Level:      lvl,
			Format:     format,
			Color:      c.Log.Color,
			TimeStamps: c.Log.TimeStamps,
			Source:     c.Log.Source,
		},
		File: logger.FileConfig{
			Path:       c.Log.File,
			MaxSizeMB:  c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			MaxAgeDays: c.Log.MaxAgeDays,
			Compress:   c.Log.Compress,
		},
	}
}

// TLSOptions converts [server.tls] for the tls package.
func (c *Config) TLSOptions() tls.Options {
	t := c.Server.TLS
	return tls.Options{
		Enabled:      t.Enabled,
		CertFile:     t.CertFile,
		KeyFile:      t.KeyFile,
		Dir:          t.Dir,
		AutoGenerate: t.AutoGenerate,
		MinVersion:   t.MinVersion,
		Hosts:        t.Hosts,
	}
}

// CommandEnviron is the environment for control plane commands: the process
// environment overlaid with the env file and then control_plane.env. It is
// nil, meaning inherit, when neither adds anything.
func (c *Config) CommandEnviron() []string {
	if len(c.envFileVars) == 0 && len(c.commandVars) == 0 {
		return nil
	}
	return env.Compose(os.Environ(), c.envFileVars, c.commandVars)
}
