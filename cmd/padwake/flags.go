package main

import "time"

// GlobalFlags are persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	GuestID    string
	LogLevel   string
}

type RunFlags struct {
	Daemonize bool
	PidFile   string
	LogFile   string
}

type DevicesFlags struct {
	Wait time.Duration
}
