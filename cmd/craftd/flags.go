package main

import "time"

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	Dir string // server directory for local commands
}

// ServeFlags holds flags for the serve command.
type ServeFlags struct {
	Listen   string
	BasePath string
	LogFile  string
	Debug    bool
}

// APIFlags holds daemon connection flags for remote commands.
type APIFlags struct {
	URL     string
	Timeout time.Duration
}

// InstallFlags holds flags for the install command.
type InstallFlags struct {
	Flavor       string
	InstallerURL string
}

// UpdateFlags holds flags for the update command.
type UpdateFlags struct {
	Force bool
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Limit int
}
