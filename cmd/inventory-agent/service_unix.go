//go:build !windows

package main

import (
	"errors"
	"os"
)

func isWindowsService() bool { return false }

// hasConsole reports whether stdout is a terminal. It is false under
// systemd or launchd.
func hasConsole() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func runAsService(_ func() (*agentComponents, error)) error {
	return errors.New("Windows service mode is not available on this platform")
}
