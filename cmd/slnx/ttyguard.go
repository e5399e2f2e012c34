package main

import (
	"os"
	"strings"
)

// init runs before Bubble Tea acquires the terminal.
//
// In PTY/TTY capture environments, Bubble Tea's init triggers
// Lipgloss/Termenv background detection, which can emit OSC/DSR control
// sequences to stdout. Those sequences are harmless in a real terminal
// but garbage for anything parsing the output of non-interactive
// invocations (--version, --help, --export). Termenv honors CI to skip
// TTY probing, so set it early for those.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !shouldSuppressTTYQueries(os.Args) {
		return
	}
	_ = os.Setenv("CI", "1")
}

func shouldSuppressTTYQueries(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--version", "-version", "--help", "-help":
			return true
		}
		if strings.HasPrefix(arg, "--export") || strings.HasPrefix(arg, "-export") {
			return true
		}
	}
	return false
}
