package main

import (
	"os"
	"strings"
)

// init runs before any TUI starts. Machine-readable invocations are treated
// as non-interactive: CI=1 stops termenv from probing the terminal, so no
// OSC/DSR query sequences end up in output meant for a JSON parser.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !shouldSuppressTTYQueries(os.Args[1:], os.Getenv("EV_ROBOT") == "1", os.Getenv("EV_TEST_MODE") != "") {
		return
	}
	_ = os.Setenv("CI", "1")
}

func shouldSuppressTTYQueries(args []string, envRobot, envTest bool) bool {
	if envRobot || envTest {
		return true
	}
	for i, arg := range args {
		switch {
		case arg == "--json", arg == "--version", arg == "--help", arg == "-h":
			return true
		case i == 0 && (arg == "version" || arg == "help"):
			return true
		case strings.HasPrefix(arg, "--json="):
			return true
		}
	}
	return false
}
