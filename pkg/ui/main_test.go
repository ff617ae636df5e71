package ui

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	// Keep tests away from the user's config and state directories.
	dir, err := os.MkdirTemp("", "ev-ui-test")
	if err != nil {
		panic(err)
	}
	os.Setenv("XDG_CONFIG_HOME", dir)
	os.Setenv("XDG_STATE_HOME", dir)

	code := m.Run()

	os.RemoveAll(dir)
	os.Exit(code)
}
