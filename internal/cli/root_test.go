package cli

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
)

func TestRootCommand(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()

	if root.Use != "ql" {
		t.Errorf("root.Use = %q, want %q", root.Use, "ql")
	}

	want := []string{"bundle", "systems", "dist", "graph", "serve", "cache", "completion"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)

	c.SetLogLevel(log.DebugLevel)
	if c.Logger.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", c.Logger.GetLevel())
	}
}

func TestNewRunnerNoCache(t *testing.T) {
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()

	runner, err := c.newRunner(root, nil, true)
	if err != nil {
		t.Fatalf("newRunner() error: %v", err)
	}
	if runner == nil {
		t.Fatal("newRunner() returned nil")
	}
	if err := runner.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
