package main

import (
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("metadata", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "onionwatch" {
			t.Errorf("expected use 'onionwatch', got %q", cmd.Use)
		}
		if cmd.Short == "" || cmd.Long == "" || cmd.Version == "" {
			t.Error("expected short, long and version to be set")
		}
		if !cmd.SilenceUsage || !cmd.SilenceErrors {
			t.Error("expected usage and errors to be silenced")
		}
	})

	t.Run("persistent flags", func(t *testing.T) {
		t.Parallel()
		for name, short := range map[string]string{
			"verbose":      "v",
			"config":       "c",
			"external-tor": "e",
			"tor-timeout":  "T",
			"data-dir":     "",
		} {
			flag := cmd.PersistentFlags().Lookup(name)
			if flag == nil {
				t.Errorf("expected --%s", name)
				continue
			}
			if flag.Shorthand != short {
				t.Errorf("--%s shorthand = %q, want %q", name, flag.Shorthand, short)
			}
		}
	})

	t.Run("subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{
			"scan": false, "crawl": false, "serve": false, "stats": false,
			"export": false, "jobs": false, "init": false, "version": false,
		}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})
}
