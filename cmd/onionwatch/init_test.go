package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nao1215/onionwatch/internal/config"
)

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, args ...string) error {
		t.Helper()
		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), "nested", ".onionwatch.yaml")
		if err := run(t, "-o", out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := os.Stat(out)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
			t.Errorf("expected permissions 0600, got %o", info.Mode().Perm())
		}
	})

	t.Run("fails if file exists without force", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), ".onionwatch.yaml")
		if err := os.WriteFile(out, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}
		err := run(t, "-o", out)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected 'already exists' error, got %v", err)
		}
	})

	t.Run("overwrites with force", func(t *testing.T) {
		t.Parallel()
		out := filepath.Join(t.TempDir(), ".onionwatch.yaml")
		if err := os.WriteFile(out, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}
		if err := run(t, "-o", out, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		if string(content) == "existing" {
			t.Error("expected file to be overwritten")
		}
	})
}

// The shipped template must load and describe the defaults exactly.
func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	content, err := configTemplate.ReadFile("templates/onionwatch.yaml")
	if err != nil {
		t.Fatalf("failed to read template: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}

	f, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}
	cfg := config.NewConfig()
	f.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		t.Errorf("template does not validate: %v", err)
	}

	def := config.NewConfig()
	if cfg.TorProxyAddress != def.TorProxyAddress || cfg.Timeout != def.Timeout ||
		cfg.AlertMinLevel != def.AlertMinLevel || cfg.Intervals() != def.Intervals() ||
		cfg.ListenAddress != def.ListenAddress || cfg.OCRLanguages != def.OCRLanguages {
		t.Error("template values differ from the built-in defaults")
	}
	if cfg.SiteOptions("any.onion").Headers["Accept-Language"] == "" {
		t.Error("template defaults section not applied")
	}
}
