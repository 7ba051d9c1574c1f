package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestReadBuildInfo(t *testing.T) {
	t.Parallel()

	bi := readBuildInfo()
	if bi.Version == "" || bi.Commit == "" || bi.Date == "" {
		t.Errorf("readBuildInfo() = %+v, want every field set", bi)
	}
	if len(bi.Commit) > 7 && bi.Commit != "unknown" {
		t.Errorf("commit %q not shortened", bi.Commit)
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := NewVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"onionwatch version", "commit:", "built:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
}
