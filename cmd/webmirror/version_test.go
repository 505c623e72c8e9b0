package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	t.Parallel()

	if getVersion() == "" {
		t.Error("getVersion() returned empty string")
	}
}

func TestGetCommit(t *testing.T) {
	t.Parallel()

	if getCommit() == "" {
		t.Error("getCommit() returned empty string")
	}
}

func TestGetDate(t *testing.T) {
	t.Parallel()

	if getDate() == "" {
		t.Error("getDate() returned empty string")
	}
}

func TestNewVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCmd()

	t.Run("command has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "version" {
			t.Errorf("expected Use to be 'version', got %q", cmd.Use)
		}
	})

	t.Run("prints version information", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		cmd := NewVersionCmd()
		cmd.SetOut(&out)
		cmd.Run(cmd, nil)

		got := out.String()
		if !strings.Contains(got, "webmirror version") {
			t.Errorf("output missing version line: %q", got)
		}
		if !strings.Contains(got, "commit:") {
			t.Errorf("output missing commit line: %q", got)
		}
		if !strings.Contains(got, "built:") {
			t.Errorf("output missing build date line: %q", got)
		}
	})
}
