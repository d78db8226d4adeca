package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runArgs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, strings.NewReader(""), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config")
	if err := os.WriteFile(configPath, []byte("run-timeout 2s\nassignments-dir "+filepath.Join(dir, "assignments")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KAROL_CONFIG", configPath)

	t.Run("no command shows help", func(t *testing.T) {
		out, _, err := runArgs(t)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !strings.Contains(out, "Usage: karol <command>") {
			t.Errorf("Unexpected output: %s", out)
		}
	})

	t.Run("help flag", func(t *testing.T) {
		for _, flag := range []string{"-h", "--help"} {
			out, _, err := runArgs(t, flag)
			if err != nil {
				t.Errorf("Expected no error for %s, got: %v", flag, err)
			}
			for _, name := range []string{"run", "validate", "assignments", "solution", "sweep", "serve", "config", "version"} {
				if !strings.Contains(out, "  "+name) {
					t.Errorf("Expected %q in help output", name)
				}
			}
		}
	})

	t.Run("version command", func(t *testing.T) {
		out, _, err := runArgs(t, "version")
		if err != nil || out != "karol version "+version+"\n" {
			t.Errorf("version returned %q, %v", out, err)
		}
	})

	t.Run("unknown command", func(t *testing.T) {
		_, errOut, err := runArgs(t, "frobnicate")
		if err == nil {
			t.Fatal("Expected an error for an unknown command")
		}
		if !strings.Contains(errOut, "Unknown command: frobnicate") {
			t.Errorf("Unexpected stderr: %s", errOut)
		}
	})

	t.Run("command help flag", func(t *testing.T) {
		_, errOut, err := runArgs(t, "run", "-h")
		if err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
		if !strings.Contains(errOut, "Usage: karol run") {
			t.Errorf("Unexpected stderr: %s", errOut)
		}
	})

	t.Run("bad flag", func(t *testing.T) {
		if _, _, err := runArgs(t, "run", "-nope"); err == nil {
			t.Error("Expected an error for an unknown flag")
		}
	})

	t.Run("config is loaded from KAROL_CONFIG", func(t *testing.T) {
		if os.Getenv("KAROL_RUN_TIMEOUT") != "" {
			t.Skip("KAROL_RUN_TIMEOUT overrides the file")
		}
		out, _, err := runArgs(t, "config", "get", "run-timeout")
		if err != nil || strings.TrimSpace(out) != "2s" {
			t.Errorf("config get returned %q, %v", out, err)
		}
	})

	t.Run("assignments on an empty directory", func(t *testing.T) {
		if os.Getenv("KAROL_ASSIGNMENTS_DIR") != "" {
			t.Skip("KAROL_ASSIGNMENTS_DIR overrides the file")
		}
		t.Setenv("KAROL_SOLUTIONS_DIR", filepath.Join(dir, "solutions"))
		out, _, err := runArgs(t, "assignments")
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !strings.Contains(out, "No assignments found") {
			t.Errorf("Unexpected output: %s", out)
		}
	})
}
