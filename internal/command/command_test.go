package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/karol/internal/config"
	"github.com/joeycumines/karol/internal/storage"
)

const deliverYAML = `name: Deliver
description: Carry the beeper to the far end.
worldWidth: 4
worldHeight: 1
robot: {x: 0, y: 0, direction: east, beepers: 1}
goal: beepersAt(3, 0) == 1
`

func programSource(body string) string {
	return "'use namespace karol.userprograms';\n" +
		"const karol = require('karol');\n" +
		"class Task extends karol.Program { run(k) { " + body + " } }\n" +
		"module.exports = { Task };\n"
}

type fixture struct {
	env         *Env
	dir         string
	assignments string
	solutions   string
	workspaces  string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:         dir,
		assignments: filepath.Join(dir, "assignments"),
		solutions:   filepath.Join(dir, "solutions"),
		workspaces:  filepath.Join(dir, "work"),
	}
	if err := os.MkdirAll(f.assignments, 0755); err != nil {
		t.Fatal(err)
	}
	f.write(t, filepath.Join(f.assignments, "deliver.yaml"), deliverYAML)

	cfg := config.NewConfig()
	cfg.SetGlobalOption(config.KeyAssignmentsDir, f.assignments)
	cfg.SetGlobalOption(config.KeySolutionsDir, f.solutions)
	cfg.SetGlobalOption(config.KeyWorkspaceDir, f.workspaces)
	cfg.SetGlobalOption(config.KeyRunTimeout, "5s")
	f.env = &Env{
		Config:     cfg,
		ConfigPath: filepath.Join(dir, "config"),
		Version:    "test",
	}
	return f
}

func (f *fixture) write(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute parses args with cmd's flags and runs it, as cmd/karol does.
func execute(t *testing.T, cmd Command, args ...string) (string, string, error) {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetupFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flag parse failed: %v", err)
	}
	var stdout, stderr bytes.Buffer
	err := cmd.Execute(fs.Args(), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func assertContains(t *testing.T, output string, parts ...string) {
	t.Helper()
	for _, part := range parts {
		if !strings.Contains(output, part) {
			t.Errorf("Expected output to contain %q, got:\n%s", part, output)
		}
	}
}

func TestRunCommand_Sandbox(t *testing.T) {
	f := newFixture(t)
	file := f.write(t, filepath.Join(f.dir, "prog.js"), programSource("console.log('step'); k.move();"))

	out, _, err := execute(t, NewRunCommand(f.env), file)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	assertContains(t, out,
		"assignment: sandbox",
		"module:     karol.userprograms.Task",
		"run:        completed",
		"robot:      (1,0) facing EAST carrying 0",
		"[log] step",
		"result:     solved",
	)
}

func TestRunCommand_Fault(t *testing.T) {
	f := newFixture(t)
	file := f.write(t, filepath.Join(f.dir, "prog.js"), programSource("k.moveSteps(4);"))

	out, _, err := execute(t, NewRunCommand(f.env), "-assignment", "Deliver", file)
	if !errors.Is(err, ErrNotSolved) {
		t.Fatalf("Expected ErrNotSolved, got %v", err)
	}
	assertContains(t, out,
		"assignment: Deliver",
		"run:        blocked-move fault at line 3",
		"robot:      (3,0) facing EAST carrying 1",
		"goal:       not met (beepersAt(3, 0) == 1)",
		"result:     not solved",
	)
}

func TestRunCommand_SaveAndReplay(t *testing.T) {
	f := newFixture(t)
	src := programSource("k.moveUntilBlocked(); k.putBeeper();")
	f.env.Stdin = strings.NewReader(src)

	out, _, err := execute(t, NewRunCommand(f.env), "-assignment", "Deliver", "-save", "-")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	assertContains(t, out, "goal:       met", "result:     solved")

	store, err := storage.NewSolutionStore(f.solutions)
	if err != nil {
		t.Fatal(err)
	}
	saved, found, err := store.Load("Deliver")
	if err != nil || !found || saved != src {
		t.Fatalf("Expected the solution to be saved, got found=%v err=%v", found, err)
	}

	out, _, err = execute(t, NewRunCommand(f.env), "-assignment", "Deliver", "-format", "json")
	if err != nil {
		t.Fatalf("replay failed: %v\n%s", err, out)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if decoded["assignment"] != "Deliver" {
		t.Errorf("Unexpected assignment %v", decoded["assignment"])
	}
	goal, _ := decoded["goal"].(map[string]any)
	if goal["passed"] != true {
		t.Errorf("Expected the goal to pass, got %v", decoded["goal"])
	}
}

func TestRunCommand_Errors(t *testing.T) {
	f := newFixture(t)

	if _, _, err := execute(t, NewRunCommand(f.env)); err == nil {
		t.Error("Expected an error with neither file nor assignment")
	}
	if _, _, err := execute(t, NewRunCommand(f.env), "-assignment", "Deliver"); err == nil || !strings.Contains(err.Error(), "no saved solution") {
		t.Errorf("Expected a missing solution error, got %v", err)
	}
	if _, _, err := execute(t, NewRunCommand(f.env), "-assignment", "Nope", "x.js"); err == nil {
		t.Error("Expected an error for an unknown assignment")
	}
	if _, _, err := execute(t, NewRunCommand(f.env), "-format", "xml", "x.js"); err == nil {
		t.Error("Expected an error for an unknown format")
	}
}

func TestRunCommand_AssignmentFile(t *testing.T) {
	f := newFixture(t)
	path := f.write(t, filepath.Join(f.dir, "other.yml"), strings.Replace(deliverYAML, "Deliver", "Other", 1))
	file := f.write(t, filepath.Join(f.dir, "prog.js"), programSource("k.moveUntilBlocked(); k.putBeeper();"))

	out, _, err := execute(t, NewRunCommand(f.env), "-assignment", path, file)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	assertContains(t, out, "assignment: Other")
}

func TestValidateCommand(t *testing.T) {
	f := newFixture(t)
	good := f.write(t, filepath.Join(f.dir, "good.js"), programSource("k.move();"))
	bad := f.write(t, filepath.Join(f.dir, "bad.js"), "class Task {}")

	out, _, err := execute(t, NewValidateCommand(f.env), good)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	assertContains(t, out, "ok: karol.userprograms.Task")

	if _, _, err := execute(t, NewValidateCommand(f.env), bad); err == nil {
		t.Error("Expected a validation error")
	}
	if _, _, err := execute(t, NewValidateCommand(f.env)); err == nil {
		t.Error("Expected an error without a file")
	}
}

func TestAssignmentsCommand(t *testing.T) {
	f := newFixture(t)
	f.write(t, filepath.Join(f.assignments, "broken.json"), "{")

	out, errOut, err := execute(t, NewAssignmentsCommand(f.env))
	if err != nil {
		t.Fatalf("assignments failed: %v", err)
	}
	assertContains(t, out, "NAME", "Deliver", "4x1", "Carry the beeper")
	assertContains(t, errOut, "broken.json")

	out, _, err = execute(t, NewAssignmentsCommand(f.env), "-format", "json")
	if err != nil {
		t.Fatalf("assignments failed: %v", err)
	}
	var listing []map[string]any
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(listing) != 1 || listing[0]["name"] != "Deliver" || listing[0]["hasSolution"] != false {
		t.Errorf("Unexpected listing %v", listing)
	}
}

func TestAssignmentsCommand_FormatFromConfig(t *testing.T) {
	f := newFixture(t)
	f.env.Config.SetCommandOption("assignments", config.KeyFormat, "json")

	out, _, err := execute(t, NewAssignmentsCommand(f.env))
	if err != nil {
		t.Fatalf("assignments failed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "[") {
		t.Errorf("Expected JSON output, got %s", out)
	}
}

func TestSolutionCommand(t *testing.T) {
	f := newFixture(t)
	file := f.write(t, filepath.Join(f.dir, "prog.js"), "source text")
	cmd := NewSolutionCommand(f.env)

	if _, _, err := execute(t, cmd, "get", "Deliver"); err == nil {
		t.Error("Expected an error for a missing solution")
	}

	out, _, err := execute(t, cmd, "save", "Deliver", file)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	assertContains(t, out, "saved solution for Deliver")

	out, _, err = execute(t, cmd, "get", "Deliver")
	if err != nil || out != "source text" {
		t.Errorf("get returned %q, %v", out, err)
	}

	out, _, err = execute(t, cmd, "list")
	if err != nil || out != "Deliver\n" {
		t.Errorf("list returned %q, %v", out, err)
	}

	if _, _, err := execute(t, cmd, "delete", "Deliver"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	out, _, _ = execute(t, cmd, "list")
	if out != "" {
		t.Errorf("Expected an empty list, got %q", out)
	}

	for _, args := range [][]string{nil, {"rename"}, {"get"}, {"save", "Deliver"}, {"list", "extra"}} {
		if _, _, err := execute(t, cmd, args...); err == nil {
			t.Errorf("Expected an error for %v", args)
		}
	}
}

func TestSweepCommand(t *testing.T) {
	f := newFixture(t)
	stale := filepath.Join(f.workspaces, storage.WorkspacePrefix+"old")
	fresh := filepath.Join(f.workspaces, storage.WorkspacePrefix+"new")
	for _, dir := range []string{stale, fresh} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	out, _, err := execute(t, NewSweepCommand(f.env), "-dry-run")
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	assertContains(t, out, "would remove "+storage.WorkspacePrefix+"old", "1 would remove, 1 kept")
	if _, err := os.Stat(stale); err != nil {
		t.Fatalf("dry run removed the workspace: %v", err)
	}

	out, _, err = execute(t, NewSweepCommand(f.env))
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	assertContains(t, out, "removed "+storage.WorkspacePrefix+"old")
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("Expected the stale workspace to be removed, got %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("Expected the fresh workspace to be kept, got %v", err)
	}
}

func TestConfigCommand(t *testing.T) {
	f := newFixture(t)
	cmd := NewConfigCommand(f.env)

	out, _, err := execute(t, cmd)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	assertContains(t, out, "run-timeout", "5s", "[run]", "format")

	out, _, err = execute(t, cmd, "schema")
	if err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	assertContains(t, out, "Global Options:", "namespace")

	out, _, err = execute(t, cmd, "set", "run-timeout", "3s")
	if err != nil {
		t.Fatalf("set failed: %v", err)
	}
	data, err := os.ReadFile(f.env.ConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	assertContains(t, string(data), "run-timeout 3s")

	out, _, err = execute(t, cmd, "get", "run-timeout")
	if err != nil || strings.TrimSpace(out) != "3s" {
		t.Errorf("get returned %q, %v", out, err)
	}

	if _, _, err := execute(t, cmd, "set", "run-timeout", "soon"); err == nil {
		t.Error("Expected an error for a malformed duration")
	}
	if _, _, err := execute(t, cmd, "get", "bogus"); err == nil {
		t.Error("Expected an error for an unknown key")
	}

	out, _, err = execute(t, cmd, "validate")
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	f.env.Config.SetGlobalOption("bogus", "1")
	if _, _, err := execute(t, cmd, "validate"); err == nil {
		t.Error("Expected validate to report the unknown option")
	}
}
