package mcp

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/karol/internal/logging"
	"github.com/joeycumines/karol/internal/program"
	"github.com/joeycumines/karol/internal/storage"
)

const deliverYAML = `name: Deliver
description: Carry the beeper to the far end.
worldWidth: 4
worldHeight: 1
robot: {x: 0, y: 0, direction: east, beepers: 1}
goal: beepersAt(3, 0) == 1
`

func source(body string) string {
	return "'use namespace karol.userprograms';\n" +
		"const karol = require('karol');\n" +
		"class Task extends karol.Program { run(k) { " + body + " } }\n" +
		"module.exports = { Task };\n"
}

type testEnv struct {
	server      *Server
	assignments string
	solutions   *storage.SolutionStore
	logs        *logging.Handler
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	tmp := t.TempDir()

	assignments := filepath.Join(tmp, "assignments")
	require.NoError(t, os.MkdirAll(assignments, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(assignments, "deliver.yaml"), []byte(deliverYAML), 0644))

	solutions, err := storage.NewSolutionStore(filepath.Join(tmp, "solutions"))
	require.NoError(t, err)

	v := program.NewValidator("", "", "")
	c, err := program.NewCompiler(filepath.Join(tmp, "work"), v)
	require.NoError(t, err)

	logger, logs := logging.New(nil, slog.LevelDebug, 100)
	s, err := NewServer(&Config{
		Name:           "test-server",
		Version:        "v1.0.0",
		Runner:         program.NewRunner(v, c, program.WithTimeout(5*time.Second)),
		AssignmentsDir: assignments,
		Solutions:      solutions,
		Logs:           logs,
		Logger:         logger,
	})
	require.NoError(t, err)
	return &testEnv{server: s, assignments: assignments, solutions: solutions, logs: logs}
}

func TestNewServer_RequiresRunner(t *testing.T) {
	_, err := NewServer(&Config{})
	assert.Error(t, err)
	_, err = NewServer(nil)
	assert.Error(t, err)
}

func TestHandleValidate(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	result, out, err := env.server.handleValidate(ctx, &sdk.CallToolRequest{}, ValidateInput{Source: source("k.move();")})
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.True(t, out.Valid)
	assert.Equal(t, "karol.userprograms.Task", out.Module)
	assert.Empty(t, out.Diagnostics)

	_, out, err = env.server.handleValidate(ctx, &sdk.CallToolRequest{}, ValidateInput{Source: "class Task {}"})
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, "validation", out.Stage)
	require.NotEmpty(t, out.Diagnostics)
	assert.NotEmpty(t, out.Diagnostics[0].Kind)

	_, out, err = env.server.handleValidate(ctx, &sdk.CallToolRequest{}, ValidateInput{Source: source("k.move(;")})
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, "compilation", out.Stage)
	require.NotEmpty(t, out.Diagnostics)
	assert.Positive(t, out.Diagnostics[0].Line)
}

func TestHandleRun_Sandbox(t *testing.T) {
	env := setupTestServer(t)

	_, out, err := env.server.handleRun(context.Background(), &sdk.CallToolRequest{}, RunInput{
		Source: source("console.log('hi'); k.moveSteps(2); k.turnLeft();"),
	})
	require.NoError(t, err)
	assert.Equal(t, "sandbox", out.Assignment)
	assert.True(t, out.Succeeded)
	assert.Empty(t, out.Stage)
	assert.Equal(t, "karol.userprograms.Task", out.Module)
	assert.Equal(t, Pose{X: 2, Y: 0, Direction: "NORTH"}, out.Robot)
	assert.Equal(t, 10, out.World.Width)
	require.Len(t, out.Console, 1)
	assert.Equal(t, "hi", out.Console[0].Text)
	assert.Nil(t, out.GoalPassed)
}

func TestHandleRun_Assignment(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, out, err := env.server.handleRun(ctx, &sdk.CallToolRequest{}, RunInput{
		Assignment: "Deliver",
		Source:     source("k.moveSteps(4);"),
	})
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.Equal(t, "execution", out.Stage)
	assert.Equal(t, program.FaultBlockedMove.String(), out.Fault)
	assert.Equal(t, 3, out.Line)
	require.NotNil(t, out.GoalPassed)
	assert.False(t, *out.GoalPassed)
	assert.False(t, out.Saved)

	good := source("k.moveUntilBlocked(); k.putBeeper();")
	_, out, err = env.server.handleRun(ctx, &sdk.CallToolRequest{}, RunInput{
		Assignment: "Deliver",
		Source:     good,
		Save:       true,
	})
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
	assert.Equal(t, "beepersAt(3, 0) == 1", out.Goal)
	require.NotNil(t, out.GoalPassed)
	assert.True(t, *out.GoalPassed)
	assert.True(t, out.Saved)
	assert.Equal(t, 0, out.Robot.Carried)

	saved, found, err := env.solutions.Load("Deliver")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, good, saved)

	// An empty source runs the saved solution.
	_, out, err = env.server.handleRun(ctx, &sdk.CallToolRequest{}, RunInput{Assignment: "Deliver"})
	require.NoError(t, err)
	assert.True(t, out.Succeeded)
}

func TestHandleRun_Errors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, _, err := env.server.handleRun(ctx, &sdk.CallToolRequest{}, RunInput{Assignment: "Missing", Source: source("")})
	assert.Error(t, err)

	_, _, err = env.server.handleRun(ctx, &sdk.CallToolRequest{}, RunInput{})
	assert.Error(t, err)

	_, _, err = env.server.handleRun(ctx, &sdk.CallToolRequest{}, RunInput{Assignment: "Deliver"})
	assert.ErrorContains(t, err, "no saved solution")
}

func TestHandleRun_CompileError(t *testing.T) {
	env := setupTestServer(t)

	_, out, err := env.server.handleRun(context.Background(), &sdk.CallToolRequest{}, RunInput{
		Assignment: "Deliver",
		Source:     source("k.move(;"),
		Save:       true,
	})
	require.NoError(t, err)
	assert.False(t, out.Succeeded)
	assert.False(t, out.Saved)
	assert.Equal(t, "compilation", out.Stage)
	assert.NotEmpty(t, out.Diagnostics)
	assert.Nil(t, out.GoalPassed)
	assert.Equal(t, Pose{Direction: "EAST", Carried: 1}, out.Robot)
}

func TestHandleAssignments(t *testing.T) {
	env := setupTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.assignments, "broken.json"), []byte("{"), 0644))
	require.NoError(t, env.solutions.Save("Deliver", source("")))

	_, out, err := env.server.handleAssignments(context.Background(), &sdk.CallToolRequest{}, AssignmentsInput{})
	require.NoError(t, err)
	require.Len(t, out.Assignments, 1)
	assert.Equal(t, AssignmentSummary{
		Name:        "Deliver",
		Description: "Carry the beeper to the far end.",
		Width:       4,
		Height:      1,
		Goal:        "beepersAt(3, 0) == 1",
		Solved:      true,
	}, out.Assignments[0])
	require.NotEmpty(t, out.Errors)
	assert.Contains(t, out.Errors[0], "broken.json")
}

func TestHandleSolution(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	call := func(in SolutionInput) (SolutionOutput, error) {
		_, out, err := env.server.handleSolution(ctx, &sdk.CallToolRequest{}, in)
		return out, err
	}

	out, err := call(SolutionInput{Action: "get", Assignment: "Deliver"})
	require.NoError(t, err)
	assert.False(t, out.Found)

	_, err = call(SolutionInput{Action: "save", Assignment: "Deliver", Source: "x"})
	require.NoError(t, err)

	out, err = call(SolutionInput{Action: "get", Assignment: "Deliver"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, "x", out.Source)

	out, err = call(SolutionInput{Action: "list"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Deliver"}, out.Keys)

	_, err = call(SolutionInput{Action: "delete", Assignment: "Deliver"})
	require.NoError(t, err)
	out, err = call(SolutionInput{Action: "list"})
	require.NoError(t, err)
	assert.False(t, out.Found)

	_, err = call(SolutionInput{Action: "save", Assignment: "../escape", Source: "x"})
	assert.ErrorIs(t, err, storage.ErrInvalidKey)

	_, err = call(SolutionInput{Action: "rename"})
	assert.ErrorContains(t, err, "unknown action")
}

func TestHandleLogs(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	_, _, err := env.server.handleRun(ctx, &sdk.CallToolRequest{}, RunInput{Source: source("k.move();")})
	require.NoError(t, err)

	_, out, err := env.server.handleLogs(ctx, &sdk.CallToolRequest{}, LogsInput{Query: "sandbox"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Entries)
	last := out.Entries[len(out.Entries)-1]
	assert.Equal(t, "run", last.Message)
	assert.Equal(t, "INFO", last.Level)
	assert.Equal(t, "sandbox", last.Attrs["assignment"])
	_, err = time.Parse(time.RFC3339Nano, last.Time)
	assert.NoError(t, err)

	_, out, err = env.server.handleLogs(ctx, &sdk.CallToolRequest{}, LogsInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, out.Entries, 1)

	_, out, err = env.server.handleLogs(ctx, &sdk.CallToolRequest{}, LogsInput{Query: "no such text anywhere"})
	require.NoError(t, err)
	assert.NotNil(t, out.Entries)
	assert.Empty(t, out.Entries)
}

func TestHandleLogs_Disabled(t *testing.T) {
	env := setupTestServer(t)
	env.server.cfg.Logs = nil
	_, _, err := env.server.handleLogs(context.Background(), &sdk.CallToolRequest{}, LogsInput{})
	assert.Error(t, err)
}
