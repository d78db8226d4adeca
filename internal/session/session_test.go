package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/karol/internal/program"
	"github.com/joeycumines/karol/internal/robot"
	"github.com/joeycumines/karol/internal/world"
)

func source(body string) string {
	return "'use namespace karol.userprograms';\n" +
		"const karol = require('karol');\n" +
		"class Task extends karol.Program { run(k) { " + body + " } }\n" +
		"module.exports = { Task };\n"
}

func newSimulation(t *testing.T, timeout time.Duration, opts ...Option) *Simulation {
	t.Helper()
	v := program.NewValidator("", "", "")
	c, err := program.NewCompiler(t.TempDir(), v)
	require.NoError(t, err)
	w, err := world.New(5, 5)
	require.NoError(t, err)
	r, err := robot.New(w, world.Cell{}, robot.North, robot.WithBeepers(1))
	require.NoError(t, err)
	s, err := New(w, r, program.NewRunner(v, c, program.WithTimeout(timeout)), opts...)
	require.NoError(t, err)
	return s
}

func TestSimulation_Run(t *testing.T) {
	s := newSimulation(t, 5*time.Second)
	assert.True(t, strings.HasPrefix(s.ID(), NamespaceUUID+NamespaceDelimiter))

	res, err := s.Run(context.Background(), source("k.move(); k.putBeeper();"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NoError(t, res.Err)
	assert.Equal(t, robot.Pose{X: 0, Y: 1, Direction: robot.North, Carried: 0}, res.State.Robot)
	assert.Equal(t, []world.BeeperPile{{Cell: world.Cell{X: 0, Y: 1}, Count: 1}}, res.State.World.Beepers)
	assert.Equal(t, 1, res.State.Runs)
	assert.Same(t, res, s.Last())

	res, err = s.Run(context.Background(), source("k.putBeeper();"))
	assert.ErrorIs(t, err, robot.ErrEmptyInventory)
	require.NotNil(t, res)
	assert.ErrorIs(t, res.Err, program.ErrExecutionFailed)
	assert.Equal(t, 2, s.State().Runs)
}

func TestSimulation_RejectsConcurrentRun(t *testing.T) {
	s := newSimulation(t, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), source("k.move(); while (true) {}"))
		done <- err
	}()
	require.Eventually(t, s.Running, 5*time.Second, time.Millisecond)

	res, err := s.Run(context.Background(), source("k.move();"))
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Nil(t, res)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, program.ErrTimeout)
	case <-time.After(10 * time.Second):
		t.Fatal("first run did not finish")
	}
	assert.False(t, s.Running())

	// only the first run moved the robot
	assert.Equal(t, 1, s.State().Robot.Y)
	assert.Equal(t, 1, s.State().Runs)
}

func TestNew_Validation(t *testing.T) {
	v := program.NewValidator("", "", "")
	c, err := program.NewCompiler(t.TempDir(), v)
	require.NoError(t, err)
	runner := program.NewRunner(v, c)

	w1, err := world.New(2, 2)
	require.NoError(t, err)
	w2, err := world.New(2, 2)
	require.NoError(t, err)
	r, err := robot.New(w1, world.Cell{}, robot.East)
	require.NoError(t, err)

	_, err = New(w2, r, runner)
	assert.Error(t, err)
	_, err = New(w1, r, nil)
	assert.Error(t, err)

	s, err := New(w1, r, runner, WithID("class-7"))
	require.NoError(t, err)
	assert.Equal(t, "ex--class-7", s.ID())
	assert.Same(t, w1, s.World())
	assert.Same(t, r, s.Robot())
	assert.Nil(t, s.Last())
}

func TestNewID(t *testing.T) {
	t.Setenv(EnvSessionID, "")

	assert.Equal(t, "ex--abc", NewID("abc"))
	assert.Equal(t, "team--a_b", NewID("team--a/b"))
	assert.Equal(t, "ex--..__etc", NewID("../:etc"))

	t.Setenv(EnvSessionID, "from-env")
	assert.Equal(t, "ex--from-env", NewID(""))

	t.Setenv(EnvSessionID, "")
	a, b := NewID(""), NewID("")
	assert.NotEqual(t, a, b)

	long := NewID(strings.Repeat("x", 200))
	assert.Len(t, long, MaxIDLength)
	assert.NotEqual(t, long, NewID(strings.Repeat("x", 199)+"y"))
}
