// Package session ties one world and its robot to the program pipeline.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/karol/internal/logging"
	"github.com/joeycumines/karol/internal/program"
	"github.com/joeycumines/karol/internal/robot"
	"github.com/joeycumines/karol/internal/world"
)

// ErrRunInProgress is returned when a run is requested while another run on
// the same simulation has not finished.
var ErrRunInProgress = errors.New("run in progress")

// Simulation owns one world and robot pair. Runs against it never
// interleave: a second concurrent run is rejected, not queued.
type Simulation struct {
	id      string
	runner  *program.Runner
	runOpts []program.RunOption
	logger  *slog.Logger

	running atomic.Bool

	mu    sync.Mutex
	world *world.World
	robot *robot.Robot
	runs  int
	last  *Result
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithID sets the simulation ID, formatted as NewID does.
func WithID(id string) Option {
	return func(s *Simulation) { s.id = NewID(id) }
}

// WithRunOptions sets options applied to every run, ahead of those passed to
// Run.
func WithRunOptions(opts ...program.RunOption) Option {
	return func(s *Simulation) { s.runOpts = append(s.runOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// New returns a Simulation running programs through runner against r, which
// must live in w.
func New(w *world.World, r *robot.Robot, runner *program.Runner, opts ...Option) (*Simulation, error) {
	if w == nil || r == nil || runner == nil {
		return nil, errors.New("session: world, robot and runner are required")
	}
	if r.World() != w {
		return nil, errors.New("session: robot belongs to a different world")
	}
	s := &Simulation{
		runner: runner,
		logger: logging.Discard(),
		world:  w,
		robot:  r,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = NewID("")
	}
	s.logger = s.logger.With("session", s.id)
	return s, nil
}

// ID returns the simulation ID.
func (s *Simulation) ID() string { return s.id }

// Result is the outcome of one run.
type Result struct {
	Report *program.Report `json:"report"`
	Err    error           `json:"-"`
	State  State           `json:"state"`
}

// State is a copy of the simulation's world and robot.
type State struct {
	ID    string         `json:"id"`
	World world.Snapshot `json:"world"`
	Robot robot.Pose     `json:"robot"`
	Runs  int            `json:"runs"`
}

// Run executes source against the simulation's robot. It returns
// ErrRunInProgress without touching the world when another run is active.
// Otherwise the Result is always non-nil, and its Err matches the returned
// error.
func (s *Simulation) Run(ctx context.Context, source string, opts ...program.RunOption) (*Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("run rejected", "reason", ErrRunInProgress)
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	all := append(append([]program.RunOption(nil), s.runOpts...), opts...)
	report, err := s.runner.Run(ctx, source, s.robot, all...)
	s.runs++
	res := &Result{Report: report, Err: err, State: s.stateLocked()}
	s.last = res

	if err != nil {
		s.logger.Info("run failed", "run", s.runs, "elapsed", time.Since(start), "error", err)
	} else {
		s.logger.Info("run finished", "run", s.runs, "elapsed", time.Since(start))
	}
	return res, err
}

// Running reports whether a run is in flight.
func (s *Simulation) Running() bool { return s.running.Load() }

// State returns a copy of the current state, waiting for any active run.
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Last returns the result of the most recent run, or nil.
func (s *Simulation) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// World returns the simulation's world. Callers must not mutate it while a
// run is active.
func (s *Simulation) World() *world.World { return s.world }

// Robot returns the simulation's robot. Callers must not mutate it while a
// run is active.
func (s *Simulation) Robot() *robot.Robot { return s.robot }

func (s *Simulation) stateLocked() State {
	return State{
		ID:    s.id,
		World: s.world.Snapshot(),
		Robot: s.robot.Pose(),
		Runs:  s.runs,
	}
}
