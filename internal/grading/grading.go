// Package grading evaluates an assignment's goal expression against the
// state a run finished in.
//
// Goals are expr-lang boolean expressions over:
//
//	robot.x, robot.y, robot.facing ("NORTH"...), robot.carried
//	width, height
//	beepersAt(x, y), totalBeepers()
//	fault  ("" after a clean run, otherwise the fault kind, e.g. "blocked-move")
package grading

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/joeycumines/karol/internal/logging"
	"github.com/joeycumines/karol/internal/robot"
	"github.com/joeycumines/karol/internal/world"
)

var (
	// ErrNoGoal is returned when grading an empty goal.
	ErrNoGoal = errors.New("no goal")

	// ErrInvalidGoal wraps goal compile errors.
	ErrInvalidGoal = errors.New("invalid goal")

	// ErrEvaluation wraps goal runtime errors.
	ErrEvaluation = errors.New("goal evaluation failed")
)

// Robot is the robot as seen by a goal.
type Robot struct {
	X       int    `expr:"x"`
	Y       int    `expr:"y"`
	Facing  string `expr:"facing"`
	Carried int    `expr:"carried"`
}

// Env is the environment goals are compiled and run against.
type Env struct {
	Robot        Robot              `expr:"robot"`
	Width        int                `expr:"width"`
	Height       int                `expr:"height"`
	Fault        string             `expr:"fault"`
	BeepersAt    func(x, y int) int `expr:"beepersAt"`
	TotalBeepers func() int         `expr:"totalBeepers"`
}

// State is the final state of a run.
type State struct {
	World world.Snapshot
	Robot robot.Pose
	// Fault is empty for a clean run.
	Fault string
}

func newEnv(s State) Env {
	piles := make(map[world.Cell]int, len(s.World.Beepers))
	total := 0
	for _, p := range s.World.Beepers {
		piles[p.Cell] += p.Count
		total += p.Count
	}
	return Env{
		Robot: Robot{
			X:       s.Robot.X,
			Y:       s.Robot.Y,
			Facing:  s.Robot.Direction.String(),
			Carried: s.Robot.Carried,
		},
		Width:        s.World.Width,
		Height:       s.World.Height,
		Fault:        s.Fault,
		BeepersAt:    func(x, y int) int { return piles[world.Cell{X: x, Y: y}] },
		TotalBeepers: func() int { return total },
	}
}

// Verdict is the outcome of grading one goal.
type Verdict struct {
	Goal   string `json:"goal"`
	Passed bool   `json:"passed"`
}

// Grader compiles and evaluates goals, caching compiled programs.
type Grader struct {
	cache  *Cache
	logger *slog.Logger
}

// Option configures a Grader.
type Option func(*Grader)

// WithCache sets the program cache, allowing it to be shared.
func WithCache(c *Cache) Option {
	return func(g *Grader) { g.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Grader) { g.logger = l }
}

// NewGrader returns a Grader.
func NewGrader(opts ...Option) *Grader {
	g := &Grader{logger: logging.Discard()}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = NewCache(DefaultCacheSize)
	}
	return g
}

// Check reports whether goal compiles to a boolean expression.
func (g *Grader) Check(goal string) error {
	_, err := g.program(goal)
	return err
}

// Grade evaluates goal against s.
func (g *Grader) Grade(goal string, s State) (Verdict, error) {
	v := Verdict{Goal: goal}
	program, err := g.program(goal)
	if err != nil {
		return v, err
	}
	out, err := expr.Run(program, newEnv(s))
	if err != nil {
		g.logger.Warn("goal evaluation failed", "goal", goal, "error", err)
		return v, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}
	passed, ok := out.(bool)
	if !ok {
		return v, fmt.Errorf("%w: result is %T, not bool", ErrEvaluation, out)
	}
	v.Passed = passed
	g.logger.Debug("goal graded", "goal", goal, "passed", passed)
	return v, nil
}

func (g *Grader) program(goal string) (*vm.Program, error) {
	if goal == "" {
		return nil, ErrNoGoal
	}
	if p, ok := g.cache.Get(goal); ok {
		return p, nil
	}
	p, err := expr.Compile(goal, expr.Env(Env{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGoal, err)
	}
	g.cache.Put(goal, p)
	return p, nil
}
