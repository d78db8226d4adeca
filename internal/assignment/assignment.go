// Package assignment loads exercise definitions: a world layout, the robot's
// starting pose and an optional goal the final state is graded against.
package assignment

import (
	"errors"
	"fmt"

	"github.com/joeycumines/karol/internal/robot"
	"github.com/joeycumines/karol/internal/world"
)

var (
	// ErrInvalid is matched by every validation failure.
	ErrInvalid = errors.New("invalid assignment")

	// ErrMultipleRobots is returned for an assignment placing more than one
	// robot.
	ErrMultipleRobots = fmt.Errorf("%w: more than one robot", ErrInvalid)

	// ErrNoRobot is returned for an assignment placing no robot.
	ErrNoRobot = fmt.Errorf("%w: no robot", ErrInvalid)
)

// Assignment is one exercise.
type Assignment struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	WorldWidth  int    `json:"worldWidth" yaml:"worldWidth" toml:"worldWidth"`
	WorldHeight int    `json:"worldHeight" yaml:"worldHeight" toml:"worldHeight"`

	Walls   []Wall   `json:"walls,omitempty" yaml:"walls,omitempty" toml:"walls,omitempty"`
	Beepers []Beeper `json:"beepers,omitempty" yaml:"beepers,omitempty" toml:"beepers,omitempty"`

	Robot *Start `json:"robot,omitempty" yaml:"robot,omitempty" toml:"robot,omitempty"`
	// InitialRobots is the list form. At most one entry is allowed, and not
	// together with Robot.
	InitialRobots []Start `json:"initialRobots,omitempty" yaml:"initialRobots,omitempty" toml:"initialRobots,omitempty"`

	// Goal is an expression over the final state that must hold for the
	// assignment to count as solved.
	Goal string `json:"goal,omitempty" yaml:"goal,omitempty" toml:"goal,omitempty"`

	// Path is the file the assignment was loaded from, if any.
	Path string `json:"-" yaml:"-" toml:"-"`
}

// Wall is one wall segment. IsVertical is accepted as an alias of Vertical.
type Wall struct {
	X          int   `json:"x" yaml:"x" toml:"x"`
	Y          int   `json:"y" yaml:"y" toml:"y"`
	Vertical   *bool `json:"vertical,omitempty" yaml:"vertical,omitempty" toml:"vertical,omitempty"`
	IsVertical *bool `json:"isVertical,omitempty" yaml:"isVertical,omitempty" toml:"isVertical,omitempty"`
}

// Beeper is a pile of beepers on one cell.
type Beeper struct {
	X     int `json:"x" yaml:"x" toml:"x"`
	Y     int `json:"y" yaml:"y" toml:"y"`
	Count int `json:"count" yaml:"count" toml:"count"`
}

// Start is the robot's starting pose and bag.
type Start struct {
	X         int    `json:"x" yaml:"x" toml:"x"`
	Y         int    `json:"y" yaml:"y" toml:"y"`
	Direction string `json:"direction" yaml:"direction" toml:"direction"`
	Beepers   int    `json:"beepers,omitempty" yaml:"beepers,omitempty" toml:"beepers,omitempty"`
}

func (w Wall) orientation() (world.Orientation, error) {
	switch {
	case w.Vertical != nil && w.IsVertical != nil && *w.Vertical != *w.IsVertical:
		return 0, fmt.Errorf("%w: wall at (%d,%d) sets vertical and isVertical differently", ErrInvalid, w.X, w.Y)
	case w.Vertical != nil && *w.Vertical, w.IsVertical != nil && *w.IsVertical:
		return world.Vertical, nil
	default:
		return world.Horizontal, nil
	}
}

// Start returns the single robot start.
func (a *Assignment) Start() (Start, error) {
	n := len(a.InitialRobots)
	if a.Robot != nil {
		n++
	}
	switch {
	case n == 0:
		return Start{}, ErrNoRobot
	case n > 1:
		return Start{}, ErrMultipleRobots
	case a.Robot != nil:
		return *a.Robot, nil
	default:
		return a.InitialRobots[0], nil
	}
}

// Validate checks the assignment can be built.
func (a *Assignment) Validate() error {
	_, _, err := a.Build()
	return err
}

// Build creates a fresh world and robot from the assignment.
func (a *Assignment) Build() (*world.World, *robot.Robot, error) {
	if a.Name == "" {
		return nil, nil, fmt.Errorf("%w: missing name", ErrInvalid)
	}
	w, err := world.New(a.WorldWidth, a.WorldHeight)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrInvalid, a.Name, err)
	}
	for _, wall := range a.Walls {
		o, err := wall.orientation()
		if err != nil {
			return nil, nil, err
		}
		if err := w.AddWall(world.WallSegment{Position: world.Cell{X: wall.X, Y: wall.Y}, Orientation: o}); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrInvalid, a.Name, err)
		}
	}
	for _, b := range a.Beepers {
		if err := w.AddBeepers(world.Cell{X: b.X, Y: b.Y}, b.Count); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %w", ErrInvalid, a.Name, err)
		}
	}

	start, err := a.Start()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	dir, err := robot.ParseDirection(start.Direction)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrInvalid, a.Name, err)
	}
	r, err := robot.New(w, world.Cell{X: start.X, Y: start.Y}, dir, robot.WithBeepers(start.Beepers))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrInvalid, a.Name, err)
	}
	return w, r, nil
}

// Default returns the free-play assignment used when none is named: an empty
// 10x10 world with the robot at the origin facing east.
func Default() *Assignment {
	return &Assignment{
		Name:        "sandbox",
		Description: "Empty world for free play.",
		WorldWidth:  10,
		WorldHeight: 10,
		Robot:       &Start{Direction: "EAST"},
	}
}
