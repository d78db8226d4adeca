// Package robot implements the agent that user programs drive: a position on
// a world.World, a facing direction, and a bag of carried beepers.
//
// Every mutating operation is atomic. When an operation fails it returns one
// of the sentinel errors below and leaves the robot and its world exactly as
// they were. A Robot is not safe for concurrent use.
package robot

import (
	"errors"
	"fmt"

	"github.com/joeycumines/karol/internal/world"
)

var (
	// ErrBlockedMove is returned by Move when a wall or the world boundary is
	// directly ahead.
	ErrBlockedMove = errors.New("blocked move")

	// ErrNoBeeperHere is returned by PickBeeper when the robot's cell is
	// empty. It wraps world.ErrNoBeeperHere.
	ErrNoBeeperHere = fmt.Errorf("robot: %w", world.ErrNoBeeperHere)

	// ErrEmptyInventory is returned by PutBeeper when the bag is empty.
	ErrEmptyInventory = errors.New("empty inventory")
)

// Robot is the simulated agent.
type Robot struct {
	world   *world.World
	pos     world.Cell
	facing  Direction
	carried int
}

// Option configures a Robot at construction.
type Option func(*Robot) error

// WithBeepers starts the robot with n beepers in its bag.
func WithBeepers(n int) Option {
	return func(r *Robot) error {
		if n < 0 {
			return fmt.Errorf("carried beepers must be non-negative, got %d", n)
		}
		r.carried = n
		return nil
	}
}

// New places a robot on w at pos, facing the given direction.
func New(w *world.World, pos world.Cell, facing Direction, opts ...Option) (*Robot, error) {
	if w == nil {
		return nil, errors.New("robot: nil world")
	}
	if !w.InBounds(pos) {
		return nil, fmt.Errorf("robot: start %v: %w", pos, world.ErrOutOfBounds)
	}
	if !facing.Valid() {
		return nil, fmt.Errorf("robot: invalid direction %d", int(facing))
	}
	r := &Robot{world: w, pos: pos, facing: facing}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, fmt.Errorf("robot: %w", err)
		}
	}
	return r, nil
}

// World returns the world the robot lives on.
func (r *Robot) World() *world.World { return r.world }

// Position returns the robot's cell.
func (r *Robot) Position() world.Cell { return r.pos }

// Facing returns the direction the robot faces.
func (r *Robot) Facing() Direction { return r.facing }

// CarriedCount returns the number of beepers in the bag.
func (r *Robot) CarriedCount() int { return r.carried }

// TurnLeft rotates 90 degrees counter-clockwise.
func (r *Robot) TurnLeft() { r.facing = r.facing.Left() }

// TurnRight rotates 90 degrees clockwise.
func (r *Robot) TurnRight() { r.facing = r.facing.Right() }

// ahead returns the cell directly in front of the robot. It may be off the grid.
func (r *Robot) ahead() world.Cell {
	return r.pos.Add(r.facing.Offset())
}

// FrontIsClear reports whether Move would succeed.
func (r *Robot) FrontIsClear() bool {
	return r.world.IsLegalMove(r.pos, r.ahead())
}

// Move steps one cell forward.
func (r *Robot) Move() error {
	next := r.ahead()
	if !r.world.IsLegalMove(r.pos, next) {
		return fmt.Errorf("%w: cannot move %s from %v", ErrBlockedMove, r.facing, r.pos)
	}
	r.pos = next
	return nil
}

// PickBeeper takes one beeper from the robot's cell into the bag.
func (r *Robot) PickBeeper() error {
	if err := r.world.PickBeeper(r.pos); err != nil {
		if errors.Is(err, world.ErrNoBeeperHere) {
			return fmt.Errorf("%w at %v", ErrNoBeeperHere, r.pos)
		}
		return err
	}
	r.carried++
	return nil
}

// PutBeeper drops one beeper from the bag onto the robot's cell.
func (r *Robot) PutBeeper() error {
	if r.carried == 0 {
		return fmt.Errorf("%w: nothing to put down at %v", ErrEmptyInventory, r.pos)
	}
	r.world.PutBeeper(r.pos)
	r.carried--
	return nil
}

// BeeperPresent reports whether the robot's cell holds at least one beeper.
func (r *Robot) BeeperPresent() bool {
	return r.world.BeeperCount(r.pos) > 0
}

// Pose is a serializable copy of the robot's state.
type Pose struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Direction Direction `json:"direction"`
	Carried   int       `json:"carried"`
}

// Pose returns the robot's current state.
func (r *Robot) Pose() Pose {
	return Pose{X: r.pos.X, Y: r.pos.Y, Direction: r.facing, Carried: r.carried}
}
