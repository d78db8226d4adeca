// Package library provides composite robot behaviors built only from the
// primitive operations of an Agent.
//
// The helpers hold no state. A helper that fails part way through leaves the
// effects of its earlier steps in place.
package library

import (
	"errors"
	"fmt"

	"github.com/joeycumines/karol/internal/robot"
)

// ErrNegativeCount is returned by the counted helpers when asked to repeat an
// operation a negative number of times.
var ErrNegativeCount = errors.New("count must not be negative")

// Agent is the primitive capability surface the helpers compose.
// *robot.Robot satisfies it.
type Agent interface {
	Move() error
	TurnLeft()
	TurnRight()
	PickBeeper() error
	PutBeeper() error
	FrontIsClear() bool
	BeeperPresent() bool
	CarriedCount() int
	Facing() robot.Direction
}

var _ Agent = (*robot.Robot)(nil)

// MoveUntilBlocked moves forward while the front is clear and returns the
// number of steps taken.
func MoveUntilBlocked(a Agent) int {
	var steps int
	for a.FrontIsClear() {
		if err := a.Move(); err != nil {
			// FrontIsClear and Move disagree; stop rather than spin.
			break
		}
		steps++
	}
	return steps
}

// TurnAround faces the opposite direction.
func TurnAround(a Agent) {
	a.TurnLeft()
	a.TurnLeft()
}

// TurnRight turns right using three left turns, for agents whose only
// rotation primitive is TurnLeft.
func TurnRight(a Agent) {
	a.TurnLeft()
	a.TurnLeft()
	a.TurnLeft()
}

// MoveSteps moves forward exactly n times, failing on the first blocked step.
func MoveSteps(a Agent, n int) error {
	if n < 0 {
		return fmt.Errorf("move steps %d: %w", n, ErrNegativeCount)
	}
	for i := 0; i < n; i++ {
		if err := a.Move(); err != nil {
			return fmt.Errorf("step %d of %d: %w", i+1, n, err)
		}
	}
	return nil
}

// PutBeepers puts down n beepers on the current cell.
func PutBeepers(a Agent, n int) error {
	if n < 0 {
		return fmt.Errorf("put beepers %d: %w", n, ErrNegativeCount)
	}
	for i := 0; i < n; i++ {
		if err := a.PutBeeper(); err != nil {
			return fmt.Errorf("beeper %d of %d: %w", i+1, n, err)
		}
	}
	return nil
}

// PickAllPresent picks beepers until the current cell is empty and returns
// how many were picked.
func PickAllPresent(a Agent) (int, error) {
	var picked int
	for a.BeeperPresent() {
		if err := a.PickBeeper(); err != nil {
			return picked, err
		}
		picked++
	}
	return picked, nil
}

// FaceCardinal turns left until the agent faces dir. It never turns more
// than three times.
func FaceCardinal(a Agent, dir robot.Direction) {
	if !dir.Valid() {
		panic(fmt.Sprintf("library: invalid direction %d", int(dir)))
	}
	for i := 0; i < 3 && a.Facing() != dir; i++ {
		a.TurnLeft()
	}
}

// FaceNorth turns a to face NORTH.
func FaceNorth(a Agent) { FaceCardinal(a, robot.North) }

// FaceEast turns a to face EAST.
func FaceEast(a Agent) { FaceCardinal(a, robot.East) }

// FaceSouth turns a to face SOUTH.
func FaceSouth(a Agent) { FaceCardinal(a, robot.South) }

// FaceWest turns a to face WEST.
func FaceWest(a Agent) { FaceCardinal(a, robot.West) }
