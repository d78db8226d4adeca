package robot

import (
	"fmt"
	"strings"
)

// Direction is the way a robot faces. The cyclic order is North, East,
// South, West; turning right advances one step through it.
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// Directions lists every direction in turning-right order.
var Directions = [...]Direction{North, East, South, West}

// String implements fmt.Stringer.
func (d Direction) String() string {
	switch d {
	case North:
		return "NORTH"
	case East:
		return "EAST"
	case South:
		return "SOUTH"
	case West:
		return "WEST"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Valid reports whether d is one of the four cardinal directions.
func (d Direction) Valid() bool {
	return d >= North && d <= West
}

// Left returns the direction 90 degrees counter-clockwise.
func (d Direction) Left() Direction {
	return (d + 3) % 4
}

// Right returns the direction 90 degrees clockwise.
func (d Direction) Right() Direction {
	return (d + 1) % 4
}

// Offset returns the unit step for d. North is +y and East is +x.
func (d Direction) Offset() (dx, dy int) {
	switch d {
	case North:
		return 0, 1
	case East:
		return 1, 0
	case South:
		return 0, -1
	case West:
		return -1, 0
	default:
		panic(fmt.Sprintf("robot: invalid direction %d", int(d)))
	}
}

// ParseDirection accepts the names NORTH/EAST/SOUTH/WEST (any case) and the
// single letters N/E/S/W.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NORTH", "N":
		return North, nil
	case "EAST", "E":
		return East, nil
	case "SOUTH", "S":
		return South, nil
	case "WEST", "W":
		return West, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
