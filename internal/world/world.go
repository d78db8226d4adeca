// Package world models the grid a robot lives on: its bounds, the wall
// segments attached to cell edges, and the beeper piles resting on cells.
//
// A World is mutated only through its own methods. Walls are added during
// setup and never removed; beeper piles are created and destroyed as beepers
// are put down and picked up, and a pile never persists with a count of zero.
package world

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoBeeperHere is returned by PickBeeper when the cell holds no beepers.
	ErrNoBeeperHere = errors.New("no beeper here")

	// ErrOutOfBounds is returned by setup operations given a cell outside the grid.
	ErrOutOfBounds = errors.New("cell out of bounds")

	// ErrInvalidSize is returned by New for non-positive dimensions.
	ErrInvalidSize = errors.New("world dimensions must be positive")

	// ErrNotAdjacent is the panic value of IsLegalMove when the two cells do
	// not share an edge.
	ErrNotAdjacent = errors.New("cells are not edge-adjacent")
)

// Cell is a grid coordinate. X grows east, Y grows north.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String implements fmt.Stringer.
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Add returns the cell offset by dx, dy.
func (c Cell) Add(dx, dy int) Cell {
	return Cell{X: c.X + dx, Y: c.Y + dy}
}

// Orientation is the axis a wall segment runs along.
type Orientation int

const (
	// Horizontal walls lie on the south edge of their cell and block
	// north/south movement.
	Horizontal Orientation = iota
	// Vertical walls lie on the west edge of their cell and block
	// east/west movement.
	Vertical
)

// String implements fmt.Stringer.
func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	default:
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
}

// WallSegment is a unit-length barrier attached to one edge of a cell.
type WallSegment struct {
	Position    Cell
	Orientation Orientation
}

// BeeperPile is a cell and the number of beepers resting on it.
type BeeperPile struct {
	Cell  Cell `json:"cell"`
	Count int  `json:"count"`
}

// World is the grid, its walls and its beepers. The zero value is not usable;
// construct with New.
type World struct {
	width   int
	height  int
	walls   map[WallSegment]struct{}
	beepers map[Cell]int
}

// New returns an empty world of the given size.
func New(width, height int) (*World, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return &World{
		width:   width,
		height:  height,
		walls:   make(map[WallSegment]struct{}),
		beepers: make(map[Cell]int),
	}, nil
}

// Width returns the number of columns.
func (w *World) Width() int { return w.width }

// Height returns the number of rows.
func (w *World) Height() int { return w.height }

// InBounds reports whether c lies on the grid.
func (w *World) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < w.width && c.Y >= 0 && c.Y < w.height
}

// AddWall records a wall segment. Adding the same segment twice is a no-op.
func (w *World) AddWall(seg WallSegment) error {
	if !w.InBounds(seg.Position) {
		return fmt.Errorf("wall at %v: %w", seg.Position, ErrOutOfBounds)
	}
	if seg.Orientation != Horizontal && seg.Orientation != Vertical {
		return fmt.Errorf("wall at %v: invalid orientation %v", seg.Position, seg.Orientation)
	}
	w.walls[seg] = struct{}{}
	return nil
}

// AddBeepers places n beepers on c as part of world setup.
func (w *World) AddBeepers(c Cell, n int) error {
	if !w.InBounds(c) {
		return fmt.Errorf("beepers at %v: %w", c, ErrOutOfBounds)
	}
	if n < 1 {
		return fmt.Errorf("beepers at %v: count must be at least 1, got %d", c, n)
	}
	w.beepers[c] += n
	return nil
}

// IsLegalMove reports whether a robot standing on from may step onto to.
//
// The move is illegal if to is off the grid, or if a wall sits on the edge
// the two cells share. That edge belongs to whichever cell has the larger
// coordinate along the axis of movement: a vertical wall at (x, y) separates
// (x-1, y) from (x, y), a horizontal wall at (x, y) separates (x, y-1) from
// (x, y).
//
// from and to must be edge-adjacent; IsLegalMove panics with ErrNotAdjacent
// otherwise.
func (w *World) IsLegalMove(from, to Cell) bool {
	dx, dy := to.X-from.X, to.Y-from.Y
	if abs(dx)+abs(dy) != 1 {
		panic(fmt.Errorf("%w: %v -> %v", ErrNotAdjacent, from, to))
	}
	if !w.InBounds(to) {
		return false
	}
	var edge WallSegment
	if dy == 0 {
		edge = WallSegment{Position: Cell{X: max(from.X, to.X), Y: from.Y}, Orientation: Vertical}
	} else {
		edge = WallSegment{Position: Cell{X: from.X, Y: max(from.Y, to.Y)}, Orientation: Horizontal}
	}
	_, blocked := w.walls[edge]
	return !blocked
}

// PutBeeper adds one beeper to the pile at c, creating the pile if needed.
func (w *World) PutBeeper(c Cell) {
	w.beepers[c]++
}

// PickBeeper removes one beeper from the pile at c. The pile disappears when
// its last beeper is taken.
func (w *World) PickBeeper(c Cell) error {
	n, ok := w.beepers[c]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoBeeperHere, c)
	}
	if n <= 1 {
		delete(w.beepers, c)
	} else {
		w.beepers[c] = n - 1
	}
	return nil
}

// BeeperCount returns the number of beepers on c.
func (w *World) BeeperCount(at Cell) int {
	return w.beepers[at]
}

// TotalBeepers returns the number of beepers on the whole grid.
func (w *World) TotalBeepers() int {
	var total int
	for _, n := range w.beepers {
		total += n
	}
	return total
}

// Walls returns every wall segment, ordered by position then orientation.
func (w *World) Walls() []WallSegment {
	out := make([]WallSegment, 0, len(w.walls))
	for seg := range w.walls {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Position.Y != b.Position.Y {
			return a.Position.Y < b.Position.Y
		}
		if a.Position.X != b.Position.X {
			return a.Position.X < b.Position.X
		}
		return a.Orientation < b.Orientation
	})
	return out
}

// Beepers returns every pile, ordered by row then column.
func (w *World) Beepers() []BeeperPile {
	out := make([]BeeperPile, 0, len(w.beepers))
	for c, n := range w.beepers {
		out = append(out, BeeperPile{Cell: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Cell, out[j].Cell
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
