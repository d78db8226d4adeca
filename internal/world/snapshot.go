package world

// Snapshot is a serializable copy of a world's state, used to report the
// result of a run.
type Snapshot struct {
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Walls   []WallSnapshot `json:"walls"`
	Beepers []BeeperPile   `json:"beepers"`
}

// WallSnapshot is the serializable form of a WallSegment.
type WallSnapshot struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	Vertical bool `json:"vertical"`
}

// Snapshot copies the current state.
func (w *World) Snapshot() Snapshot {
	walls := w.Walls()
	s := Snapshot{
		Width:   w.width,
		Height:  w.height,
		Walls:   make([]WallSnapshot, 0, len(walls)),
		Beepers: w.Beepers(),
	}
	for _, seg := range walls {
		s.Walls = append(s.Walls, WallSnapshot{
			X:        seg.Position.X,
			Y:        seg.Position.Y,
			Vertical: seg.Orientation == Vertical,
		})
	}
	return s
}
