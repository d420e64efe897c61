package canvas

import (
	"errors"
	"fmt"

	"kibako/internal/domain"
)

// Alignment is a bulk alignment directive.
type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignHCenter Alignment = "h-center"
	AlignRight   Alignment = "right"
	AlignTop     Alignment = "top"
	AlignVCenter Alignment = "v-center"
	AlignBottom  Alignment = "bottom"
)

var ErrUnknownAlignment = errors.New("unknown alignment")

func (a Alignment) Valid() bool {
	switch a {
	case AlignLeft, AlignHCenter, AlignRight, AlignTop, AlignVCenter, AlignBottom:
		return true
	}
	return false
}

// PositionUpdate moves one part.
type PositionUpdate struct {
	PartID   int64
	Position domain.Point
}

// Envelope is the bounding rectangle of parts.
func Envelope(parts []domain.Part) (Rect, bool) {
	if len(parts) == 0 {
		return Rect{}, false
	}
	env := PartRect(parts[0])
	for _, p := range parts[1:] {
		env = env.Union(PartRect(p))
	}
	return env, true
}

// Align computes the moves that align the selected parts against their
// envelope. Only parts whose position changes are returned; selected ids
// missing from parts are ignored.
func Align(parts []domain.Part, selected []int64, a Alignment) ([]PositionUpdate, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlignment, a)
	}
	targets := NewSelection(selected...).Parts(parts)
	env, ok := Envelope(targets)
	if !ok {
		return nil, nil
	}

	var updates []PositionUpdate
	for _, p := range targets {
		next := p.Position
		switch a {
		case AlignLeft:
			next.X = env.X
		case AlignHCenter:
			next.X = env.X + env.W/2 - p.Width/2
		case AlignRight:
			next.X = env.X + env.W - p.Width
		case AlignTop:
			next.Y = env.Y
		case AlignVCenter:
			next.Y = env.Y + env.H/2 - p.Height/2
		case AlignBottom:
			next.Y = env.Y + env.H - p.Height
		}
		if next != p.Position {
			updates = append(updates, PositionUpdate{PartID: p.ID, Position: next})
		}
	}
	return updates, nil
}

// CanAlign reports whether the directive would move anything.
func CanAlign(parts []domain.Part, selected []int64, a Alignment) bool {
	updates, err := Align(parts, selected, a)
	return err == nil && len(updates) > 0
}
