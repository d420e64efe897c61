// Package canvas holds the client-side geometry engines of the board:
// selection, alignment, marquee selection, containment and the camera.
// Everything here is pure and operates on a snapshot of parts.
package canvas

import (
	"math"

	"kibako/internal/domain"

	"github.com/go-gl/mathgl/mgl64"
)

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	X, Y, W, H float64
}

// PartRect returns the bounding rectangle of a part.
func PartRect(p domain.Part) Rect {
	return Rect{X: p.Position.X, Y: p.Position.Y, W: p.Width, H: p.Height}
}

// RectFromPoints spans the rectangle between two drag corners, in any order.
func RectFromPoints(a, b mgl64.Vec2) Rect {
	return Rect{
		X: math.Min(a.X(), b.X()),
		Y: math.Min(a.Y(), b.Y()),
		W: math.Abs(b.X() - a.X()),
		H: math.Abs(b.Y() - a.Y()),
	}
}

// Empty reports a rectangle with no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Overlaps is the strict AABB overlap test; touching edges do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && r.X+r.W > o.X && r.Y < o.Y+o.H && r.Y+r.H > o.Y
}

// Contains reports whether pt lies inside r, edges included.
func (r Rect) Contains(pt mgl64.Vec2) bool {
	return pt.X() >= r.X && pt.X() <= r.X+r.W && pt.Y() >= r.Y && pt.Y() <= r.Y+r.H
}

func (r Rect) Center() mgl64.Vec2 {
	return mgl64.Vec2{r.X + r.W/2, r.Y + r.H/2}
}

// Union is the smallest rectangle enclosing both.
func (r Rect) Union(o Rect) Rect {
	minX, minY := math.Min(r.X, o.X), math.Min(r.Y, o.Y)
	maxX, maxY := math.Max(r.X+r.W, o.X+o.W), math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// index maps part ids to their position in parts.
func index(parts []domain.Part) map[int64]int {
	m := make(map[int64]int, len(parts))
	for i, p := range parts {
		m[p.ID] = i
	}
	return m
}
