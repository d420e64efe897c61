package canvas

import (
	"math"

	"kibako/internal/config"
	"kibako/internal/domain"

	"github.com/go-gl/mathgl/mgl64"
)

// Camera is the viewport of one client: X and Y are the canvas coordinates
// of the viewport's top-left corner.
type Camera struct {
	X, Y  float64
	Scale float64
}

// Viewport is the on-screen size of the canvas element in pixels.
type Viewport struct {
	Width, Height float64
}

// Bounds are the inclusive limits of the camera position at one scale.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// CameraLimits holds the zoom and pan constants of the board.
type CameraLimits struct {
	CanvasWidth       float64
	CanvasHeight      float64
	MinScale          float64
	MaxScale          float64
	Step              float64
	WheelStep         float64
	BaseRatio         float64
	MinScaleForMargin float64
}

func LimitsFromConfig(c config.CameraConfig) CameraLimits {
	return CameraLimits{
		CanvasWidth:       c.CanvasWidth,
		CanvasHeight:      c.CanvasHeight,
		MinScale:          c.MinScale,
		MaxScale:          c.MaxScale,
		Step:              c.Step,
		WheelStep:         c.WheelStep,
		BaseRatio:         c.BaseRatio,
		MinScaleForMargin: c.MinScaleForMargin,
	}
}

// ClampScale bounds s to [MinScale, MaxScale].
func (l CameraLimits) ClampScale(s float64) float64 {
	return mgl64.Clamp(s, l.MinScale, l.MaxScale)
}

// Margin is how far past each canvas edge the viewport may pan. It grows as
// the scale shrinks, down to MinScaleForMargin.
func (l CameraLimits) Margin(scale float64, vp Viewport) mgl64.Vec2 {
	s := math.Max(scale, l.MinScaleForMargin)
	return mgl64.Vec2{
		l.BaseRatio * math.Max(vp.Width, vp.Width/s),
		l.BaseRatio * math.Max(vp.Height, vp.Height/s),
	}
}

// Constraints returns the camera position bounds at scale. On an axis where
// the visible area exceeds the canvas plus margins the bounds collapse to
// the centered position.
func (l CameraLimits) Constraints(scale float64, vp Viewport) Bounds {
	scale = l.ClampScale(scale)
	margin := l.Margin(scale, vp)
	minX, maxX := axisBounds(l.CanvasWidth, margin.X(), vp.Width/scale)
	minY, maxY := axisBounds(l.CanvasHeight, margin.Y(), vp.Height/scale)
	return Bounds{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
}

func axisBounds(canvas, margin, visible float64) (float64, float64) {
	lo, hi := -margin, canvas+margin-visible
	if hi < lo {
		mid := (lo + hi) / 2
		return mid, mid
	}
	return lo, hi
}

// ConstrainPosition clamps a requested position into the bounds at scale.
func (l CameraLimits) ConstrainPosition(x, y, scale float64, vp Viewport) (float64, float64) {
	b := l.Constraints(scale, vp)
	return mgl64.Clamp(x, b.MinX, b.MaxX), mgl64.Clamp(y, b.MinY, b.MaxY)
}

// Constrain returns cam with its scale and position clamped.
func (l CameraLimits) Constrain(cam Camera, vp Viewport) Camera {
	cam.Scale = l.ClampScale(cam.Scale)
	cam.X, cam.Y = l.ConstrainPosition(cam.X, cam.Y, cam.Scale, vp)
	return cam
}

func (l CameraLimits) CanZoomIn(cam Camera) bool  { return cam.Scale < l.MaxScale }
func (l CameraLimits) CanZoomOut(cam Camera) bool { return cam.Scale > l.MinScale }

// Zoom rescales by factor keeping the viewport center fixed.
func (l CameraLimits) Zoom(cam Camera, factor float64, vp Viewport) Camera {
	next := l.ClampScale(cam.Scale * factor)
	if next == cam.Scale {
		return cam
	}
	center := mgl64.Vec2{cam.X + vp.Width/(2*cam.Scale), cam.Y + vp.Height/(2*cam.Scale)}
	return l.lookAt(center, next, vp)
}

func (l CameraLimits) ZoomIn(cam Camera, vp Viewport) Camera  { return l.Zoom(cam, l.Step, vp) }
func (l CameraLimits) ZoomOut(cam Camera, vp Viewport) Camera { return l.Zoom(cam, 1/l.Step, vp) }

// Wheel zooms by WheelStep: in for a negative delta, out for a positive one.
func (l CameraLimits) Wheel(cam Camera, deltaY float64, vp Viewport) Camera {
	switch {
	case deltaY < 0:
		return l.Zoom(cam, l.WheelStep, vp)
	case deltaY > 0:
		return l.Zoom(cam, 1/l.WheelStep, vp)
	}
	return cam
}

// Pan moves the camera by a screen-space delta.
func (l CameraLimits) Pan(cam Camera, dx, dy float64, vp Viewport) Camera {
	cam.X -= dx / cam.Scale
	cam.Y -= dy / cam.Scale
	return l.Constrain(cam, vp)
}

// ScreenToCanvas converts a viewport pixel position to canvas coordinates.
func (cam Camera) ScreenToCanvas(pt mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{cam.X, cam.Y}.Add(pt.Mul(1 / cam.Scale))
}

// Center places the camera on the most recently created part, or on the
// canvas midpoint when there are no parts.
func (l CameraLimits) Center(parts []domain.Part, scale float64, vp Viewport) Camera {
	target := mgl64.Vec2{l.CanvasWidth / 2, l.CanvasHeight / 2}
	if len(parts) > 0 {
		latest := parts[0]
		for _, p := range parts[1:] {
			if p.CreatedAt.After(latest.CreatedAt) {
				latest = p
			}
		}
		target = PartRect(latest).Center()
	}
	return l.lookAt(target, l.ClampScale(scale), vp)
}

func (l CameraLimits) lookAt(center mgl64.Vec2, scale float64, vp Viewport) Camera {
	cam := Camera{
		X:     center.X() - vp.Width/(2*scale),
		Y:     center.Y() - vp.Height/(2*scale),
		Scale: scale,
	}
	return l.Constrain(cam, vp)
}
