package engine

import (
	"math"

	"github.com/kcwdesign/kcw/backend-go/internal/document"
)

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// boxEpsilon absorbs rounding from the frame/inverse round trip so corners stay inside.
const boxEpsilon = 1e-9

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// RotatePoint rotates (px, py) about (cx, cy) by deg degrees, clockwise on screen.
func RotatePoint(px, py, cx, cy, deg float64) (float64, float64) {
	return Translate(cx, cy).
		Multiply(RotateDegrees(deg)).
		Multiply(Translate(-cx, -cy)).
		TransformPoint(px, py)
}

// PointInLocalBox reports whether the page-space point lands inside g's unrotated box. The
// point is carried through the inverse of LocalFrame, the same frame drawing uses. Edges are
// inclusive.
func PointInLocalBox(px, py float64, g document.Geometry) bool {
	rx, ry := LocalFrame(g).Invert().TransformPoint(px, py)
	return rx >= -boxEpsilon && ry >= -boxEpsilon && rx <= g.W+boxEpsilon && ry <= g.H+boxEpsilon
}

// AngleFromPivot returns the direction from the pivot to the point in degrees: 0 along +x,
// 90 straight down.
func AngleFromPivot(px, py, pivotX, pivotY float64) float64 {
	return toDegrees(math.Atan2(py-pivotY, px-pivotX))
}

// Bounds returns the axis-aligned page-space box around g after rotation.
func Bounds(g document.Geometry) Rect {
	return LocalFrame(g).TransformRect(Rect{Width: g.W, Height: g.H})
}
