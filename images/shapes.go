// Package images - Geometry, resampling and image sources for detection pipelines.
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Rect is a corner-form box: (X1, Y1) top-left, (X2, Y2) bottom-right.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Box is a top-left anchored box with an extent.
type Box struct {
	X, Y, Width, Height float32
}

// CenterToCorner converts a center-form box to corner form.
//
// Arguments:
//   - cx, cy: The center of the box.
//   - w, h: The width and height of the box.
//
// Returns:
//   - Rect: The same box expressed by its corners.
func CenterToCorner(cx, cy, w, h float32) Rect {
	return Rect{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// Scale multiplies the x coordinates by sx and the y coordinates by sy.
//
// Arguments:
//   - sx: The horizontal scale factor.
//   - sy: The vertical scale factor.
//
// Returns:
//   - Rect: The scaled rectangle.
func (r Rect) Scale(sx, sy float32) Rect {
	return Rect{
		X1: r.X1 * sx,
		Y1: r.Y1 * sy,
		X2: r.X2 * sx,
		Y2: r.Y2 * sy,
	}
}

// ClampedBox converts r to a Box whose origin is clamped to be non-negative.
//
// Only the top-left corner is clamped. The extent is measured between the
// unclamped corners and never goes negative, so a box that starts left of the
// origin keeps its full width. Nothing limits the box to the image's right or
// bottom edge.
//
// Returns:
//   - Box: The clamped box.
func (r Rect) ClampedBox() Box {
	return Box{
		X:      math32.Max(0, r.X1),
		Y:      math32.Max(0, r.Y1),
		Width:  math32.Max(0, r.X2-r.X1),
		Height: math32.Max(0, r.Y2-r.Y1),
	}
}

// Right returns the x coordinate of the right edge.
func (b Box) Right() float32 { return b.X + b.Width }

// Bottom returns the y coordinate of the bottom edge.
func (b Box) Bottom() float32 { return b.Y + b.Height }

// Area returns the box area.
func (b Box) Area() float32 { return b.Width * b.Height }

// Rectangle rounds the box to integer pixel bounds.
func (b Box) Rectangle() image.Rectangle {
	return image.Rect(
		int(math32.Round(b.X)), int(math32.Round(b.Y)),
		int(math32.Round(b.Right())), int(math32.Round(b.Bottom())),
	)
}

func (b Box) String() string {
	return fmt.Sprintf("(%.2f, %.2f) %.2fx%.2f", b.X, b.Y, b.Width, b.Height)
}

// CalculateIoU returns the intersection over union of two boxes.
//
// The intersection is max(0, minRight-maxLeft) * max(0, minBottom-maxTop) and the
// union is area(a) + area(b) - intersection. Disjoint boxes give 0, identical
// boxes give 1. When the union is zero (two degenerate boxes) the result is 0
// rather than a division by zero.
//
// Arguments:
//   - a: The first box.
//   - b: The second box.
//
// Returns:
//   - float32: A value in [0, 1].
//
// Example:
//
//	a := Box{X: 0, Y: 0, Width: 100, Height: 100}
//	b := Box{X: 50, Y: 50, Width: 100, Height: 100}
//	CalculateIoU(a, b) // 2500 / 17500 ≈ 0.142857
func CalculateIoU(a, b Box) float32 {
	iw := math32.Max(0, math32.Min(a.Right(), b.Right())-math32.Max(a.X, b.X))
	ih := math32.Max(0, math32.Min(a.Bottom(), b.Bottom())-math32.Max(a.Y, b.Y))
	intersection := iw * ih

	union := a.Area() + b.Area() - intersection
	if union == 0 {
		return 0
	}
	return intersection / union
}
