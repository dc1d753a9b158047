// Package postprocess - Suppression and ranking of decoded detections.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-yolo/images"
)

// Detection is a labeled box in original-image pixel space.
type Detection struct {
	// X and Y are the top-left corner, never negative.
	X float32 `json:"x"`
	Y float32 `json:"y"`
	// Width and Height are never negative.
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
	// Confidence is the winning class score.
	Confidence float32 `json:"confidence"`
	// ClassID is the zero-based class index.
	ClassID int `json:"classId"`
	// Label is the resolved class name.
	Label string `json:"label"`
}

// Box returns the detection's geometry.
func (d Detection) Box() images.Box {
	return images.Box{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height}
}

func (d Detection) String() string {
	return fmt.Sprintf("Object %s (confidence %f): %s", d.Label, d.Confidence, d.Box())
}
