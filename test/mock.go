// Package test - Deterministic frames and model sessions for pipeline tests.
package test

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// MockFrameGenerator creates deterministic test frames for idempotent testing.
//
// @example
// gen := NewMockFrameGenerator(640, 480)
// frame := gen.GenerateObjectFrame(100, 100, 50)
type MockFrameGenerator struct {
	width  int
	height int
}

// NewMockFrameGenerator creates a new frame generator with specified dimensions.
//
// Arguments:
// - width: Frame width in pixels.
// - height: Frame height in pixels.
//
// Returns:
// - A configured MockFrameGenerator instance.
func NewMockFrameGenerator(width, height int) *MockFrameGenerator {
	return &MockFrameGenerator{width: width, height: height}
}

// GenerateStaticFrame creates a mid-gray frame.
func (g *MockFrameGenerator) GenerateStaticFrame() *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(color.RGBA{128, 128, 128, 255}), image.Point{}, draw.Src)
	return frame
}

// GenerateObjectFrame creates a frame with a bright square at a specific position.
//
// Arguments:
// - x: X coordinate of the square.
// - y: Y coordinate of the square.
// - size: Side of the square in pixels.
//
// Returns:
// - The frame.
func (g *MockFrameGenerator) GenerateObjectFrame(x, y, size int) *image.RGBA {
	frame := g.GenerateStaticFrame()
	rect := image.Rect(x, y, x+size, y+size)
	draw.Draw(frame, rect, image.NewUniform(color.RGBA{255, 255, 255, 255}), image.Point{}, draw.Src)
	return frame
}

// GenerateObjectMat is GenerateObjectFrame as a BGR OpenCV frame. The caller
// must Close it.
func (g *MockFrameGenerator) GenerateObjectMat(x, y, size int) (gocv.Mat, error) {
	return gocv.ImageToMatRGB(g.GenerateObjectFrame(x, y, size))
}

// Anchor is one synthetic model prediction in input-pixel space.
type Anchor struct {
	CX, CY, W, H float32
	ClassID      int
	Score        float32
}

// YOLOOutput builds a [1, channels, anchors] tensor (channelFirst) or a
// [1, anchors, channels] tensor with 4 box channels followed by numClasses scores.
// Every class other than an anchor's ClassID scores zero.
func YOLOOutput(anchors []Anchor, numClasses int, channelFirst bool) *tensor.Dense {
	channels := 4 + numClasses
	data := make([]float32, len(anchors)*channels)
	at := func(anchor, channel int) *float32 {
		if channelFirst {
			return &data[channel*len(anchors)+anchor]
		}
		return &data[anchor*channels+channel]
	}
	for i, a := range anchors {
		*at(i, 0) = a.CX
		*at(i, 1) = a.CY
		*at(i, 2) = a.W
		*at(i, 3) = a.H
		if a.ClassID >= 0 && a.ClassID < numClasses {
			*at(i, 4+a.ClassID) = a.Score
		}
	}

	shape := []int{1, len(anchors), channels}
	if channelFirst {
		shape = []int{1, channels, len(anchors)}
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// MockSession is a model session that returns a fixed output.
type MockSession struct {
	Inputs  []string
	Outputs []string
	Output  *tensor.Dense
	Err     error

	mu     sync.Mutex
	calls  int
	last   map[string]*tensor.Dense
	closed bool
}

// NewMockSession creates a session named like an exported YOLOv8 model.
func NewMockSession(output *tensor.Dense) *MockSession {
	return &MockSession{
		Inputs:  []string{"images"},
		Outputs: []string{"output0"},
		Output:  output,
	}
}

// InputNames returns the declared input names.
func (s *MockSession) InputNames() []string { return s.Inputs }

// OutputNames returns the declared output names.
func (s *MockSession) OutputNames() []string { return s.Outputs }

// Run records inputs and returns Output under the first output name.
func (s *MockSession) Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.calls++
	s.last = inputs
	if s.Err != nil {
		return nil, s.Err
	}
	return map[string]*tensor.Dense{s.Outputs[0]: s.Output}, nil
}

// Close marks the session closed.
func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Calls returns the number of Run calls.
func (s *MockSession) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// LastInputs returns the inputs of the latest Run call.
func (s *MockSession) LastInputs() map[string]*tensor.Dense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Closed reports whether Close was called.
func (s *MockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
