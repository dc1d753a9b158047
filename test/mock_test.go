package test

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestYOLOOutput(t *testing.T) {
	anchors := []Anchor{
		{CX: 1, CY: 2, W: 3, H: 4, ClassID: 1, Score: 0.9},
		{CX: 5, CY: 6, W: 7, H: 8, ClassID: 0, Score: 0.4},
	}

	anchorFirst := YOLOOutput(anchors, 2, false)
	assert.Equal(t, tensor.Shape{1, 2, 6}, anchorFirst.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 0, 0.9, 5, 6, 7, 8, 0.4, 0}, anchorFirst.Data())

	channelFirst := YOLOOutput(anchors, 2, true)
	assert.Equal(t, tensor.Shape{1, 6, 2}, channelFirst.Shape())
	assert.Equal(t, []float32{1, 5, 2, 6, 3, 7, 4, 8, 0, 0.4, 0.9, 0}, channelFirst.Data())
}

func TestMockSession(t *testing.T) {
	out := YOLOOutput([]Anchor{{CX: 1, CY: 1, W: 1, H: 1, Score: 0.5}}, 1, false)
	s := NewMockSession(out)

	res, err := s.Run(context.Background(), map[string]*tensor.Dense{"images": out})
	require.NoError(t, err)
	assert.Same(t, out, res["output0"])
	assert.Equal(t, 1, s.Calls())
	assert.Contains(t, s.LastInputs(), "images")

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	_, err = s.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestMockFrameGenerator(t *testing.T) {
	gen := NewMockFrameGenerator(64, 48)
	frame := gen.GenerateObjectFrame(10, 10, 5)

	assert.Equal(t, 64, frame.Bounds().Dx())
	assert.Equal(t, 48, frame.Bounds().Dy())
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, frame.RGBAAt(12, 12))
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, frame.RGBAAt(0, 0))
}
