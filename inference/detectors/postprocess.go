package detectors

import (
	"fmt"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"gorgonia.org/tensor"
)

// Layout is the memory order of a [1, d1, d2] detection output.
type Layout int

const (
	// LayoutInvalid marks an output that cannot be decoded.
	LayoutInvalid Layout = iota
	// LayoutChannelFirst is [1, channels, anchors]: each channel is contiguous.
	LayoutChannelFirst
	// LayoutAnchorFirst is [1, anchors, channels]: each anchor is contiguous.
	LayoutAnchorFirst
)

// minChannels is four box values plus at least one class score.
const minChannels = 5

func (l Layout) String() string {
	switch l {
	case LayoutChannelFirst:
		return "channel-first"
	case LayoutAnchorFirst:
		return "anchor-first"
	default:
		return "invalid"
	}
}

// ClassifyLayout decides how to read a detection output of the given shape.
//
// The smaller of d1 and d2 is the channel axis: d1 < d2 is channel-first, anything
// else is anchor-first. If that reading leaves fewer than five channels and the
// transposed reading does not, the transposed reading wins.
//
// Arguments:
//   - shape: The output tensor shape.
//
// Returns:
//   - Layout: The layout, LayoutInvalid if the output cannot be decoded.
//   - int: The number of anchors.
//   - int: The number of channels (4 box values followed by the class scores).
//
// @example
// ClassifyLayout([]int{1, 84, 8400}) // LayoutChannelFirst, 8400, 84
// ClassifyLayout([]int{1, 8400, 84}) // LayoutAnchorFirst, 8400, 84
func ClassifyLayout(shape []int) (Layout, int, int) {
	if len(shape) != 3 || shape[0] <= 0 || shape[1] <= 0 || shape[2] <= 0 {
		return LayoutInvalid, 0, 0
	}

	layout, anchors, channels := LayoutAnchorFirst, shape[1], shape[2]
	if shape[1] < shape[2] {
		layout, anchors, channels = LayoutChannelFirst, shape[2], shape[1]
	}
	if channels < minChannels {
		if anchors < minChannels {
			return LayoutInvalid, 0, 0
		}
		anchors, channels = channels, anchors
		if layout == LayoutChannelFirst {
			layout = LayoutAnchorFirst
		} else {
			layout = LayoutChannelFirst
		}
	}
	return layout, anchors, channels
}

// anchorView reads the first batch entry of an output one anchor at a time,
// whatever its layout.
type anchorView struct {
	data     []float32
	layout   Layout
	anchors  int
	channels int
}

func newAnchorView(data []float32, shape []int) (anchorView, bool) {
	layout, anchors, channels := ClassifyLayout(shape)
	if layout == LayoutInvalid || len(data) < anchors*channels {
		return anchorView{}, false
	}
	return anchorView{data: data, layout: layout, anchors: anchors, channels: channels}, true
}

// At returns the value of channel for anchor.
func (v anchorView) At(anchor, channel int) float32 {
	if v.layout == LayoutChannelFirst {
		return v.data[channel*v.anchors+anchor]
	}
	return v.data[anchor*v.channels+channel]
}

// Meta carries the sizes needed to map model coordinates back to the frame.
type Meta struct {
	InputWidth     int
	InputHeight    int
	OriginalWidth  int
	OriginalHeight int
}

func (m Meta) String() string {
	return fmt.Sprintf("%dx%d -> %dx%d", m.InputWidth, m.InputHeight, m.OriginalWidth, m.OriginalHeight)
}

// Decoder turns raw detection output into filtered, labeled candidates.
type Decoder struct {
	threshold float32
	allowed   models.ClassWhitelist
	labels    models.LabelTable
	recorder  Recorder
}

// NewDecoder creates a decoder for the thresholds, classes and labels in cfg.
//
// Arguments:
//   - cfg: The pipeline configuration.
//   - recorder: Receives every anchor's winning score. May be nil.
//
// Returns:
//   - *Decoder: The decoder.
func NewDecoder(cfg Config, recorder Recorder) *Decoder {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Decoder{
		threshold: cfg.ConfidenceThreshold,
		allowed:   cfg.Whitelist(),
		labels:    cfg.Labels,
		recorder:  recorder,
	}
}

// Decode extracts the candidates of a [1, d1, d2] output.
//
// For every anchor the class with the highest score wins (the first one on a tie).
// The anchor is kept only if that score is above the confidence threshold and the
// class is allowed. Its center-form box is converted to corners, scaled from
// input to original size on each axis independently, and clamped at the top-left.
//
// Arguments:
//   - output: The raw float32 output tensor.
//   - meta: The input and original frame sizes.
//
// Returns:
//   - []postprocess.Detection: The candidates in anchor order, unsorted and not
//     suppressed. Empty, never nil, when the output cannot be decoded.
func (d *Decoder) Decode(output *tensor.Dense, meta Meta) []postprocess.Detection {
	candidates := []postprocess.Detection{}
	if output == nil || meta.InputWidth <= 0 || meta.InputHeight <= 0 {
		return candidates
	}
	data, ok := output.Data().([]float32)
	if !ok {
		return candidates
	}
	view, ok := newAnchorView(data, output.Shape())
	if !ok {
		return candidates
	}

	sx := float32(meta.OriginalWidth) / float32(meta.InputWidth)
	sy := float32(meta.OriginalHeight) / float32(meta.InputHeight)

	for i := 0; i < view.anchors; i++ {
		classID, score := 0, float32(0)
		for c := 4; c < view.channels; c++ {
			if s := view.At(i, c); s > score {
				score = s
				classID = c - 4
			}
		}
		d.recorder.ObserveScore(i, classID, score)

		if score <= d.threshold || !d.allowed.Contains(classID) {
			continue
		}

		box := images.CenterToCorner(view.At(i, 0), view.At(i, 1), view.At(i, 2), view.At(i, 3)).
			Scale(sx, sy).
			ClampedBox()

		candidates = append(candidates, postprocess.Detection{
			X:          box.X,
			Y:          box.Y,
			Width:      box.Width,
			Height:     box.Height,
			Confidence: score,
			ClassID:    classID,
			Label:      d.labels.Name(classID),
		})
	}
	return candidates
}
