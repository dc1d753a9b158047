// Package preprocess - Converts frames into model input tensors.
package preprocess

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-yolo/images"
	"gorgonia.org/tensor"
)

// Channels is the number of color planes in an input tensor.
const Channels = 3

// Result is a prepared input tensor and the size of the frame it came from.
type Result struct {
	// Tensor is float32 with shape [1, 3, height, width], channel-planar.
	Tensor *tensor.Dense
	// OriginalWidth is the source width before stretching.
	OriginalWidth int
	// OriginalHeight is the source height before stretching.
	OriginalHeight int
}

// Preprocess stretches src onto an inputWidth x inputHeight canvas and lays it
// out as three contiguous planes (all red, then all green, then all blue), each
// sample divided by 255. Samples are read straight (not alpha-premultiplied) and
// alpha is then discarded.
//
// Arguments:
//   - src: The source frame.
//   - inputWidth: The model input width.
//   - inputHeight: The model input height.
//   - filter: The resampler used for the stretch.
//
// Returns:
//   - Result: The tensor and the original frame size.
//
// @example
// res := Preprocess(frame, 640, 640, images.ResamplerBilinear)
// fmt.Println(res.Tensor.Shape()) // (1, 3, 640, 640)
func Preprocess(src image.Image, inputWidth, inputHeight int, filter images.Resampler) Result {
	bounds := src.Bounds()
	canvas := images.Stretch(src, inputWidth, inputHeight, filter)
	origin := canvas.Bounds().Min

	channelSize := inputWidth * inputHeight
	data := make([]float32, Channels*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	i := 0
	for y := 0; y < inputHeight; y++ {
		for x := 0; x < inputWidth; x++ {
			c := color.NRGBAModel.Convert(canvas.At(origin.X+x, origin.Y+y)).(color.NRGBA)
			red[i] = float32(c.R) / 255.0
			green[i] = float32(c.G) / 255.0
			blue[i] = float32(c.B) / 255.0
			i++
		}
	}

	return Result{
		Tensor: tensor.New(
			tensor.WithShape(1, Channels, inputHeight, inputWidth),
			tensor.WithBacking(data),
		),
		OriginalWidth:  bounds.Dx(),
		OriginalHeight: bounds.Dy(),
	}
}
