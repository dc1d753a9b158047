package images

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Resampler selects the interpolation used to stretch a frame onto the model canvas.
type Resampler string

const (
	// ResamplerBilinear uses nfnt/resize bilinear interpolation.
	ResamplerBilinear Resampler = "bilinear"
	// ResamplerLanczos uses nfnt/resize Lanczos3 interpolation.
	ResamplerLanczos Resampler = "lanczos"
	// ResamplerLinear uses disintegration/imaging linear filtering.
	ResamplerLinear Resampler = "linear"
)

// Resamplers lists every supported resampler.
var Resamplers = []Resampler{ResamplerBilinear, ResamplerLanczos, ResamplerLinear}

// ParseResampler validates a resampler name. The empty string selects bilinear.
//
// Arguments:
//   - name: The resampler name.
//
// Returns:
//   - Resampler: The parsed resampler.
//   - error: An error if the name is unknown.
func ParseResampler(name string) (Resampler, error) {
	if name == "" {
		return ResamplerBilinear, nil
	}
	for _, r := range Resamplers {
		if string(r) == name {
			return r, nil
		}
	}
	return "", errors.Errorf("unknown resampler %q", name)
}

// Stretch draws src onto a width x height canvas, ignoring its aspect ratio.
//
// The whole source is mapped onto the whole canvas, so x and y are scaled
// independently. Boxes decoded from the model must be rescaled with the same
// independent factors. A source that already has the target size is copied
// without resampling onto a non-premultiplied canvas.
//
// Arguments:
//   - src: The source image.
//   - width: The canvas width.
//   - height: The canvas height.
//   - filter: The resampler to use.
//
// Returns:
//   - image.Image: The canvas, anchored at (0, 0).
func Stretch(src image.Image, width, height int, filter Resampler) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)
		return canvas
	}

	switch filter {
	case ResamplerLanczos:
		return resize.Resize(uint(width), uint(height), src, resize.Lanczos3)
	case ResamplerLinear:
		return imaging.Resize(src, width, height, imaging.Linear)
	default:
		return resize.Resize(uint(width), uint(height), src, resize.Bilinear)
	}
}
