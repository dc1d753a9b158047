package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func getPNGBytes(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStretch(t *testing.T) {
	src := getTestImage(320, 240, color.RGBA{R: 200, G: 100, B: 50, A: 255})

	for _, filter := range Resamplers {
		t.Run(string(filter), func(t *testing.T) {
			out := Stretch(src, 64, 96, filter)
			bounds := out.Bounds()
			assert.Equal(t, 64, bounds.Dx())
			assert.Equal(t, 96, bounds.Dy())
			assert.Equal(t, image.Point{}, bounds.Min)

			// A flat image stays flat regardless of the kernel.
			r, g, b, _ := out.At(32, 48).RGBA()
			assert.InDelta(t, 200, r>>8, 1)
			assert.InDelta(t, 100, g>>8, 1)
			assert.InDelta(t, 50, b>>8, 1)
		})
	}
}

func TestStretch_SameSizeCopiesPixels(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 14, 12))
	src.Set(10, 10, color.RGBA{R: 255, A: 255})
	src.Set(13, 11, color.RGBA{B: 255, A: 255})

	out := Stretch(src, 4, 2, ResamplerBilinear)
	require.Equal(t, image.Rect(0, 0, 4, 2), out.Bounds())

	r, _, _, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(255), r>>8)
	_, _, b, _ := out.At(3, 1).RGBA()
	assert.Equal(t, uint32(255), b>>8)
}

func TestStretch_SameSizeKeepsStraightAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 10, B: 30, A: 3})
	src.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 128})

	out := Stretch(src, 2, 1, ResamplerBilinear)
	nrgba, ok := out.(*image.NRGBA)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 255, A: 128}, nrgba.NRGBAAt(1, 0))
	assert.InDelta(t, 200, int(nrgba.NRGBAAt(0, 0).R), 50)
}

func TestParseResampler(t *testing.T) {
	r, err := ParseResampler("")
	require.NoError(t, err)
	assert.Equal(t, ResamplerBilinear, r)

	r, err = ParseResampler("linear")
	require.NoError(t, err)
	assert.Equal(t, ResamplerLinear, r)

	_, err = ParseResampler("nearest")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	data := getPNGBytes(t, getTestImage(30, 20, color.RGBA{G: 255, A: 255}))

	img, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	_, err = Decode(nil)
	assert.Error(t, err)

	_, err = Decode([]byte("not an image"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := t.TempDir() + "/frame.png"
	require.NoError(t, os.WriteFile(path, getPNGBytes(t, getTestImage(8, 6, color.White)), 0o644))

	img, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(8, 6), img.Bounds().Size())

	_, err = Load(path + ".missing")
	assert.Error(t, err)
}
