package images

import (
	"bytes"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Extensions lists the file extensions Load can decode.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff"}

// IsImageFile reports whether path has one of Extensions, ignoring case.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads and decodes an image file, applying its EXIF orientation.
//
// Arguments:
//   - path: The image file path.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the file cannot be opened or decoded.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load image %s", path)
	}
	return img, nil
}

// Decode decodes encoded image bytes, applying their EXIF orientation.
//
// Arguments:
//   - data: The encoded image (JPEG, PNG, GIF, BMP or TIFF).
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the bytes are empty or cannot be decoded.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("image data is empty")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode image")
	}
	return img, nil
}

// FromMat converts a BGR camera frame into an image.Image.
//
// Arguments:
//   - mat: The frame captured by gocv.
//
// Returns:
//   - image.Image: A copy of the frame's pixels.
//   - error: An error if the frame is empty or has an unsupported type.
func FromMat(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, errors.New("frame is empty")
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert frame")
	}
	return img, nil
}
