package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/pkg/errors"
)

// inputKind is the source of frames.
type inputKind int

const (
	inputImage inputKind = iota
	inputDir
	inputVideo
	inputCamera
	inputServe
)

func (k inputKind) String() string {
	switch k {
	case inputImage:
		return "image"
	case inputDir:
		return "dir"
	case inputVideo:
		return "video"
	case inputCamera:
		return "camera"
	case inputServe:
		return "serve"
	default:
		return "unknown"
	}
}

// inputConfig is the validated frame source.
type inputConfig struct {
	kind     inputKind
	path     string
	deviceID int
}

var supportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}

// input validates that exactly one frame source was given.
func (o options) input() (inputConfig, error) {
	var found []inputConfig
	if o.imagePath != "" {
		found = append(found, inputConfig{kind: inputImage, path: o.imagePath})
	}
	if o.dirPath != "" {
		found = append(found, inputConfig{kind: inputDir, path: o.dirPath})
	}
	if o.videoPath != "" {
		found = append(found, inputConfig{kind: inputVideo, path: o.videoPath})
	}
	if o.camera >= 0 {
		found = append(found, inputConfig{kind: inputCamera, deviceID: o.camera})
	}
	if o.serveAddr != "" {
		found = append(found, inputConfig{kind: inputServe, path: o.serveAddr})
	}

	switch len(found) {
	case 0:
		return inputConfig{}, errors.New("one of -image, -dir, -video, -camera or -serve is required")
	case 1:
	default:
		kinds := make([]string, len(found))
		for i, f := range found {
			kinds[i] = "-" + f.kind.String()
		}
		return inputConfig{}, errors.Errorf("only one input may be given, got %s", strings.Join(kinds, ", "))
	}

	in := found[0]
	if o.bench > 0 && in.kind != inputImage && in.kind != inputDir {
		return in, errors.New("-bench needs -image or -dir frames")
	}
	switch in.kind {
	case inputImage:
		if !images.IsImageFile(in.path) {
			return in, errors.Errorf("unsupported image extension %q, supported: %v", filepath.Ext(in.path), images.Extensions)
		}
		return in, validateFile(in.path)
	case inputVideo:
		if !hasExtension(in.path, supportedVideoExtensions) {
			return in, errors.Errorf("unsupported video extension %q, supported: %v", filepath.Ext(in.path), supportedVideoExtensions)
		}
		return in, validateFile(in.path)
	case inputDir:
		st, err := os.Stat(in.path)
		if err != nil {
			return in, errors.Wrap(err, "dir")
		}
		if !st.IsDir() {
			return in, errors.Errorf("%s is not a directory", in.path)
		}
	}
	return in, nil
}

// validateFile checks that path exists and is a regular file.
func validateFile(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "file not found")
	}
	if st.IsDir() {
		return errors.Errorf("%s is a directory", path)
	}
	return nil
}

func hasExtension(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
