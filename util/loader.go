// Package util - Loads batches of image files for offline detection runs.
package util

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/pkg/errors"
)

// NoFrame marks a file whose name carries no frame number.
const NoFrame = -1

var frameNumber = regexp.MustCompile(`(\d+)\D*$`)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number parsed from the file name, or NoFrame.
	Frame int
}

// ParseFrame returns the last run of digits in a file name, ignoring its
// extension, e.g. 12 for "frame-0012.jpg". Names without digits yield NoFrame.
func ParseFrame(name string) int {
	base := name[:len(name)-len(filepath.Ext(name))]
	m := frameNumber.FindStringSubmatch(base)
	if m == nil {
		return NoFrame
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return NoFrame
	}
	return n
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Files are ordered by frame number; files without one come last, by name.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read directory %s", dir)
	}

	files := make([]ImageFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !images.IsImageFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", path)
		}
		files = append(files, ImageFile{
			Path:  path,
			Data:  data,
			Frame: ParseFrame(entry.Name()),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if (a.Frame == NoFrame) != (b.Frame == NoFrame) {
			return b.Frame == NoFrame
		}
		if a.Frame != b.Frame {
			return a.Frame < b.Frame
		}
		return a.Path < b.Path
	})

	return files, nil
}
