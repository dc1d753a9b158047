// Package models - Class label tables and class whitelists.
package models

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// LabelTable maps a class index to its human-readable name. Order is significant:
// the index is the semantic key.
type LabelTable []string

// Name returns the label for idx, or "Class {idx}" when idx is outside the table.
//
// Arguments:
//   - idx: The class index produced by the model.
//
// Returns:
//   - string: The label.
func (t LabelTable) Name(idx int) string {
	if idx >= 0 && idx < len(t) {
		return t[idx]
	}
	return fmt.Sprintf("Class %d", idx)
}

// Index returns the index of name, or -1 if it is not in the table.
func (t LabelTable) Index(name string) int {
	for i, n := range t {
		if n == name {
			return i
		}
	}
	return -1
}

// LoadLabels reads a label file with one class name per line, in class order.
// Trailing whitespace is trimmed; blank lines keep their index.
//
// Arguments:
//   - path: The label file, e.g. coco.names.
//
// Returns:
//   - LabelTable: The labels.
//   - error: An error if the file cannot be read.
func LoadLabels(path string) (LabelTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open labels %s", path)
	}
	defer f.Close()

	labels := LabelTable{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read labels %s", path)
	}
	return labels, nil
}

// ClassWhitelist is the set of class indices a pipeline may report.
type ClassWhitelist map[int]struct{}

// NewClassWhitelist builds a whitelist from class indices.
//
// Arguments:
//   - ids: The allowed class indices. Duplicates are ignored.
//
// Returns:
//   - ClassWhitelist: The whitelist.
func NewClassWhitelist(ids ...int) ClassWhitelist {
	w := make(ClassWhitelist, len(ids))
	for _, id := range ids {
		w[id] = struct{}{}
	}
	return w
}

// Contains reports whether id is allowed.
func (w ClassWhitelist) Contains(id int) bool {
	_, ok := w[id]
	return ok
}

// IDs returns the allowed indices in ascending order.
func (w ClassWhitelist) IDs() []int {
	ids := make([]int, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// YOLOClasses are the 80 COCO classes in the order YOLO models emit them
// (no background class).
var YOLOClasses = LabelTable{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse",
	"sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie",
	"suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut",
	"cake", "chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "book",
	"clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// DefaultAllowedClasses is the desk-scene subset of YOLOClasses: person, bottle,
// cup, bowl, chair, dining table, laptop, mouse, remote, keyboard, cell phone, book.
var DefaultAllowedClasses = []int{0, 39, 41, 45, 56, 60, 63, 64, 65, 66, 67, 73}
