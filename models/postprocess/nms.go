package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-yolo/images"
)

// SortByConfidence returns a copy of detections sorted by descending confidence.
// Entries with equal confidence keep their relative order.
func SortByConfidence(detections []Detection) []Detection {
	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted
}

// Suppress performs greedy per-class Non-Maximum Suppression.
//
// Candidates are stably sorted by descending confidence. Each candidate that has
// not been suppressed is kept, and every later candidate of the same class whose
// IoU with it exceeds iouThreshold is suppressed. Candidates of different classes
// never suppress each other. The input slice is left untouched.
//
// Arguments:
//   - candidates: Decoded detections in any order.
//   - iouThreshold: IoU above which a same-class candidate is suppressed.
//
// Returns:
//   - []Detection: The kept detections, highest confidence first.
func Suppress(candidates []Detection, iouThreshold float32) []Detection {
	if len(candidates) == 0 {
		return []Detection{}
	}

	sorted := SortByConfidence(candidates)
	suppressed := make([]bool, len(sorted))
	kept := make([]Detection, 0, len(sorted))

	for i := range sorted {
		if suppressed[i] {
			continue
		}
		anchor := sorted[i]
		kept = append(kept, anchor)

		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassID != anchor.ClassID {
				continue
			}
			if images.CalculateIoU(anchor.Box(), sorted[j].Box()) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}
