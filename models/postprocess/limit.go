package postprocess

// Limit keeps the first maxDetections entries of an already sorted slice.
//
// Arguments:
//   - sorted: Detections ordered by descending confidence.
//   - maxDetections: The maximum number of detections to keep. Negative values keep none.
//
// Returns:
//   - []Detection: sorted itself when it is short enough, otherwise its prefix.
func Limit(sorted []Detection, maxDetections int) []Detection {
	if maxDetections < 0 {
		maxDetections = 0
	}
	if len(sorted) <= maxDetections {
		return sorted
	}
	return sorted[:maxDetections]
}
