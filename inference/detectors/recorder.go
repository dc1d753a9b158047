package detectors

import "time"

// Pipeline stages reported to a Recorder.
const (
	StagePreprocess = "preprocess"
	StageInference  = "inference"
	StageDecode     = "decode"
	StageSuppress   = "suppress"
)

// Recorder receives diagnostics from a running pipeline. Implementations must be
// cheap: ObserveScore is called once per anchor.
type Recorder interface {
	// ObserveScore reports the winning class and score of an anchor before any
	// threshold or whitelist filtering.
	ObserveScore(anchor, classID int, score float32)
	// ObserveStage reports how long a pipeline stage took.
	ObserveStage(stage string, d time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveScore(int, int, float32) {}
func (noopRecorder) ObserveStage(string, time.Duration) {}
