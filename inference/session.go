// Package inference - Assembles model sessions and detectors into engines.
package inference

import (
	"context"
	"sync"
	"time"

	"github.com/nvr-ai/go-yolo/inference/providers"
	"gorgonia.org/tensor"
)

// ProfiledSession wraps a session and tracks how many runs it served and how long
// they took.
type ProfiledSession struct {
	providers.Session

	mu             sync.RWMutex
	inferenceCount int64
	failures       int64
	totalTime      time.Duration
}

// NewProfiledSession wraps session.
//
// Arguments:
//   - session: The session to measure.
//
// Returns:
//   - *ProfiledSession: The wrapper. Closing it closes session.
func NewProfiledSession(session providers.Session) *ProfiledSession {
	return &ProfiledSession{Session: session}
}

// Run executes the wrapped session and records its duration.
func (ps *ProfiledSession) Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	start := time.Now()
	outputs, err := ps.Session.Run(ctx, inputs)
	elapsed := time.Since(start)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.inferenceCount++
	ps.totalTime += elapsed
	if err != nil {
		ps.failures++
	}
	return outputs, err
}

// PerformanceMetrics summarizes the runs of a ProfiledSession.
type PerformanceMetrics struct {
	InferenceCount int64   `json:"inference_count"`
	Failures       int64   `json:"failures"`
	TotalTimeMs    float64 `json:"total_time_ms"`
	AverageTimeMs  float64 `json:"average_time_ms,omitempty"`
	ThroughputFPS  float64 `json:"throughput_fps,omitempty"`
}

// GetPerformanceMetrics returns the counters collected so far.
//
// Returns:
//   - PerformanceMetrics: Averages are zero until the first run.
func (ps *ProfiledSession) GetPerformanceMetrics() PerformanceMetrics {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	m := PerformanceMetrics{
		InferenceCount: ps.inferenceCount,
		Failures:       ps.failures,
		TotalTimeMs:    float64(ps.totalTime.Nanoseconds()) / 1e6,
	}
	if ps.inferenceCount > 0 && ps.totalTime > 0 {
		m.AverageTimeMs = m.TotalTimeMs / float64(ps.inferenceCount)
		m.ThroughputFPS = 1000.0 / m.AverageTimeMs
	}
	return m
}

// ResetMetrics clears all performance counters.
func (ps *ProfiledSession) ResetMetrics() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.inferenceCount = 0
	ps.failures = 0
	ps.totalTime = 0
}
