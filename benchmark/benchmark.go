// Package benchmark - Measures detection throughput and latency across source
// frame resolutions.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Resolution represents source frame dimensions for benchmarking.
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// CommonResolutions are typical camera frame sizes.
var CommonResolutions = []Resolution{
	{Width: 640, Height: 480, Name: "640x480"},
	{Width: 1280, Height: 720, Name: "1280x720"},
	{Width: 1920, Height: 1080, Name: "1920x1080"},
	{Width: 3840, Height: 2160, Name: "3840x2160"},
}

// Scenario defines a specific test configuration.
type Scenario struct {
	Name       string     `json:"name"`
	Resolution Resolution `json:"resolution"`
	Iterations int        `json:"iterations"`
	WarmupRuns int        `json:"warmup_runs"`
}

// ScenarioBuilder helps build scenarios with a fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder with 100 iterations and 10
// warm-up runs.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithResolution sets the source frame resolution.
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithIterations sets the number of measured iterations.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of unmeasured runs.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// Latency summarizes per-frame Predict durations.
type Latency struct {
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	Max time.Duration `json:"max"`
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// Result captures the measurements of one scenario.
type Result struct {
	Scenario          Scenario      `json:"scenario"`
	Timestamp         time.Time     `json:"timestamp"`
	TotalDuration     time.Duration `json:"total_duration"`
	ResizeDuration    time.Duration `json:"resize_duration"`
	InferenceDuration time.Duration `json:"inference_duration"`
	Latency           Latency       `json:"latency"`
	FramesPerSecond   float64       `json:"frames_per_second"`
	DetectionCount    int           `json:"detection_count"`
	Errors            int           `json:"errors"`
	ErrorRate         float64       `json:"error_rate"`
	MemoryStats       MemoryMetrics `json:"memory_stats"`
	NumCPU            int           `json:"num_cpu"`
}

// Suite runs scenarios against one engine over a fixed set of frames.
type Suite struct {
	engine    inference.Engine
	logger    logrus.FieldLogger
	outputDir string

	mu        sync.RWMutex
	scenarios []Scenario
	frames    []image.Image
	results   []Result
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - engine: The engine under test. The suite does not close it.
//   - outputDir: Where SaveResults writes its files.
//   - logger: Receives a line per completed scenario.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(engine inference.Engine, outputDir string, logger logrus.FieldLogger) *Suite {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Suite{
		engine:    engine,
		logger:    logger,
		outputDir: outputDir,
	}
}

// AddScenario adds a scenario to the suite.
func (s *Suite) AddScenario(scenario Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenario)
}

// AddFrames adds source frames; iterations cycle through them.
func (s *Suite) AddFrames(frames ...image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

// RunScenario executes a single scenario. Each iteration stretches a frame to the
// scenario resolution and runs it through the engine; failed iterations count
// toward the error rate.
//
// Arguments:
//   - ctx: The context for each prediction.
//   - scenario: The scenario to run.
//
// Returns:
//   - *Result: The measurements.
//   - error: An error if the scenario cannot run at all.
func (s *Suite) RunScenario(ctx context.Context, scenario Scenario) (*Result, error) {
	s.mu.RLock()
	frames := append([]image.Image(nil), s.frames...)
	s.mu.RUnlock()

	if len(frames) == 0 {
		return nil, errors.New("no frames loaded")
	}
	if scenario.Iterations <= 0 {
		return nil, errors.Errorf("iterations must be > 0, got %d", scenario.Iterations)
	}
	if scenario.Resolution.Width <= 0 || scenario.Resolution.Height <= 0 {
		return nil, errors.Errorf("invalid resolution %dx%d", scenario.Resolution.Width, scenario.Resolution.Height)
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		frame := images.Stretch(frames[i%len(frames)], scenario.Resolution.Width, scenario.Resolution.Height, images.ResamplerBilinear)
		if _, err := s.engine.Predict(ctx, frame); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	result := &Result{
		Scenario:  scenario,
		Timestamp: time.Now(),
		NumCPU:    runtime.NumCPU(),
	}
	latencies := make([]time.Duration, 0, scenario.Iterations)

	start := time.Now()
	for i := 0; i < scenario.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resizeStart := time.Now()
		frame := images.Stretch(frames[i%len(frames)], scenario.Resolution.Width, scenario.Resolution.Height, images.ResamplerBilinear)
		result.ResizeDuration += time.Since(resizeStart)

		predictStart := time.Now()
		dets, err := s.engine.Predict(ctx, frame)
		elapsed := time.Since(predictStart)
		result.InferenceDuration += elapsed
		if err != nil {
			result.Errors++
			continue
		}
		latencies = append(latencies, elapsed)
		result.DetectionCount += len(dets)
	}
	result.TotalDuration = time.Since(start)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	if secs := result.TotalDuration.Seconds(); secs > 0 {
		result.FramesPerSecond = float64(len(latencies)) / secs
	}
	result.ErrorRate = float64(result.Errors) / float64(scenario.Iterations)
	result.Latency = summarize(latencies)
	result.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
	}
	return result, nil
}

// RunAll executes every scenario and keeps the results. A failed scenario is
// logged and skipped.
func (s *Suite) RunAll(ctx context.Context) error {
	s.mu.RLock()
	scenarios := append([]Scenario(nil), s.scenarios...)
	s.mu.RUnlock()

	for _, scenario := range scenarios {
		result, err := s.RunScenario(ctx, scenario)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WithError(err).WithField("scenario", scenario.Name).Warn("scenario failed")
			continue
		}

		s.mu.Lock()
		s.results = append(s.results, *result)
		s.mu.Unlock()

		s.logger.WithFields(logrus.Fields{
			"scenario":   scenario.Name,
			"fps":        fmt.Sprintf("%.2f", result.FramesPerSecond),
			"p50":        result.Latency.P50,
			"p95":        result.Latency.P95,
			"detections": result.DetectionCount,
			"errors":     result.Errors,
		}).Info("scenario completed")
	}
	return nil
}

// Results returns all results collected so far.
func (s *Suite) Results() []Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Result(nil), s.results...)
}

func summarize(latencies []time.Duration) Latency {
	if len(latencies) == 0 {
		return Latency{}
	}
	sorted := append([]time.Duration(nil), latencies...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return Latency{
		Avg: total / time.Duration(len(sorted)),
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		Max: sorted[len(sorted)-1],
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}
