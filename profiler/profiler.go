// Package profiler - Collects detection diagnostics: winning anchor scores and
// per-stage timings.
package profiler

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ScoredAnchor is the winning class of one anchor.
type ScoredAnchor struct {
	Anchor  int     `json:"anchor"`
	ClassID int     `json:"class_id"`
	Score   float32 `json:"score"`
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// StageStats summarizes the timings of one pipeline stage.
type StageStats struct {
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

// Snapshot is a point-in-time copy of the collected diagnostics.
type Snapshot struct {
	Uptime    time.Duration         `json:"uptime"`
	Anchors   int64                 `json:"anchors"`
	MaxScore  float32               `json:"max_score"`
	TopScores []ScoredAnchor        `json:"top_scores"`
	Stages    map[string]StageStats `json:"stages"`
}

// Options configures the profiler.
type Options struct {
	// TopN is how many of the best anchor scores to keep (default: 5).
	TopN int
	// MaxSamples is how many timings to keep per stage (default: 600).
	MaxSamples int
}

// Profiler records the diagnostics a detector reports. It is safe for
// concurrent use.
type Profiler struct {
	mu         sync.RWMutex
	topN       int
	maxSamples int
	startTime  time.Time

	anchors   int64
	maxScore  float32
	topScores []ScoredAnchor
	stages    map[string]*TimeTracker
}

// New creates a new profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured Profiler instance
func New(opts Options) *Profiler {
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	return &Profiler{
		topN:       opts.TopN,
		maxSamples: opts.MaxSamples,
		startTime:  time.Now(),
		topScores:  make([]ScoredAnchor, 0, opts.TopN),
		stages:     make(map[string]*TimeTracker),
	}
}

// ObserveScore records the winning score of an anchor.
func (p *Profiler) ObserveScore(anchor, classID int, score float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.anchors++
	if score > p.maxScore {
		p.maxScore = score
	}

	entry := ScoredAnchor{Anchor: anchor, ClassID: classID, Score: score}
	switch {
	case len(p.topScores) < p.topN:
		p.topScores = append(p.topScores, entry)
	case score > p.topScores[len(p.topScores)-1].Score:
		p.topScores[len(p.topScores)-1] = entry
	default:
		return
	}
	sort.SliceStable(p.topScores, func(i, j int) bool {
		return p.topScores[i].Score > p.topScores[j].Score
	})
}

// ObserveStage records the duration of a pipeline stage.
func (p *Profiler) ObserveStage(stage string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.stages[stage]
	if !exists {
		tracker = &TimeTracker{
			name:    stage,
			minTime: d,
			maxTime: d,
		}
		p.stages[stage] = tracker
	}

	tracker.durations = append(tracker.durations, d)
	if len(tracker.durations) > p.maxSamples {
		// Remove oldest sample
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += d
	tracker.count++

	if d < tracker.minTime {
		tracker.minTime = d
	}
	if d > tracker.maxTime {
		tracker.maxTime = d
	}
}

// Snapshot returns a copy of the collected diagnostics.
func (p *Profiler) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Uptime:    time.Since(p.startTime),
		Anchors:   p.anchors,
		MaxScore:  p.maxScore,
		TopScores: append([]ScoredAnchor(nil), p.topScores...),
		Stages:    make(map[string]StageStats, len(p.stages)),
	}
	for name, tracker := range p.stages {
		stats := StageStats{Count: tracker.count, Min: tracker.minTime, Max: tracker.maxTime}
		if len(tracker.durations) > 0 {
			stats.Avg = tracker.totalTime / time.Duration(len(tracker.durations))
		}
		s.Stages[name] = stats
	}
	return s
}

// Reset clears everything collected so far.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.anchors = 0
	p.maxScore = 0
	p.topScores = p.topScores[:0]
	p.stages = make(map[string]*TimeTracker)
}

// Report renders a human-readable status report.
//
// Returns:
// - The report, one metric per line
func (p *Profiler) Report() string {
	s := p.Snapshot()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var b strings.Builder
	fmt.Fprintf(&b, "DETECTION PROFILER REPORT - %s\n", time.Now().Format("15:04:05.000"))
	fmt.Fprintf(&b, "Uptime: %v\n", s.Uptime.Truncate(time.Millisecond))

	fmt.Fprintf(&b, "\nSCORES:\n")
	fmt.Fprintf(&b, "  Anchors observed: %d\n", s.Anchors)
	fmt.Fprintf(&b, "  Max confidence found: %.4f\n", s.MaxScore)
	top := make([]string, 0, len(s.TopScores))
	for _, a := range s.TopScores {
		top = append(top, fmt.Sprintf("%.4f (class %d)", a.Score, a.ClassID))
	}
	fmt.Fprintf(&b, "  Top %d scores: %s\n", len(top), strings.Join(top, ", "))

	if len(s.Stages) > 0 {
		names := make([]string, 0, len(s.Stages))
		for name := range s.Stages {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintf(&b, "\nSTAGE TIMINGS:\n")
		for _, name := range names {
			st := s.Stages[name]
			fmt.Fprintf(&b, "  %s: avg=%v, min=%v, max=%v, count=%d\n",
				name, st.Avg.Truncate(time.Microsecond),
				st.Min.Truncate(time.Microsecond),
				st.Max.Truncate(time.Microsecond),
				st.Count)
		}
	}

	fmt.Fprintf(&b, "\nMEMORY USAGE:\n")
	fmt.Fprintf(&b, "  Heap Alloc: %s\n", formatBytes(memStats.HeapAlloc))
	fmt.Fprintf(&b, "  Sys: %s\n", formatBytes(memStats.Sys))
	fmt.Fprintf(&b, "  Goroutines: %d\n", runtime.NumGoroutine())
	return b.String()
}

// Run logs a report every interval until ctx is done.
//
// Arguments:
// - ctx: Stops the loop when canceled
// - logger: Receives the reports at info level
// - interval: Time between reports
func (p *Profiler) Run(ctx context.Context, logger logrus.FieldLogger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := p.Snapshot()
			logger.WithFields(logrus.Fields{
				"anchors":   s.Anchors,
				"max_score": s.MaxScore,
				"top":       s.TopScores,
			}).Info("profiler status")
		}
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
