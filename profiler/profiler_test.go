package profiler

import (
	"context"
	"testing"
	"time"

	"github.com/nvr-ai/go-yolo/inference/detectors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ detectors.Recorder = (*Profiler)(nil)

func TestProfiler_TopScores(t *testing.T) {
	p := New(Options{TopN: 3})
	scores := []float32{0.1, 0.7, 0.3, 0.9, 0.2, 0.8, 0.05}
	for i, s := range scores {
		p.ObserveScore(i, i%2, s)
	}

	snap := p.Snapshot()
	assert.Equal(t, int64(len(scores)), snap.Anchors)
	assert.Equal(t, float32(0.9), snap.MaxScore)
	require.Len(t, snap.TopScores, 3)
	assert.Equal(t, []ScoredAnchor{
		{Anchor: 3, ClassID: 1, Score: 0.9},
		{Anchor: 5, ClassID: 1, Score: 0.8},
		{Anchor: 1, ClassID: 1, Score: 0.7},
	}, snap.TopScores)
}

func TestProfiler_Stages(t *testing.T) {
	p := New(Options{MaxSamples: 2})
	p.ObserveStage("decode", 4*time.Millisecond)
	p.ObserveStage("decode", 2*time.Millisecond)
	p.ObserveStage("decode", 6*time.Millisecond)
	p.ObserveStage("inference", 10*time.Millisecond)

	snap := p.Snapshot()
	decode := snap.Stages["decode"]
	assert.Equal(t, int64(3), decode.Count)
	assert.Equal(t, 2*time.Millisecond, decode.Min)
	assert.Equal(t, 6*time.Millisecond, decode.Max)
	// Only the last two samples are averaged.
	assert.Equal(t, 4*time.Millisecond, decode.Avg)
	assert.Equal(t, int64(1), snap.Stages["inference"].Count)
}

func TestProfiler_ReportAndReset(t *testing.T) {
	p := New(Options{})
	p.ObserveScore(0, 41, 0.42)
	p.ObserveStage("suppress", time.Millisecond)

	report := p.Report()
	assert.Contains(t, report, "Max confidence found: 0.4200")
	assert.Contains(t, report, "0.4200 (class 41)")
	assert.Contains(t, report, "suppress: avg=1ms")

	p.Reset()
	snap := p.Snapshot()
	assert.Zero(t, snap.Anchors)
	assert.Zero(t, snap.MaxScore)
	assert.Empty(t, snap.TopScores)
	assert.Empty(t, snap.Stages)
}

func TestProfiler_Run(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	p := New(Options{})
	p.ObserveScore(0, 0, 0.5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, logger, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(hook.AllEntries()) > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, "profiler status", hook.LastEntry().Message)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2*1024*1024))
}
