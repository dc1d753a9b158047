package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/inference/detectors"
	"github.com/nvr-ai/go-yolo/test"
	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, session *test.MockSession) inference.Engine {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	engine, err := inference.NewEngineBuilder().
		UseSession(session).
		WithDetector(detectors.DefaultConfig(), detectors.WithLogger(logger)).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func personSession() *test.MockSession {
	return test.NewMockSession(test.YOLOOutput([]test.Anchor{
		{CX: 320, CY: 320, W: 100, H: 200, ClassID: 0, Score: 0.9},
	}, 80, true))
}

func newSuite(t *testing.T, session *test.MockSession) (*Suite, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	s := NewSuite(newEngine(t, session), t.TempDir(), logger)
	s.AddFrames(test.NewMockFrameGenerator(320, 240).GenerateStaticFrame())
	return s, hook
}

func TestScenarioBuilder(t *testing.T) {
	scenario := NewScenarioBuilder("hd").
		WithResolution(1280, 720).
		WithIterations(5).
		WithWarmupRuns(2).
		Build()

	assert.Equal(t, Scenario{
		Name:       "hd",
		Resolution: Resolution{Width: 1280, Height: 720, Name: "1280x720"},
		Iterations: 5,
		WarmupRuns: 2,
	}, scenario)

	defaults := NewScenarioBuilder("defaults").Build()
	assert.Equal(t, 100, defaults.Iterations)
	assert.Equal(t, 10, defaults.WarmupRuns)
}

func TestRunScenario(t *testing.T) {
	session := personSession()
	s, _ := newSuite(t, session)

	result, err := s.RunScenario(context.Background(), NewScenarioBuilder("vga").WithResolution(640, 480).WithIterations(4).WithWarmupRuns(1).Build())
	require.NoError(t, err)

	assert.Equal(t, 5, session.Calls())
	assert.Equal(t, 4, result.DetectionCount)
	assert.Zero(t, result.Errors)
	assert.Zero(t, result.ErrorRate)
	assert.Positive(t, result.FramesPerSecond)
	assert.LessOrEqual(t, result.Latency.P50, result.Latency.P95)
	assert.LessOrEqual(t, result.Latency.P95, result.Latency.Max)

	fed := session.LastInputs()["images"]
	require.NotNil(t, fed)
	assert.Equal(t, []int{1, 3, 640, 640}, []int(fed.Shape()))
}

func TestRunScenario_Errors(t *testing.T) {
	session := personSession()
	session.Err = errors.New("device lost")
	s, _ := newSuite(t, session)

	result, err := s.RunScenario(context.Background(), NewScenarioBuilder("x").WithResolution(64, 64).WithIterations(2).WithWarmupRuns(0).Build())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Errors)
	assert.Equal(t, 1.0, result.ErrorRate)
	assert.Equal(t, Latency{}, result.Latency)
}

func TestRunScenario_Invalid(t *testing.T) {
	s, _ := newSuite(t, personSession())
	empty := NewSuite(newEngine(t, personSession()), t.TempDir(), nil)

	_, err := empty.RunScenario(context.Background(), NewScenarioBuilder("x").WithResolution(64, 64).Build())
	assert.Error(t, err)

	_, err = s.RunScenario(context.Background(), NewScenarioBuilder("x").WithResolution(64, 64).WithIterations(0).Build())
	assert.Error(t, err)

	_, err = s.RunScenario(context.Background(), NewScenarioBuilder("x").Build())
	assert.Error(t, err)
}

func TestRunAllAndSave(t *testing.T) {
	s, hook := newSuite(t, personSession())
	s.AddScenario(NewScenarioBuilder("small").WithResolution(64, 48).WithIterations(2).WithWarmupRuns(0).Build())
	s.AddScenario(NewScenarioBuilder("broken").WithIterations(2).Build())

	require.NoError(t, s.RunAll(context.Background()))
	results := s.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "small", results[0].Scenario.Name)
	assert.NotEmpty(t, hook.AllEntries())

	jsonPath, csvPath, err := s.SaveResults()
	require.NoError(t, err)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var saved []Result
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, 2, saved[0].DetectionCount)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, summaryHeader, rows[0])
	assert.Equal(t, "small", rows[1][0])
	assert.Equal(t, "64x48", rows[1][1])
}

func TestRunAll_Canceled(t *testing.T) {
	s, _ := newSuite(t, personSession())
	s.AddScenario(NewScenarioBuilder("x").WithResolution(64, 64).WithIterations(1).Build())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.RunAll(ctx), context.Canceled)
}

func TestSummarize(t *testing.T) {
	var ds []time.Duration
	for i := 1; i <= 20; i++ {
		ds = append(ds, time.Duration(i)*time.Millisecond)
	}
	l := summarize(ds)
	assert.Equal(t, 10500*time.Microsecond, l.Avg)
	assert.Equal(t, 10*time.Millisecond, l.P50)
	assert.Equal(t, 19*time.Millisecond, l.P95)
	assert.Equal(t, 20*time.Millisecond, l.Max)
}
