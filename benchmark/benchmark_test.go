package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// fakeLabeler fails on payloads starting with "x" and reports fixed timings.
type fakeLabeler struct {
	calls atomic.Int64
}

func (f *fakeLabeler) Detect(_ context.Context, data []byte) (*detector.Result, error) {
	f.calls.Add(1)
	if len(data) > 0 && data[0] == 'x' {
		return nil, detector.NewInputError(errors.New("bad image"))
	}
	return &detector.Result{
		Output: &postprocess.Output{Labels: []string{"pizza"}, Count: 2},
		Timings: detector.Timings{
			Preprocess:  time.Millisecond,
			Inference:   4 * time.Millisecond,
			Postprocess: time.Millisecond,
			Total:       6 * time.Millisecond,
		},
	}, nil
}

func writeCorpus(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	var paths []string
	for i, c := range contents {
		p := filepath.Join(dir, string(rune('a'+i))+".jpg")
		require.NoError(t, os.WriteFile(p, []byte(c), 0o600))
		paths = append(paths, p)
	}
	return paths
}

func TestScenarioBuilder(t *testing.T) {
	scenario, err := NewScenarioBuilder("test_scenario").
		WithIterations(50).
		WithWarmupRuns(5).
		WithConcurrency(4).
		Build()
	require.NoError(t, err)

	assert.Equal(t, Scenario{Name: "test_scenario", Iterations: 50, WarmupRuns: 5, Concurrency: 4}, scenario)

	_, err = NewScenarioBuilder("bad").WithIterations(0).Build()
	assert.Error(t, err)
	_, err = NewScenarioBuilder("bad").WithConcurrency(0).Build()
	assert.Error(t, err)
	_, err = NewScenarioBuilder("bad").WithWarmupRuns(-1).Build()
	assert.Error(t, err)
}

func TestConcurrencySweep(t *testing.T) {
	scenarios, err := ConcurrencySweep(20, 2, 1, 2, 4)
	require.NoError(t, err)
	require.Len(t, scenarios, 3)
	assert.Equal(t, "concurrency-4", scenarios[2].Name)
	assert.Equal(t, 4, scenarios[2].Concurrency)

	_, err = ConcurrencySweep(20, 2, 0)
	assert.Error(t, err)
}

func TestRunScenario(t *testing.T) {
	defer goleak.VerifyNone(t)

	labeler := &fakeLabeler{}
	log, _ := logtest.NewNullLogger()
	suite := NewSuite(labeler, t.TempDir(), log)
	require.NoError(t, suite.LoadImages(writeCorpus(t, "good", "xbad")))

	scenario := Scenario{Name: "mixed", Iterations: 10, WarmupRuns: 3, Concurrency: 3}
	metrics, err := suite.RunScenario(context.Background(), scenario)
	require.NoError(t, err)

	assert.EqualValues(t, 13, labeler.calls.Load())
	assert.InDelta(t, 0.5, metrics.ErrorRate, 1e-9)
	assert.Equal(t, 10, metrics.DetectionCount)
	assert.Equal(t, 5, metrics.LabelCount)
	assert.Equal(t, 4*time.Millisecond, metrics.InferenceDuration)
	assert.Equal(t, 6*time.Millisecond, metrics.Latency.P99)
	assert.Greater(t, metrics.FramesPerSecond, 0.0)
	assert.Equal(t, scenario, metrics.Scenario)
}

func TestRunScenario_NoImages(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	suite := NewSuite(&fakeLabeler{}, t.TempDir(), log)

	_, err := suite.RunScenario(context.Background(), Scenario{Name: "empty", Iterations: 1, Concurrency: 1})
	assert.Error(t, err)
	assert.Error(t, suite.LoadImages(nil))
	assert.Error(t, suite.LoadImages([]string{filepath.Join(t.TempDir(), "missing.jpg")}))
}

func TestLatencyStats(t *testing.T) {
	var d []time.Duration
	for i := 100; i >= 1; i-- {
		d = append(d, time.Duration(i)*time.Millisecond)
	}

	stats := latencyStats(d)
	assert.Equal(t, time.Millisecond, stats.Min)
	assert.Equal(t, 100*time.Millisecond, stats.Max)
	assert.Equal(t, 50*time.Millisecond, stats.P50)
	assert.Equal(t, 90*time.Millisecond, stats.P90)
	assert.Equal(t, 99*time.Millisecond, stats.P99)
	assert.Equal(t, 50500*time.Microsecond, stats.Mean)

	assert.Equal(t, LatencyStats{}, latencyStats(nil))
}

func TestRunAllScenariosAndSave(t *testing.T) {
	out := t.TempDir()
	log, hook := logtest.NewNullLogger()
	suite := NewSuite(&fakeLabeler{}, out, log)
	require.NoError(t, suite.LoadImages(writeCorpus(t, "good")))

	suite.AddScenario(Scenario{Name: "serial", Iterations: 4, Concurrency: 1})
	suite.AddScenario(Scenario{Name: "broken", Iterations: 0, Concurrency: 1})
	require.NoError(t, suite.RunAllScenarios(context.Background()))

	results := suite.GetResults()
	require.Len(t, results, 1)
	assert.Equal(t, "serial", results[0].Scenario.Name)

	var failed bool
	for _, e := range hook.AllEntries() {
		if e.Message == "scenario failed" {
			failed = true
		}
	}
	assert.True(t, failed)

	jsonPath, csvPath, err := suite.SaveResults()
	require.NoError(t, err)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded []PerformanceMetrics
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 1)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "serial", rows[1][0])
}

func TestRunAllScenarios_Cancelled(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	suite := NewSuite(&fakeLabeler{}, t.TempDir(), log)
	suite.AddScenario(Scenario{Name: "serial", Iterations: 1, Concurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, suite.RunAllScenarios(ctx), context.Canceled)
}
