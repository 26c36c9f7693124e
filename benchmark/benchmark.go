package benchmark

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-detect/detector"
)

// Labeler labels one encoded image.
type Labeler interface {
	Detect(ctx context.Context, data []byte) (*detector.Result, error)
}

// Suite manages and executes benchmark scenarios
type Suite struct {
	labeler   Labeler
	outputDir string
	log       logrus.FieldLogger
	corpus    [][]byte
	scenarios []Scenario
	mu        sync.RWMutex
	results   []PerformanceMetrics
}

// NewSuite creates a new benchmark suite.
//
// Arguments:
//   - labeler: The pipeline under test. Disable result caching or every
//     iteration after the first is a cache hit.
//   - outputDir: Where SaveResults writes its files.
//   - log: Progress logger.
//
// Returns:
//   - *Suite: The benchmark suite.
func NewSuite(labeler Labeler, outputDir string, log logrus.FieldLogger) *Suite {
	return &Suite{
		labeler:   labeler,
		outputDir: outputDir,
		log:       log,
	}
}

// AddScenario adds a test scenario to the benchmark suite
func (bs *Suite) AddScenario(scenario Scenario) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.scenarios = append(bs.scenarios, scenario)
}

// LoadImages reads the benchmark corpus into memory so file I/O stays out of
// the measurements.
func (bs *Suite) LoadImages(paths []string) error {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.corpus = bs.corpus[:0]
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to read image file %s", path)
		}
		bs.corpus = append(bs.corpus, data)
	}
	if len(bs.corpus) == 0 {
		return errors.New("no benchmark images")
	}
	return nil
}

// sample is the outcome of one timed run.
type sample struct {
	timings    detector.Timings
	detections int
	labels     int
	err        error
}

// RunScenario executes a single benchmark scenario.
//
// Warmup runs are executed sequentially and not measured. The measured runs
// are spread over scenario.Concurrency workers, cycling through the corpus.
func (bs *Suite) RunScenario(ctx context.Context, scenario Scenario) (*PerformanceMetrics, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	bs.mu.RLock()
	corpus := bs.corpus
	bs.mu.RUnlock()
	if len(corpus) == 0 {
		return nil, errors.New("no benchmark images loaded")
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := bs.labeler.Detect(ctx, corpus[i%len(corpus)]); err != nil {
			bs.log.WithError(err).Debug("warmup run failed")
		}
	}

	var startMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&startMem)

	samples := make([]sample, scenario.Iterations)
	jobs := make(chan int)
	var wg sync.WaitGroup

	startTime := time.Now()
	for w := 0; w < scenario.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				samples[i] = bs.run(ctx, corpus[i%len(corpus)])
			}
		}()
	}

	for i := 0; i < scenario.Iterations; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	totalDuration := time.Since(startTime)

	var endMem runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&endMem)

	metrics := summarize(samples)
	metrics.Scenario = scenario
	metrics.Timestamp = startTime
	metrics.TotalDuration = totalDuration
	metrics.FramesPerSecond = float64(scenario.Iterations) / totalDuration.Seconds()
	metrics.MemoryStats = MemoryMetrics{
		AllocBytes:      endMem.Alloc,
		TotalAllocBytes: endMem.TotalAlloc - startMem.TotalAlloc,
		SysBytes:        endMem.Sys,
		NumGC:           endMem.NumGC - startMem.NumGC,
		HeapAllocBytes:  endMem.HeapAlloc,
		HeapSysBytes:    endMem.HeapSys,
	}
	metrics.CPUStats = CPUMetrics{
		NumCPU:     runtime.NumCPU(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
	}

	return metrics, nil
}

func (bs *Suite) run(ctx context.Context, data []byte) sample {
	res, err := bs.labeler.Detect(ctx, data)
	if err != nil {
		return sample{err: err}
	}
	return sample{
		timings:    res.Timings,
		detections: res.Count,
		labels:     len(res.Labels),
	}
}

// summarize aggregates stage means, latency percentiles and counts.
func summarize(samples []sample) *PerformanceMetrics {
	m := &PerformanceMetrics{}

	var totals []time.Duration
	var pre, inf, post time.Duration
	failures := 0
	for _, s := range samples {
		if s.err != nil {
			failures++
			continue
		}
		totals = append(totals, s.timings.Total)
		pre += s.timings.Preprocess
		inf += s.timings.Inference
		post += s.timings.Postprocess
		m.DetectionCount += s.detections
		m.LabelCount += s.labels
	}

	if len(samples) > 0 {
		m.ErrorRate = float64(failures) / float64(len(samples))
	}
	if n := time.Duration(len(totals)); n > 0 {
		m.PreprocessDuration = pre / n
		m.InferenceDuration = inf / n
		m.PostProcessDuration = post / n
	}
	m.Latency = latencyStats(totals)
	return m
}

// latencyStats computes nearest-rank percentiles.
func latencyStats(d []time.Duration) LatencyStats {
	if len(d) == 0 {
		return LatencyStats{}
	}
	sorted := append([]time.Duration(nil), d...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, v := range sorted {
		sum += v
	}

	rank := func(p float64) time.Duration {
		idx := int(p*float64(len(sorted))+0.999999) - 1
		idx = max(0, min(idx, len(sorted)-1))
		return sorted[idx]
	}

	return LatencyStats{
		Min:  sorted[0],
		Mean: sum / time.Duration(len(sorted)),
		P50:  rank(0.50),
		P90:  rank(0.90),
		P99:  rank(0.99),
		Max:  sorted[len(sorted)-1],
	}
}

// RunAllScenarios executes all configured benchmark scenarios. A failing
// scenario is logged and skipped.
func (bs *Suite) RunAllScenarios(ctx context.Context) error {
	bs.mu.RLock()
	scenarios := append([]Scenario(nil), bs.scenarios...)
	bs.mu.RUnlock()

	for _, scenario := range scenarios {
		if err := ctx.Err(); err != nil {
			return err
		}

		metrics, err := bs.RunScenario(ctx, scenario)
		if err != nil {
			bs.log.WithError(err).WithField("scenario", scenario.Name).Error("scenario failed")
			continue
		}

		bs.mu.Lock()
		bs.results = append(bs.results, *metrics)
		bs.mu.Unlock()

		bs.log.WithFields(logrus.Fields{
			"scenario":   scenario.Name,
			"fps":        fmt.Sprintf("%.2f", metrics.FramesPerSecond),
			"p50":        metrics.Latency.P50,
			"p99":        metrics.Latency.P99,
			"error_rate": metrics.ErrorRate,
		}).Info("scenario completed")
	}

	return nil
}

// SaveResults persists benchmark results to filesystem as a JSON report and a
// CSV summary.
//
// Returns:
//   - string: The JSON report path.
//   - string: The CSV summary path.
//   - error: An error if either file cannot be written.
func (bs *Suite) SaveResults() (string, string, error) {
	results := bs.GetResults()

	if err := os.MkdirAll(bs.outputDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "failed to create output directory")
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	resultsFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_results_%s.json", timestamp))

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", "", errors.Wrap(err, "failed to marshal results")
	}
	if err := os.WriteFile(resultsFile, data, 0o644); err != nil {
		return "", "", errors.Wrap(err, "failed to write results file")
	}

	summaryFile := filepath.Join(bs.outputDir, fmt.Sprintf("benchmark_summary_%s.csv", timestamp))
	if err := saveSummaryCSV(summaryFile, results); err != nil {
		return "", "", errors.Wrap(err, "failed to save summary CSV")
	}

	return resultsFile, summaryFile, nil
}

func saveSummaryCSV(filename string, results []PerformanceMetrics) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{
		"Scenario", "Concurrency", "Iterations", "FPS", "Total_Duration_ms",
		"P50_ms", "P99_ms", "Alloc_MB", "Detections", "Error_Rate",
	}); err != nil {
		return err
	}

	ms := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d.Nanoseconds())/1e6, 'f', 2, 64)
	}
	for _, r := range results {
		if err := w.Write([]string{
			r.Scenario.Name,
			strconv.Itoa(r.Scenario.Concurrency),
			strconv.Itoa(r.Scenario.Iterations),
			strconv.FormatFloat(r.FramesPerSecond, 'f', 2, 64),
			ms(r.TotalDuration),
			ms(r.Latency.P50),
			ms(r.Latency.P99),
			strconv.FormatFloat(float64(r.MemoryStats.TotalAllocBytes)/(1024*1024), 'f', 2, 64),
			strconv.Itoa(r.DetectionCount),
			strconv.FormatFloat(r.ErrorRate, 'f', 4, 64),
		}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// GetResults returns all benchmark results
func (bs *Suite) GetResults() []PerformanceMetrics {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	results := make([]PerformanceMetrics, len(bs.results))
	copy(results, bs.results)
	return results
}
