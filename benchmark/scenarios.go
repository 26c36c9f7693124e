package benchmark

import (
	"fmt"

	"github.com/pkg/errors"
)

// Scenario defines a specific test configuration
type Scenario struct {
	Name        string `json:"name"`
	Iterations  int    `json:"iterations"`
	WarmupRuns  int    `json:"warmup_runs"`
	Concurrency int    `json:"concurrency"`
}

// Validate checks that the scenario can run.
func (s Scenario) Validate() error {
	if s.Iterations < 1 {
		return errors.Errorf("scenario %q: iterations must be at least 1, got %d", s.Name, s.Iterations)
	}
	if s.WarmupRuns < 0 {
		return errors.Errorf("scenario %q: warmup runs cannot be negative, got %d", s.Name, s.WarmupRuns)
	}
	if s.Concurrency < 1 {
		return errors.Errorf("scenario %q: concurrency must be at least 1, got %d", s.Name, s.Concurrency)
	}
	return nil
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:        name,
			Iterations:  100,
			WarmupRuns:  10,
			Concurrency: 1,
		},
	}
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of untimed runs before measuring
func (sb *ScenarioBuilder) WithWarmupRuns(runs int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = runs
	return sb
}

// WithConcurrency sets how many workers call the labeler at once
func (sb *ScenarioBuilder) WithConcurrency(workers int) *ScenarioBuilder {
	sb.scenario.Concurrency = workers
	return sb
}

// Build returns the validated scenario.
func (sb *ScenarioBuilder) Build() (Scenario, error) {
	if err := sb.scenario.Validate(); err != nil {
		return Scenario{}, err
	}
	return sb.scenario, nil
}

// ConcurrencySweep builds one scenario per worker count, e.g. 1, 2, 4.
func ConcurrencySweep(iterations, warmup int, workers ...int) ([]Scenario, error) {
	scenarios := make([]Scenario, 0, len(workers))
	for _, w := range workers {
		s, err := NewScenarioBuilder(fmt.Sprintf("concurrency-%d", w)).
			WithIterations(iterations).
			WithWarmupRuns(warmup).
			WithConcurrency(w).
			Build()
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}
