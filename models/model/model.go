// Package model - Tensor contract of a detection model.
package model

import (
	"fmt"
)

// Default tensor contract of the food detection export: a 512x512 RGB input and a
// YOLO-style head with 64x64 + 32x32 + 16x16 proposal cells.
const (
	DefaultInputName  = "images"
	DefaultOutputName = "output0"
	DefaultInputSize  = 512
	DefaultChannels   = 3
	DefaultCandidates = 5376
)

// BoxRows is the number of geometry rows (cx, cy, w, h) preceding the class scores.
const BoxRows = 4

// Spec describes the tensors a detection model consumes and produces.
type Spec struct {
	// InputName is the graph input node name.
	InputName string `json:"input_name" yaml:"input_name"`
	// OutputName is the graph output node name.
	OutputName string `json:"output_name" yaml:"output_name"`
	// InputSize is the square input resolution.
	InputSize int `json:"input_size" yaml:"input_size"`
	// Channels is the number of input channels.
	Channels int `json:"channels" yaml:"channels"`
	// Candidates is N, the number of proposal positions in the output.
	Candidates int `json:"candidates" yaml:"candidates"`
	// NumClasses is C, the size of the class table.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
}

// NewSpec returns the default contract for a model with numClasses classes.
func NewSpec(numClasses int) Spec {
	return Spec{
		InputName:  DefaultInputName,
		OutputName: DefaultOutputName,
		InputSize:  DefaultInputSize,
		Channels:   DefaultChannels,
		Candidates: DefaultCandidates,
		NumClasses: numClasses,
	}
}

// InputShape returns [1, channels, size, size].
func (s Spec) InputShape() []int {
	return []int{1, s.Channels, s.InputSize, s.InputSize}
}

// OutputShape returns [1, 4+C, N].
func (s Spec) OutputShape() []int {
	return []int{1, BoxRows + s.NumClasses, s.Candidates}
}

// Validate checks that every dimension is usable.
func (s Spec) Validate() error {
	if s.InputName == "" || s.OutputName == "" {
		return fmt.Errorf("input and output names are required")
	}
	if s.InputSize <= 0 {
		return fmt.Errorf("input size must be positive, got %d", s.InputSize)
	}
	if s.Channels != DefaultChannels {
		return fmt.Errorf("only %d channel inputs are supported, got %d", DefaultChannels, s.Channels)
	}
	if s.Candidates <= 0 {
		return fmt.Errorf("candidate count must be positive, got %d", s.Candidates)
	}
	if s.NumClasses <= 0 {
		return fmt.Errorf("class count must be positive, got %d", s.NumClasses)
	}
	return nil
}
