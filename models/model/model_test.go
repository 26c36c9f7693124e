package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSpec(t *testing.T) {
	spec := NewSpec(3)

	assert.NoError(t, spec.Validate())
	assert.Equal(t, []int{1, 3, 512, 512}, spec.InputShape())
	assert.Equal(t, []int{1, 7, 5376}, spec.OutputShape())
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
	}{
		{"missing input name", func(s *Spec) { s.InputName = "" }},
		{"zero input size", func(s *Spec) { s.InputSize = 0 }},
		{"grayscale", func(s *Spec) { s.Channels = 1 }},
		{"no candidates", func(s *Spec) { s.Candidates = 0 }},
		{"no classes", func(s *Spec) { s.NumClasses = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := NewSpec(80)
			tt.mutate(&spec)
			assert.Error(t, spec.Validate())
		})
	}
}

func TestParsePrecision(t *testing.T) {
	for name, want := range map[string]Precision{
		"":         PrecisionDefault,
		"fp16":     PrecisionFP16,
		" FP32 ":   PrecisionFP32,
		"accuracy": PrecisionAccuracy,
	} {
		got, err := ParsePrecision(name)
		assert.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParsePrecision("int4")
	assert.Error(t, err)
}
