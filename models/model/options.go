// Package model - Model options.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Precision represents the precision of the model.
type Precision string

const (
	// PrecisionDefault leaves the choice to the execution provider.
	PrecisionDefault Precision = ""
	// PrecisionAccuracy represents the accuracy of the model.
	// (OpenVINO's default input precision type.)
	PrecisionAccuracy Precision = "ACCURACY"
	// PrecisionFP32 represents 32-bit floating point precision.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 represents 16-bit floating point precision.
	PrecisionFP16 Precision = "FP16"
)

// ParsePrecision maps a case-insensitive name to a Precision.
func ParsePrecision(name string) (Precision, error) {
	switch p := Precision(strings.ToUpper(strings.TrimSpace(name))); p {
	case PrecisionDefault, PrecisionAccuracy, PrecisionFP32, PrecisionFP16:
		return p, nil
	default:
		return "", errors.Errorf("unknown precision %q", name)
	}
}
