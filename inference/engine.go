// Package inference - Inference engine interface and implementations.
package inference

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ErrEngineClosed is returned by Predict after Close.
var ErrEngineClosed = errors.New("inference engine is closed")

// Engine defines the interface for ML inference engines.
//
// Predict maps a [1, 3, S, S] input to the raw [1, 4+C, N] model output. Engines
// must be safe for concurrent Predict calls.
type Engine interface {
	Predict(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error)
	Close() error
}
