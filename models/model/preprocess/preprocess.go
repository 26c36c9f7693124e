// Package preprocess - Turns encoded images into model input tensors.
package preprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/model"
)

// ErrDecode is returned when image bytes cannot be decoded into pixels, or
// when the image is too large to decode.
var ErrDecode = errors.New("image decode failed")

// DefaultMaxPixels bounds the source image size accepted for decoding.
const DefaultMaxPixels = 40_000_000

// Preprocessor converts encoded images into [1, 3, S, S] float32 tensors in
// channels-first RGB order with values scaled to [0, 1].
//
// A Preprocessor holds no per-call state and is safe for concurrent use.
type Preprocessor struct {
	spec      model.Spec
	maxPixels int64
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithMaxPixels rejects images whose header declares more than n pixels
// before any pixel data is decoded.
func WithMaxPixels(n int64) Option {
	return func(p *Preprocessor) {
		p.maxPixels = n
	}
}

// NewPreprocessor creates a preprocessor for the given model contract.
//
// Arguments:
//   - spec: The model tensor contract; only InputSize and Channels are used.
//   - opts: Optional settings.
//
// Returns:
//   - *Preprocessor: The preprocessor.
//   - error: If the input size or pixel limit is not positive, or the model is not 3 channel.
//
// Example:
//
// ```go
//
//	pre, err := preprocess.NewPreprocessor(model.NewSpec(classes.Len()))
//	if err != nil {
//		return err
//	}
//	input, err := pre.Preprocess(jpegBytes)
//
// ```
func NewPreprocessor(spec model.Spec, opts ...Option) (*Preprocessor, error) {
	if spec.InputSize <= 0 {
		return nil, errors.Errorf("input size must be positive, got %d", spec.InputSize)
	}
	if spec.Channels != model.DefaultChannels {
		return nil, errors.Errorf("only %d channel inputs are supported, got %d", model.DefaultChannels, spec.Channels)
	}
	p := &Preprocessor{spec: spec, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxPixels <= 0 {
		return nil, errors.Errorf("pixel limit must be positive, got %d", p.maxPixels)
	}
	return p, nil
}

// Size returns the square side length of the produced tensor.
func (p *Preprocessor) Size() int {
	return p.spec.InputSize
}

// Preprocess decodes, resizes and normalizes an encoded image.
//
// The header is read first; an image declaring more pixels than the limit is
// rejected with ErrDecode without being decoded.
//
// Arguments:
//   - data: The encoded image bytes (JPEG, PNG, GIF, BMP, WebP or TIFF).
//
// Returns:
//   - *tensor.Dense: The input tensor of shape [1, 3, S, S].
//   - error: images.ErrUnsupportedFormat or ErrDecode when the bytes are not a usable image.
func (p *Preprocessor) Preprocess(data []byte) (*tensor.Dense, error) {
	info, err := images.Inspect(data)
	if err != nil {
		return nil, err
	}
	if info.Pixels() > p.maxPixels {
		return nil, errors.Wrapf(ErrDecode, "%dx%d %s image exceeds the %d pixel limit",
			info.Width, info.Height, info.Format, p.maxPixels)
	}

	backing, err := p.pixels(data)
	if err != nil {
		return nil, errors.Wrapf(err, "preprocess %dx%d %s", info.Width, info.Height, info.Format)
	}

	return tensor.New(
		tensor.WithShape(p.spec.InputShape()...),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(backing),
	), nil
}
