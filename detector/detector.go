// Package detector - Runs the preprocess, inference and postprocess pipeline.
package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/metrics"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// ErrInputMissing is returned when the image is absent or cannot be decoded.
// It fails the request only; the detector stays usable.
var ErrInputMissing = errors.New("image not found")

// InputError carries the reason an input was rejected. It matches
// ErrInputMissing under errors.Is and unwraps to the underlying cause, so
// callers can test for either.
type InputError struct {
	Err error
}

// NewInputError wraps err as an input failure.
func NewInputError(err error) error {
	return &InputError{Err: err}
}

func (e *InputError) Error() string {
	if e.Err == nil {
		return ErrInputMissing.Error()
	}
	return ErrInputMissing.Error() + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *InputError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrInputMissing.
func (e *InputError) Is(target error) bool {
	return target == ErrInputMissing
}

// Preprocessor turns encoded image bytes into a model input tensor.
type Preprocessor interface {
	Preprocess(data []byte) (*tensor.Dense, error)
}

// Timings records how long each stage of one request took.
type Timings struct {
	Preprocess  time.Duration `json:"preprocess"`
	Inference   time.Duration `json:"inference"`
	Postprocess time.Duration `json:"postprocess"`
	Total       time.Duration `json:"total"`
}

// Result is the answer for one image.
type Result struct {
	*postprocess.Output
	// Timings holds the stage durations. Only Total is set for cached answers.
	Timings Timings `json:"timings"`
	// Cached reports whether the answer came from the result cache.
	Cached bool `json:"cached"`
}

// Detector labels images with a detection model.
//
// A Detector is safe for concurrent use: requests share the read-only class
// table, the engine and the optional cache, and nothing else.
type Detector struct {
	pre     Preprocessor
	engine  inference.Engine
	classes *models.ClassTable
	nms     postprocess.NMSConfig
	log     logrus.FieldLogger
	metrics *metrics.DetectorMetrics
	cache   *cache.Cache
}

// Option configures a Detector.
type Option func(*Detector)

// WithNMSConfig overrides the suppression parameters.
func WithNMSConfig(config postprocess.NMSConfig) Option {
	return func(d *Detector) {
		d.nms = config
	}
}

// WithLogger sets the logger used for per-request diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Detector) {
		d.log = log
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.DetectorMetrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

// WithCache remembers results by image content for ttl. A non-positive cleanup
// interval disables the background janitor.
func WithCache(ttl, cleanup time.Duration) Option {
	return func(d *Detector) {
		d.cache = cache.New(ttl, cleanup)
	}
}

// New creates a detector.
//
// Arguments:
//   - pre: Decodes image bytes into the model input.
//   - engine: Runs the model.
//   - classes: Maps class indices to labels; its size fixes C.
//   - opts: Optional settings.
//
// Returns:
//   - *Detector: The detector.
//   - error: If a required dependency is missing.
//
// Example:
//
// ```go
//
//	d, err := detector.New(pre, engine, classes, detector.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	result, err := d.Detect(ctx, data)
//
// ```
func New(pre Preprocessor, engine inference.Engine, classes *models.ClassTable, opts ...Option) (*Detector, error) {
	if pre == nil {
		return nil, errors.New("preprocessor is required")
	}
	if engine == nil {
		return nil, errors.New("inference engine is required")
	}
	if classes == nil || classes.Len() == 0 {
		return nil, errors.Wrap(models.ErrInvalidClassTable, "class table is required")
	}

	d := &Detector{
		pre:     pre,
		engine:  engine,
		classes: classes,
		nms:     postprocess.DefaultNMSConfig(),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect labels one encoded image.
//
// Undecodable input fails with ErrInputMissing before the engine is invoked.
// An image with nothing above the score threshold yields a Result with empty,
// non-nil Labels.
//
// Arguments:
//   - ctx: The request context, passed to the engine.
//   - data: The encoded image bytes.
//
// Returns:
//   - *Result: The labels, detections and stage timings.
//   - error: ErrInputMissing, a wrapped inference failure, or a configuration
//     error (see IsConfigurationError).
func (d *Detector) Detect(ctx context.Context, data []byte) (*Result, error) {
	start := time.Now()

	var key string
	if d.cache != nil && len(data) > 0 {
		sum := sha256.Sum256(data)
		key = hex.EncodeToString(sum[:])
		if cached, ok := d.cache.Get(key); ok {
			out := cached.(*postprocess.Output).Clone()
			d.record(metrics.StatusSuccess, out.Labels)
			if d.metrics != nil {
				d.metrics.RecordCacheHit()
			}
			return &Result{Output: out, Timings: Timings{Total: time.Since(start)}, Cached: true}, nil
		}
	}

	var timings Timings

	mark := time.Now()
	input, err := d.pre.Preprocess(data)
	if err != nil {
		d.record(metrics.StatusInputMissing, nil)
		return nil, NewInputError(err)
	}
	timings.Preprocess = time.Since(mark)

	mark = time.Now()
	output, err := d.engine.Predict(ctx, input)
	if err != nil {
		d.record(metrics.StatusInference, nil)
		return nil, errors.Wrap(err, "inference failed")
	}
	timings.Inference = time.Since(mark)

	mark = time.Now()
	out, err := postprocess.Process(output, d.classes, d.nms)
	if err != nil {
		d.record(metrics.StatusConfig, nil)
		d.log.WithError(err).WithField("fatal_config", true).Error("model output does not match the class table")
		return nil, err
	}
	timings.Postprocess = time.Since(mark)
	timings.Total = time.Since(start)

	if key != "" {
		d.cache.SetDefault(key, out.Clone())
	}

	d.record(metrics.StatusSuccess, out.Labels)
	if d.metrics != nil {
		d.metrics.RecordStage(metrics.StagePreprocess, timings.Preprocess)
		d.metrics.RecordStage(metrics.StageInference, timings.Inference)
		d.metrics.RecordStage(metrics.StagePostprocess, timings.Postprocess)
		d.metrics.RecordStage(metrics.StageTotal, timings.Total)
	}

	d.log.WithFields(logrus.Fields{
		"count":       out.Count,
		"labels":      out.Labels,
		"preprocess":  timings.Preprocess,
		"inference":   timings.Inference,
		"postprocess": timings.Postprocess,
	}).Debug("detection complete")

	return &Result{Output: out, Timings: timings}, nil
}

// DetectFile reads an image from disk and labels it. A missing or unreadable
// file is reported as ErrInputMissing.
func (d *Detector) DetectFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		d.record(metrics.StatusInputMissing, nil)
		return nil, NewInputError(err)
	}
	return d.Detect(ctx, data)
}

// Close releases the engine and drops cached results.
func (d *Detector) Close() error {
	if d.cache != nil {
		d.cache.Flush()
	}
	return d.engine.Close()
}

func (d *Detector) record(status string, labels []string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordRequest(status)
	d.metrics.RecordLabels(labels)
}

// IsConfigurationError reports whether err means the model and class table do
// not fit together. Such errors repeat on every request and should stop the
// process rather than be retried.
func IsConfigurationError(err error) bool {
	return errors.Is(err, postprocess.ErrShapeMismatch) || errors.Is(err, models.ErrIndexOutOfRange)
}
