package inference

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-detect/inference/providers"
	"github.com/nvr-ai/go-detect/models/model"
)

// Config holds everything needed to open an ONNX model.
type Config struct {
	// ModelPath is the path to the .onnx file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibPath overrides the onnxruntime shared library location.
	LibPath string `json:"lib_path" yaml:"lib_path"`
	// Spec is the expected tensor contract. Names and N are refined from the model.
	Spec model.Spec `json:"spec" yaml:"spec"`
	// Provider selects the execution provider and threading.
	Provider providers.Config `json:"provider" yaml:"provider"`
}

// Validate checks the configuration before any native resources are touched.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if err := c.Spec.Validate(); err != nil {
		return errors.Wrap(err, "invalid model spec")
	}
	if _, err := providers.ParseBackend(string(c.Provider.Backend)); err != nil {
		return err
	}
	return nil
}

// ONNXEngine runs a detection model with ONNX Runtime.
//
// The session is created once and shared; every Predict call binds its own
// input and output values, so concurrent calls do not share buffers.
type ONNXEngine struct {
	mu      sync.RWMutex
	session *ort.DynamicAdvancedSession
	spec    model.Spec
}

var envMu sync.Mutex

// initEnvironment loads the shared library and initialises the runtime once
// per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// Shutdown releases the process wide ONNX Runtime environment. Call it once,
// after every engine is closed.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// NewONNXEngine creates an ONNX Runtime engine.
//
// Order of operations:
//  1. Library path resolution and environment setup.
//  2. Model inspection: the graph input and output are checked against cfg.Spec.
//  3. Session options with the configured execution provider.
//  4. Session creation.
//
// Arguments:
//   - cfg: The engine configuration.
//
// Returns:
//   - *ONNXEngine: The engine, to be released with Close.
//   - error: An error if the model cannot be loaded or does not fit the spec.
func NewONNXEngine(cfg Config) (*ONNXEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model not found")
	}

	libPath, err := providers.ResolveLibPath(cfg.LibPath)
	if err != nil {
		return nil, err
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading model inputs and outputs")
	}
	spec, err := resolveSpec(cfg.Spec, inputs, outputs)
	if err != nil {
		return nil, err
	}

	options, err := providers.NewSessionOptions(cfg.Provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{spec.InputName},
		[]string{spec.OutputName},
		options,
	)
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session")
	}

	return &ONNXEngine{session: session, spec: spec}, nil
}

// resolveSpec reconciles the configured contract with what the model declares.
// Dynamic dimensions (reported as -1) are taken from the configuration.
func resolveSpec(spec model.Spec, inputs, outputs []ort.InputOutputInfo) (model.Spec, error) {
	in, err := pickInfo(inputs, spec.InputName, "input")
	if err != nil {
		return spec, err
	}
	out, err := pickInfo(outputs, spec.OutputName, "output")
	if err != nil {
		return spec, err
	}
	spec.InputName = in.Name
	spec.OutputName = out.Name

	want := spec.InputShape()
	if len(in.Dimensions) != len(want) {
		return spec, errors.Errorf("model input %q has %d dimensions, want %d", in.Name, len(in.Dimensions), len(want))
	}
	for i, d := range in.Dimensions {
		if d > 0 && int(d) != want[i] {
			return spec, errors.Errorf("model input %q is %v, want %v", in.Name, in.Dimensions, want)
		}
	}

	if len(out.Dimensions) != 3 {
		return spec, errors.Errorf("model output %q has %d dimensions, want 3", out.Name, len(out.Dimensions))
	}
	if rows, need := out.Dimensions[1], spec.OutputShape()[1]; rows > 0 && int(rows) != need {
		return spec, errors.Errorf("model output %q has %d rows, class table needs %d", out.Name, rows, need)
	}
	if n := out.Dimensions[2]; n > 0 {
		spec.Candidates = int(n)
	}
	return spec, nil
}

// pickInfo returns the named entry, or the only entry when the name is unknown.
func pickInfo(infos []ort.InputOutputInfo, name, kind string) (ort.InputOutputInfo, error) {
	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	if len(infos) == 1 {
		return infos[0], nil
	}
	return ort.InputOutputInfo{}, errors.Errorf("model has no %s named %q", kind, name)
}

// Spec returns the tensor contract resolved against the loaded model.
func (e *ONNXEngine) Spec() model.Spec {
	return e.spec
}

// Predict runs the model on one preprocessed image.
//
// The context is checked before the run starts; a run in progress is not
// interrupted.
//
// Arguments:
//   - ctx: The request context.
//   - input: A float32 tensor of shape [1, 3, S, S].
//
// Returns:
//   - *tensor.Dense: The model output, backed by memory owned by the caller.
//   - error: ErrEngineClosed, a context error, or the runtime failure.
func (e *ONNXEngine) Predict(ctx context.Context, input *tensor.Dense) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil {
		return nil, errors.New("input tensor is nil")
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("input dtype %v, want float32", input.Dtype())
	}

	shape := make([]int64, len(input.Shape()))
	for i, d := range input.Shape() {
		shape[i] = int64(d)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.session == nil {
		return nil, ErrEngineClosed
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("unexpected output type %T", outputs[0])
	}

	// The native buffer dies with the output value.
	values := make([]float32, len(outputTensor.GetData()))
	copy(values, outputTensor.GetData())

	outShape := outputTensor.GetShape()
	dims := make([]int, len(outShape))
	for i, d := range outShape {
		dims[i] = int(d)
	}

	return tensor.New(
		tensor.WithShape(dims...),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(values),
	), nil
}

// Close releases the session. It is safe to call more than once.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}
