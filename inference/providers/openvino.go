package providers

import (
	"strconv"

	"github.com/nvr-ai/go-detect/models/model"
)

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Overrides the accelerator hardware type (CPU, GPU, NPU). Empty keeps the build default.
	DeviceType string `json:"device_type" yaml:"device_type"`
	// Inference precision: FP32, FP16 or ACCURACY. Empty keeps the device default.
	Precision model.Precision `json:"precision" yaml:"precision"`
	// Overrides the default number of inference threads when positive.
	NumOfThreads int `json:"num_of_threads" yaml:"num_of_threads"`
}

// Settings returns the provider options in the key/value form ONNX Runtime expects.
// Unset options are left out so the provider keeps its own defaults.
func (o OpenVINOOptions) Settings() map[string]string {
	settings := map[string]string{}
	if o.DeviceType != "" {
		settings["device_type"] = o.DeviceType
	}
	if o.Precision != model.PrecisionDefault {
		settings["precision"] = string(o.Precision)
	}
	if o.NumOfThreads > 0 {
		settings["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	return settings
}
