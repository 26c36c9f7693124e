package providers

import "strconv"

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// The size limit of the device memory arena in bytes, 0 for no limit.
	GPUMemLimit int64 `json:"gpu_mem_limit" yaml:"gpu_mem_limit"`
	// TF32 allows float32 matmuls and convolutions to run on tensor cores with
	// reduced precision.
	UseTF32 bool `json:"use_tf32" yaml:"use_tf32"`
}

// Settings returns the provider options in the key/value form ONNX Runtime expects.
func (o CUDAOptions) Settings() map[string]string {
	settings := map[string]string{
		"device_id": strconv.Itoa(o.DeviceID),
		"use_tf32":  boolFlag(o.UseTF32),
	}
	if o.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	return settings
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
