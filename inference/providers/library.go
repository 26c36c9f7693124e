package providers

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// LibraryEnv overrides the shared library location when set.
const LibraryEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// SharedLibPath returns the onnxruntime shared library for the given platform.
//
// Arguments:
//   - goos: The target operating system, usually runtime.GOOS.
//   - goarch: The target architecture, usually runtime.GOARCH.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if no library is bundled for the platform.
func SharedLibPath(goos, goarch string) (string, error) {
	switch goos {
	case "windows":
		if goarch == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/onnxruntime_" + goarch + ".dylib", nil
	case "linux":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		if goarch == "amd64" {
			return "./third_party/onnxruntime.so", nil
		}
	}
	return "", errors.Errorf("no onnxruntime library for %s/%s", goos, goarch)
}

// ResolveLibPath picks the shared library: the configured path, then LibraryEnv,
// then the bundled library for the running platform.
func ResolveLibPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if env := os.Getenv(LibraryEnv); env != "" {
		return env, nil
	}
	return SharedLibPath(runtime.GOOS, runtime.GOARCH)
}
