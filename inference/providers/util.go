package providers

import (
	"os"
	"runtime"
)

// LibraryPathEnv overrides the ONNX Runtime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the ONNX Runtime shared library for the
// current platform, honoring LibraryPathEnv when set.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath() string {
	if path := os.Getenv(LibraryPathEnv); path != "" {
		return path
	}
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}
