// Package providers - Inference backends that execute a model on named tensors.
package providers

import (
	"context"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Backend identifies the runtime used to execute a model.
type Backend string

const (
	// BackendONNX runs .onnx models with ONNX Runtime.
	BackendONNX Backend = "onnx"
	// BackendTFLite runs .tflite models with the TensorFlow Lite interpreter.
	BackendTFLite Backend = "tflite"
)

// Backends is a list of all supported backends.
var Backends = []Backend{BackendONNX, BackendTFLite}

var (
	// ErrNoInputs is returned when a model declares no inputs.
	ErrNoInputs = errors.New("model declares no inputs")
	// ErrNoOutputs is returned when a model declares no outputs.
	ErrNoOutputs = errors.New("model declares no outputs")
	// ErrUnknownBackend is returned for a backend outside Backends.
	ErrUnknownBackend = errors.New("unknown backend")
)

// Session is a loaded model. Names are discovered from the model itself.
//
// Run binds each tensor in inputs to the model input of the same name and returns
// every model output keyed by name. Tensors are float32 and row-major. A Session
// is not safe for overlapping Run calls.
type Session interface {
	InputNames() []string
	OutputNames() []string
	Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error)
	Close() error
}

// Open loads the model described by cfg with the configured backend.
//
// Arguments:
//   - cfg: The session configuration.
//
// Returns:
//   - Session: The loaded session. The caller must Close it.
//   - error: An error if the configuration is invalid or the model cannot be loaded.
func Open(cfg Config) (Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendONNX:
		return NewONNXSession(cfg)
	case BackendTFLite:
		return NewTFLiteSession(cfg)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Backend)
	}
}
