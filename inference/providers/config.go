package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Config describes how to load a model.
type Config struct {
	// Backend selects the runtime.
	Backend Backend `json:"backend" yaml:"backend"`

	// ModelPath is the path to the model file.
	ModelPath string `json:"model_path" yaml:"model_path"`

	// LibraryPath overrides the ONNX Runtime shared library location.
	// Empty uses GetSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`

	// IntraOpThreads parallelizes work inside a graph node. 0 uses the runtime default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`

	// InterOpThreads parallelizes independent graph nodes (ONNX only). 0 uses the runtime default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`

	// OptimizationLevel is one of "disabled", "basic", "extended" or "all" (ONNX only).
	OptimizationLevel string `json:"optimization_level" yaml:"optimization_level"`
}

// DefaultConfig returns a CPU configuration for ONNX Runtime with full graph
// optimization. ModelPath must still be set.
//
// Returns:
//   - Config: The default configuration.
func DefaultConfig() Config {
	return Config{
		Backend:           BackendONNX,
		OptimizationLevel: "all",
	}
}

// Validate checks that the configuration can be used to open a session.
//
// Returns:
//   - error: An error describing the first invalid field.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model_path is required")
	}
	known := false
	for _, b := range Backends {
		if c.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return errors.Wrapf(ErrUnknownBackend, "%q", c.Backend)
	}
	if c.IntraOpThreads < 0 {
		return errors.Errorf("intra_op_threads must be >= 0, got %d", c.IntraOpThreads)
	}
	if c.InterOpThreads < 0 {
		return errors.Errorf("inter_op_threads must be >= 0, got %d", c.InterOpThreads)
	}
	if _, err := graphOptimizationLevel(c.OptimizationLevel); err != nil {
		return err
	}
	return nil
}

func graphOptimizationLevel(name string) (ort.GraphOptimizationLevel, error) {
	switch name {
	case "", "all":
		return ort.GraphOptimizationLevelEnableAll, nil
	case "extended":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case "basic":
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "disabled":
		return ort.GraphOptimizationLevelDisableAll, nil
	default:
		return 0, errors.Errorf("unknown optimization_level %q", name)
	}
}
