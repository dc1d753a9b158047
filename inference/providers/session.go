package providers

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var envMu sync.Mutex

// initEnvironment loads the ONNX Runtime shared library once per process.
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

// Shutdown releases the process-wide ONNX Runtime environment. Sessions must be
// closed first.
//
// Returns:
//   - error: An error if the environment cannot be destroyed.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return errors.Wrap(ort.DestroyEnvironment(), "error destroying ORT environment")
}

// ONNXSession executes an ONNX model with ONNX Runtime on the CPU.
type ONNXSession struct {
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

// NewONNXSession loads an ONNX model.
//
// Order of operations:
//  1. Environment setup: loads the native library once per process.
//  2. Name discovery: reads the declared inputs and outputs from the model file.
//  3. Session options: threading and graph optimization level.
//  4. Session creation: binds the discovered names. Tensors are allocated per Run,
//     so models with dynamic output shapes work unchanged.
//
// Arguments:
//   - cfg: The session configuration.
//
// Returns:
//   - *ONNXSession: The loaded session. The caller must Close it.
//   - error: An error if the runtime or the model cannot be loaded.
func NewONNXSession(cfg Config) (*ONNXSession, error) {
	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading inputs and outputs of %s", cfg.ModelPath)
	}
	if len(inputs) == 0 {
		return nil, errors.Wrap(ErrNoInputs, cfg.ModelPath)
	}
	if len(outputs) == 0 {
		return nil, errors.Wrap(ErrNoOutputs, cfg.ModelPath)
	}

	s := &ONNXSession{}
	for _, info := range inputs {
		s.inputNames = append(s.inputNames, info.Name)
	}
	for _, info := range outputs {
		s.outputNames = append(s.outputNames, info.Name)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, errors.Wrap(err, "error setting intra-op threads")
		}
	}
	if cfg.InterOpThreads > 0 {
		if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
			return nil, errors.Wrap(err, "error setting inter-op threads")
		}
	}
	level, err := graphOptimizationLevel(cfg.OptimizationLevel)
	if err != nil {
		return nil, err
	}
	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}

	s.session, err = ort.NewDynamicAdvancedSession(cfg.ModelPath, s.inputNames, s.outputNames, options)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating ORT session for %s", cfg.ModelPath)
	}
	return s, nil
}

// InputNames returns the model's declared input names.
func (s *ONNXSession) InputNames() []string { return s.inputNames }

// OutputNames returns the model's declared output names.
func (s *ONNXSession) OutputNames() []string { return s.outputNames }

// Run executes the model once.
//
// Arguments:
//   - ctx: Checked before execution starts; a running inference is not interrupted.
//   - inputs: A float32 tensor for every declared input name.
//
// Returns:
//   - map[string]*tensor.Dense: Every declared output, copied out of native memory.
//   - error: An error if an input is missing or execution fails.
func (s *ONNXSession) Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	values := make([]ort.Value, len(s.inputNames))
	for i, name := range s.inputNames {
		t, ok := inputs[name]
		if !ok {
			return nil, errors.Errorf("missing input tensor %q", name)
		}
		value, err := toORT(t)
		if err != nil {
			return nil, errors.Wrapf(err, "input %q", name)
		}
		defer value.Destroy()
		values[i] = value
	}

	outputs := make([]ort.Value, len(s.outputNames))
	if err := s.session.Run(values, outputs); err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}
	defer func() {
		for _, v := range outputs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	results := make(map[string]*tensor.Dense, len(s.outputNames))
	for i, name := range s.outputNames {
		if outputs[i] == nil {
			return nil, errors.Errorf("runtime produced no value for output %q", name)
		}
		t, err := fromORT(outputs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "output %q", name)
		}
		results[name] = t
	}
	return results, nil
}

// Close releases the native session.
//
// Returns:
//   - error: An error if the session cannot be destroyed.
func (s *ONNXSession) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}
