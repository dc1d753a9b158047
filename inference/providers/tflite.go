package providers

import (
	"context"

	"github.com/mattn/go-tflite"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// TFLiteSession executes a TensorFlow Lite model with the CPU interpreter.
type TFLiteSession struct {
	model       *tflite.Model
	interp      *tflite.Interpreter
	inputNames  []string
	outputNames []string
}

// NewTFLiteSession loads a TensorFlow Lite model and allocates its tensors.
//
// Arguments:
//   - cfg: The session configuration. IntraOpThreads sets the interpreter threads.
//
// Returns:
//   - *TFLiteSession: The loaded session. The caller must Close it.
//   - error: An error if the model cannot be loaded or allocated.
func NewTFLiteSession(cfg Config) (*TFLiteSession, error) {
	model := tflite.NewModelFromFile(cfg.ModelPath)
	if model == nil {
		return nil, errors.Errorf("cannot load model %s", cfg.ModelPath)
	}

	options := tflite.NewInterpreterOptions()
	defer options.Delete()
	if cfg.IntraOpThreads > 0 {
		options.SetNumThread(cfg.IntraOpThreads)
	}

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		model.Delete()
		return nil, errors.Errorf("cannot create interpreter for %s", cfg.ModelPath)
	}
	if status := interp.AllocateTensors(); status != tflite.OK {
		interp.Delete()
		model.Delete()
		return nil, errors.Errorf("tensor allocation failed for %s: %v", cfg.ModelPath, status)
	}

	s := &TFLiteSession{model: model, interp: interp}
	for i := 0; i < interp.GetInputTensorCount(); i++ {
		s.inputNames = append(s.inputNames, interp.GetInputTensor(i).Name())
	}
	for i := 0; i < interp.GetOutputTensorCount(); i++ {
		s.outputNames = append(s.outputNames, interp.GetOutputTensor(i).Name())
	}
	if len(s.inputNames) == 0 {
		s.Close()
		return nil, errors.Wrap(ErrNoInputs, cfg.ModelPath)
	}
	if len(s.outputNames) == 0 {
		s.Close()
		return nil, errors.Wrap(ErrNoOutputs, cfg.ModelPath)
	}
	return s, nil
}

// InputNames returns the model's declared input names.
func (s *TFLiteSession) InputNames() []string { return s.inputNames }

// OutputNames returns the model's declared output names.
func (s *TFLiteSession) OutputNames() []string { return s.outputNames }

// Run executes the model once.
//
// Channel-planar [1, C, H, W] inputs are converted to interleaved [1, H, W, C]
// when the model declares an interleaved input of the same size.
//
// Arguments:
//   - ctx: Checked before execution starts.
//   - inputs: A float32 tensor for every declared input name.
//
// Returns:
//   - map[string]*tensor.Dense: Every declared output, copied out of the interpreter.
//   - error: An error if an input is missing or mismatched, or invocation fails.
func (s *TFLiteSession) Run(ctx context.Context, inputs map[string]*tensor.Dense) (map[string]*tensor.Dense, error) {
	if s.interp == nil {
		return nil, errors.New("session is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, name := range s.inputNames {
		t, ok := inputs[name]
		if !ok {
			return nil, errors.Errorf("missing input tensor %q", name)
		}
		data, err := Float32Data(t)
		if err != nil {
			return nil, errors.Wrapf(err, "input %q", name)
		}

		in := s.interp.GetInputTensor(i)
		if in.Type() != tflite.Float32 {
			return nil, errors.Errorf("input %q has type %v, want float32", name, in.Type())
		}
		dims := tensorShape(in)
		if wantsInterleaved(dims, t.Shape()) {
			data = planarToInterleaved(data, t.Shape()[1], t.Shape()[2], t.Shape()[3])
		}
		dst := in.Float32s()
		if len(dst) != len(data) {
			return nil, errors.Errorf("input %q holds %d values %v, got %d %v",
				name, len(dst), dims, len(data), t.Shape())
		}
		copy(dst, data)
	}

	if status := s.interp.Invoke(); status != tflite.OK {
		return nil, errors.Errorf("failed to run inference: %v", status)
	}

	results := make(map[string]*tensor.Dense, len(s.outputNames))
	for i, name := range s.outputNames {
		out := s.interp.GetOutputTensor(i)
		if out.Type() != tflite.Float32 {
			return nil, errors.Errorf("output %q has type %v, want float32", name, out.Type())
		}
		t, err := NewFloat32Tensor(tensorShape(out), out.Float32s())
		if err != nil {
			return nil, errors.Wrapf(err, "output %q", name)
		}
		results[name] = t
	}
	return results, nil
}

// Close releases the interpreter and the model.
//
// Returns:
//   - error: Always nil.
func (s *TFLiteSession) Close() error {
	if s.interp != nil {
		s.interp.Delete()
		s.interp = nil
	}
	if s.model != nil {
		s.model.Delete()
		s.model = nil
	}
	return nil
}

func tensorShape(t *tflite.Tensor) []int {
	shape := make([]int, 0, t.NumDims())
	for i := 0; i < t.NumDims(); i++ {
		shape = append(shape, t.Dim(i))
	}
	return shape
}

// wantsInterleaved reports whether a planar [N, C, H, W] feed must be rearranged
// to match a model input declared as [N, H, W, C].
func wantsInterleaved(modelDims []int, feed tensor.Shape) bool {
	if len(modelDims) != 4 || len(feed) != 4 {
		return false
	}
	c, h, w := feed[1], feed[2], feed[3]
	if modelDims[1] == c && modelDims[2] == h && modelDims[3] == w {
		return false
	}
	return modelDims[1] == h && modelDims[2] == w && modelDims[3] == c
}
