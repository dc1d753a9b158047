package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Float32Data returns the backing slice of a float32 tensor.
//
// Arguments:
//   - t: The tensor.
//
// Returns:
//   - []float32: The row-major data, not copied.
//   - error: An error if t is nil or not float32.
func Float32Data(t *tensor.Dense) ([]float32, error) {
	if t == nil {
		return nil, errors.New("tensor is nil")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("tensor has dtype %v, want float32", t.Dtype())
	}
	return data, nil
}

// NewFloat32Tensor copies data into a new tensor with the given shape.
//
// Arguments:
//   - shape: The dimensions.
//   - data: The row-major values. Its length must equal the product of shape.
//
// Returns:
//   - *tensor.Dense: The tensor.
//   - error: An error if the sizes disagree.
func NewFloat32Tensor(shape []int, data []float32) (*tensor.Dense, error) {
	size := 1
	for _, d := range shape {
		if d < 0 {
			return nil, errors.Errorf("negative dimension in shape %v", shape)
		}
		size *= d
	}
	if size != len(data) {
		return nil, errors.Errorf("shape %v holds %d values, got %d", shape, size, len(data))
	}
	backing := make([]float32, len(data))
	copy(backing, data)
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing)), nil
}

func toORT(t *tensor.Dense) (*ort.Tensor[float32], error) {
	data, err := Float32Data(t)
	if err != nil {
		return nil, err
	}
	dims := make([]int64, 0, t.Dims())
	for _, d := range t.Shape() {
		dims = append(dims, int64(d))
	}
	value, err := ort.NewTensor(ort.NewShape(dims...), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	return value, nil
}

func fromORT(value ort.Value) (*tensor.Dense, error) {
	t, ok := value.(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("output is %T, want float32 tensor", value)
	}
	shape := make([]int, 0, len(t.GetShape()))
	for _, d := range t.GetShape() {
		shape = append(shape, int(d))
	}
	return NewFloat32Tensor(shape, t.GetData())
}

// planarToInterleaved converts channel-planar [C, H, W] data to interleaved
// [H, W, C] data.
func planarToInterleaved(src []float32, channels, height, width int) []float32 {
	dst := make([]float32, len(src))
	plane := height * width
	for c := 0; c < channels; c++ {
		for i := 0; i < plane; i++ {
			dst[i*channels+c] = src[c*plane+i]
		}
	}
	return dst
}
