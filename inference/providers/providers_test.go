package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	valid.ModelPath = "model.onnx"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing model path", func(c *Config) { c.ModelPath = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "coreml" }},
		{"negative intra-op threads", func(c *Config) { c.IntraOpThreads = -1 }},
		{"negative inter-op threads", func(c *Config) { c.InterOpThreads = -2 }},
		{"unknown optimization level", func(c *Config) { c.OptimizationLevel = "max" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Config{Backend: "openvino", ModelPath: "model.onnx"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestGraphOptimizationLevel(t *testing.T) {
	for _, name := range []string{"", "all", "extended", "basic", "disabled"} {
		_, err := graphOptimizationLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := graphOptimizationLevel("aggressive")
	assert.Error(t, err)
}

func TestGetSharedLibPath_Env(t *testing.T) {
	t.Setenv(LibraryPathEnv, "/opt/onnxruntime/lib/libonnxruntime.so")
	assert.Equal(t, "/opt/onnxruntime/lib/libonnxruntime.so", GetSharedLibPath())

	t.Setenv(LibraryPathEnv, "")
	assert.NotEmpty(t, GetSharedLibPath())
}

func TestNewFloat32Tensor(t *testing.T) {
	src := []float32{1, 2, 3, 4, 5, 6}
	dense, err := NewFloat32Tensor([]int{1, 2, 3}, src)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 3}, dense.Shape())

	data, err := Float32Data(dense)
	require.NoError(t, err)
	assert.Equal(t, src, data)

	// The tensor owns a copy.
	src[0] = 42
	assert.Equal(t, float32(1), data[0])

	_, err = NewFloat32Tensor([]int{2, 2}, src)
	assert.Error(t, err)

	_, err = NewFloat32Tensor([]int{-1, 6}, src)
	assert.Error(t, err)
}

func TestFloat32Data_Errors(t *testing.T) {
	_, err := Float32Data(nil)
	assert.Error(t, err)

	ints := tensor.New(tensor.WithShape(2), tensor.WithBacking([]int{1, 2}))
	_, err = Float32Data(ints)
	assert.Error(t, err)
}

func TestPlanarToInterleaved(t *testing.T) {
	// 3 channels of a 1x2 image.
	planar := []float32{
		1, 2, // red
		3, 4, // green
		5, 6, // blue
	}
	got := planarToInterleaved(planar, 3, 1, 2)
	assert.Equal(t, []float32{1, 3, 5, 2, 4, 6}, got)
}

func TestWantsInterleaved(t *testing.T) {
	feed := tensor.Shape{1, 3, 640, 640}
	assert.True(t, wantsInterleaved([]int{1, 640, 640, 3}, feed))
	assert.False(t, wantsInterleaved([]int{1, 3, 640, 640}, feed))
	assert.False(t, wantsInterleaved([]int{1, 320, 320, 3}, feed))
	assert.False(t, wantsInterleaved([]int{1, 640, 640}, feed))

	// Square 3x3 inputs with 3 channels match planar first.
	assert.False(t, wantsInterleaved([]int{1, 3, 3, 3}, tensor.Shape{1, 3, 3, 3}))
}
