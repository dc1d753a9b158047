package detectors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, float32(0.15), cfg.ConfidenceThreshold)
	assert.Equal(t, float32(0.45), cfg.IoUThreshold)
	assert.Equal(t, 3, cfg.MaxDetections)
	assert.Equal(t, 640, cfg.InputWidth)
	assert.Equal(t, 640, cfg.InputHeight)
	assert.Equal(t, []int{0, 39, 41, 45, 56, 60, 63, 64, 65, 66, 67, 73}, cfg.AllowedClasses)
	assert.Len(t, cfg.Labels, 80)
	assert.Equal(t, images.ResamplerBilinear, cfg.Resampler)
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfig_Independent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedClasses[0] = 99
	cfg.Labels[0] = "someone"

	assert.Equal(t, 0, models.DefaultAllowedClasses[0])
	assert.Equal(t, "person", models.YOLOClasses[0])
	assert.Equal(t, 0, DefaultConfig().AllowedClasses[0])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero width", func(c *Config) { c.InputWidth = 0 }},
		{"negative height", func(c *Config) { c.InputHeight = -640 }},
		{"negative max detections", func(c *Config) { c.MaxDetections = -1 }},
		{"confidence above one", func(c *Config) { c.ConfidenceThreshold = 1.5 }},
		{"negative confidence", func(c *Config) { c.ConfidenceThreshold = -0.1 }},
		{"iou above one", func(c *Config) { c.IoUThreshold = 2 }},
		{"negative class", func(c *Config) { c.AllowedClasses = []int{1, -3} }},
		{"unknown resampler", func(c *Config) { c.Resampler = "cubic" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfig_ValidateEdges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDetections = 0
	cfg.ConfidenceThreshold = 0
	cfg.IoUThreshold = 1
	cfg.AllowedClasses = nil
	cfg.Labels = nil
	assert.NoError(t, cfg.Validate())
}

func TestParseConfig(t *testing.T) {
	doc := []byte(`
confidence_threshold: 0.3
max_detections: 10
allowed_classes: [1, 2]
resampler: lanczos
`)
	cfg, err := ParseConfig(doc)
	require.NoError(t, err)

	assert.Equal(t, float32(0.3), cfg.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.MaxDetections)
	assert.Equal(t, []int{1, 2}, cfg.AllowedClasses)
	assert.Equal(t, images.ResamplerLanczos, cfg.Resampler)

	// Untouched keys keep their defaults.
	assert.Equal(t, float32(0.45), cfg.IoUThreshold)
	assert.Equal(t, 640, cfg.InputWidth)
	assert.Len(t, cfg.Labels, 80)
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("max_detections: [oops"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("iou_threshold: 4"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detector.yaml")
	require.NoError(t, os.WriteFile(path, []byte("labels: [cat, dog]\ninput_width: 320\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, models.LabelTable{"cat", "dog"}, cfg.Labels)
	assert.Equal(t, 320, cfg.InputWidth)
	assert.Equal(t, 640, cfg.InputHeight)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Whitelist(t *testing.T) {
	cfg := DefaultConfig()
	w := cfg.Whitelist()
	assert.True(t, w.Contains(0))
	assert.True(t, w.Contains(73))
	assert.False(t, w.Contains(1))
}
