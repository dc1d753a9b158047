// Package detectors - Decodes raw detection-model output and runs the detection pipeline.
package detectors

import (
	"math"
	"os"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid detector config")

// Config holds the tunables of one detection pipeline. A Detector copies it at
// construction time and never changes it afterwards.
type Config struct {
	// ConfidenceThreshold is the exclusive lower bound on the winning class score.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// IoUThreshold is the exclusive overlap above which a same-class box is suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`

	// MaxDetections caps the number of returned detections.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`

	// InputWidth and InputHeight are the model input size in pixels.
	InputWidth  int `json:"input_width" yaml:"input_width"`
	InputHeight int `json:"input_height" yaml:"input_height"`

	// AllowedClasses lists the class indices that may be reported.
	AllowedClasses []int `json:"allowed_classes" yaml:"allowed_classes"`

	// Labels names each class index.
	Labels models.LabelTable `json:"labels" yaml:"labels"`

	// Resampler selects the interpolation used when stretching frames.
	Resampler images.Resampler `json:"resampler" yaml:"resampler"`
}

// DefaultConfig returns the desk-scene configuration for 640x640 COCO models.
//
// Returns:
//   - Config: The default configuration.
//
// @example
// cfg := DefaultConfig()
// cfg.ConfidenceThreshold = 0.25
// detector, err := NewDetector(session, cfg)
func DefaultConfig() Config {
	allowed := make([]int, len(models.DefaultAllowedClasses))
	copy(allowed, models.DefaultAllowedClasses)
	labels := make(models.LabelTable, len(models.YOLOClasses))
	copy(labels, models.YOLOClasses)

	return Config{
		ConfidenceThreshold: 0.15,
		IoUThreshold:        0.45,
		MaxDetections:       3,
		InputWidth:          640,
		InputHeight:         640,
		AllowedClasses:      allowed,
		Labels:              labels,
		Resampler:           images.ResamplerBilinear,
	}
}

// Validate checks that the configuration describes a usable pipeline.
//
// Returns:
//   - error: An error wrapping ErrInvalidConfig that names the first invalid field.
func (c Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "input size must be positive, got %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.MaxDetections < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_detections must be >= 0, got %d", c.MaxDetections)
	}
	if !inUnitRange(c.ConfidenceThreshold) {
		return errors.Wrapf(ErrInvalidConfig, "confidence_threshold must be in [0, 1], got %v", c.ConfidenceThreshold)
	}
	if !inUnitRange(c.IoUThreshold) {
		return errors.Wrapf(ErrInvalidConfig, "iou_threshold must be in [0, 1], got %v", c.IoUThreshold)
	}
	for _, id := range c.AllowedClasses {
		if id < 0 {
			return errors.Wrapf(ErrInvalidConfig, "allowed class %d is negative", id)
		}
	}
	if _, err := images.ParseResampler(string(c.Resampler)); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

// Whitelist returns the allowed classes as a set.
func (c Config) Whitelist() models.ClassWhitelist {
	return models.NewClassWhitelist(c.AllowedClasses...)
}

// LoadConfig reads a YAML file over DefaultConfig. Keys missing from the file keep
// their default values; a key that is present replaces the default entirely.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The merged and validated configuration.
//   - error: An error if the file cannot be read or parsed, or fails validation.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
//
// Arguments:
//   - data: The YAML document. Empty input yields the defaults.
//
// Returns:
//   - Config: The merged and validated configuration.
//   - error: An error if the document cannot be parsed or fails validation.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}
	if cfg.Resampler == "" {
		cfg.Resampler = images.ResamplerBilinear
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func inUnitRange(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && f >= 0 && f <= 1
}
