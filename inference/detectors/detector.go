package detectors

import (
	"context"
	"image"
	"time"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference/preprocess"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

// Detector runs the full detection pipeline against one model session.
//
// A Detector holds no per-call state, but its session expects one Run at a time:
// callers must not overlap Detect calls on the same Detector.
type Detector struct {
	session    providers.Session
	cfg        Config
	decoder    *Decoder
	inputName  string
	outputName string
	logger     logrus.FieldLogger
	recorder   Recorder
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for per-call diagnostics.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRecorder sets the recorder that receives anchor scores and stage timings.
func WithRecorder(recorder Recorder) Option {
	return func(d *Detector) {
		if recorder != nil {
			d.recorder = recorder
		}
	}
}

// NewDetector creates a detector bound to the first input and first output the
// session declares.
//
// Arguments:
//   - session: The loaded model.
//   - cfg: The pipeline configuration. It is copied.
//   - opts: Optional logger and recorder.
//
// Returns:
//   - *Detector: The detector.
//   - error: An error if cfg is invalid or the session declares no inputs or outputs.
func NewDetector(session providers.Session, cfg Config, opts ...Option) (*Detector, error) {
	if session == nil {
		return nil, errors.New("session is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(session.InputNames()) == 0 {
		return nil, providers.ErrNoInputs
	}
	if len(session.OutputNames()) == 0 {
		return nil, providers.ErrNoOutputs
	}

	cfg.AllowedClasses = append([]int(nil), cfg.AllowedClasses...)
	cfg.Labels = append(cfg.Labels[:0:0], cfg.Labels...)

	d := &Detector{
		session:    session,
		cfg:        cfg,
		inputName:  session.InputNames()[0],
		outputName: session.OutputNames()[0],
		logger:     logrus.StandardLogger(),
		recorder:   noopRecorder{},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.decoder = NewDecoder(cfg, d.recorder)
	return d, nil
}

// Config returns a copy of the detector's configuration.
func (d *Detector) Config() Config {
	cfg := d.cfg
	cfg.AllowedClasses = append([]int(nil), d.cfg.AllowedClasses...)
	cfg.Labels = append(d.cfg.Labels[:0:0], d.cfg.Labels...)
	return cfg
}

// Detect finds objects in img.
//
// Order of operations:
//  1. Preprocess: stretch to the input size and build a [1, 3, H, W] tensor.
//  2. Inference: bind the tensor to the model's input and run the session once.
//  3. Decode: read the model's output and keep allowed anchors above the threshold.
//  4. Suppress: greedy per-class non-maximum suppression.
//  5. Limit: keep the most confident MaxDetections.
//
// A failing session, or one that does not return a float32 tensor for the bound
// output, is an error. An output that cannot be decoded yields no detections.
//
// Arguments:
//   - ctx: Checked before inference starts.
//   - img: The frame.
//
// Returns:
//   - []postprocess.Detection: Detections in original-image pixels, most confident
//     first. Never nil on success.
//   - error: An error if inference fails.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}

	start := time.Now()
	input := preprocess.Preprocess(img, d.cfg.InputWidth, d.cfg.InputHeight, d.cfg.Resampler)
	d.recorder.ObserveStage(StagePreprocess, time.Since(start))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	outputs, err := d.session.Run(ctx, map[string]*tensor.Dense{d.inputName: input.Tensor})
	if err != nil {
		return nil, errors.Wrap(err, "failed to run inference")
	}
	d.recorder.ObserveStage(StageInference, time.Since(start))

	output, ok := outputs[d.outputName]
	if !ok || output == nil {
		return nil, errors.Errorf("inference returned no tensor for output %q", d.outputName)
	}
	if _, err := providers.Float32Data(output); err != nil {
		return nil, errors.Wrapf(err, "output %q", d.outputName)
	}

	meta := Meta{
		InputWidth:     d.cfg.InputWidth,
		InputHeight:    d.cfg.InputHeight,
		OriginalWidth:  input.OriginalWidth,
		OriginalHeight: input.OriginalHeight,
	}
	layout, anchors, channels := ClassifyLayout(output.Shape())
	log := d.logger.WithFields(logrus.Fields{
		"shape":  output.Shape(),
		"layout": layout,
		"size":   meta,
	})
	if layout == LayoutInvalid {
		log.Warn("unexpected output shape, no detections decoded")
	}

	start = time.Now()
	candidates := d.decoder.Decode(output, meta)
	d.recorder.ObserveStage(StageDecode, time.Since(start))

	start = time.Now()
	kept := postprocess.Suppress(candidates, d.cfg.IoUThreshold)
	detections := postprocess.Limit(kept, d.cfg.MaxDetections)
	d.recorder.ObserveStage(StageSuppress, time.Since(start))

	log.WithFields(logrus.Fields{
		"anchors":    anchors,
		"classes":    max(channels-4, 0),
		"candidates": len(candidates),
		"kept":       len(kept),
		"returned":   len(detections),
	}).Debug("detection complete")

	return detections, nil
}

// DetectMat finds objects in an OpenCV frame.
//
// Arguments:
//   - ctx: Checked before inference starts.
//   - mat: The BGR frame.
//
// Returns:
//   - []postprocess.Detection: See Detect.
//   - error: An error if the frame cannot be converted or inference fails.
func (d *Detector) DetectMat(ctx context.Context, mat gocv.Mat) ([]postprocess.Detection, error) {
	img, err := images.FromMat(mat)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, img)
}

// WarmUp runs the pipeline on a blank frame so the first real frame does not pay
// for lazy runtime initialization.
//
// Arguments:
//   - ctx: The context for each run.
//   - runs: The number of times to run the pipeline.
//
// Returns:
//   - error: An error if any run fails.
func (d *Detector) WarmUp(ctx context.Context, runs int) error {
	blank := image.NewRGBA(image.Rect(0, 0, d.cfg.InputWidth, d.cfg.InputHeight))
	for i := 0; i < runs; i++ {
		if _, err := d.Detect(ctx, blank); err != nil {
			return errors.Wrapf(err, "warm-up run %d", i+1)
		}
	}
	return nil
}

// ModelInfo describes the bound model and the pipeline settings.
type ModelInfo struct {
	InputName           string   `json:"input_name"`
	OutputName          string   `json:"output_name"`
	InputWidth          int      `json:"input_width"`
	InputHeight         int      `json:"input_height"`
	ConfidenceThreshold float32  `json:"confidence_threshold"`
	IoUThreshold        float32  `json:"iou_threshold"`
	MaxDetections       int      `json:"max_detections"`
	AllowedClasses      []int    `json:"allowed_classes"`
	AllowedLabels       []string `json:"allowed_labels"`
	Resampler           string   `json:"resampler"`
}

// Info returns information about the bound model.
func (d *Detector) Info() ModelInfo {
	ids := d.cfg.Whitelist().IDs()
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		labels = append(labels, d.cfg.Labels.Name(id))
	}
	return ModelInfo{
		InputName:           d.inputName,
		OutputName:          d.outputName,
		InputWidth:          d.cfg.InputWidth,
		InputHeight:         d.cfg.InputHeight,
		ConfidenceThreshold: d.cfg.ConfidenceThreshold,
		IoUThreshold:        d.cfg.IoUThreshold,
		MaxDetections:       d.cfg.MaxDetections,
		AllowedClasses:      ids,
		AllowedLabels:       labels,
		Resampler:           string(d.cfg.Resampler),
	}
}
