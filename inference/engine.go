package inference

import (
	"context"
	"image"
	"sync"

	"github.com/nvr-ai/go-yolo/inference/detectors"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/pkg/errors"
)

// ErrNotConfigured is returned by Build when a required part was never set.
var ErrNotConfigured = errors.New("engine not configured")

// Engine runs detection on frames. Predict is safe for concurrent use; calls are
// served one at a time.
type Engine interface {
	Predict(ctx context.Context, img image.Image) ([]postprocess.Detection, error)
	WarmUp(ctx context.Context, runs int) error
	Info() detectors.ModelInfo
	Metrics() PerformanceMetrics
	Close() error
}

// EngineBuilder assembles an Engine with a fluent API. The first error stops the
// chain and is returned by Build.
type EngineBuilder struct {
	session  *ProfiledSession
	detector *detectors.Detector
	err      error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
//
// @example
// cfg := providers.Config{Backend: providers.BackendONNX, ModelPath: "yolov8n.onnx"}
// engine, err := NewEngineBuilder().WithSession(cfg).WithDetector(detectors.DefaultConfig()).Build()
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{}
}

// WithSession opens the model described by cfg.
//
// Arguments:
//   - cfg: The session configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithSession(cfg providers.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	session, err := providers.Open(cfg)
	if err != nil {
		b.err = errors.Wrap(err, "failed to open session")
		return b
	}
	return b.UseSession(session)
}

// UseSession adopts an already opened session. The engine closes it.
//
// Arguments:
//   - session: The session.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) UseSession(session providers.Session) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if session == nil {
		b.err = errors.Wrap(ErrNotConfigured, "session is nil")
		return b
	}
	b.session = NewProfiledSession(session)
	return b
}

// WithDetector creates the detector. A session must be set first.
//
// Arguments:
//   - cfg: The detector configuration.
//   - opts: Detector options such as a logger or recorder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithDetector(cfg detectors.Config, opts ...detectors.Option) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if b.session == nil {
		b.err = errors.Wrap(ErrNotConfigured, "session must be set before the detector")
		return b
	}
	detector, err := detectors.NewDetector(b.session, cfg, opts...)
	if err != nil {
		b.err = err
		return b
	}
	b.detector = detector
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine. On error any session opened by the builder is closed.
//
// Returns:
//   - Engine: The engine.
//   - error: The first error of the chain, or ErrNotConfigured.
func (b *EngineBuilder) Build() (Engine, error) {
	err := b.err
	if err == nil && b.session == nil {
		err = errors.Wrap(ErrNotConfigured, "session not configured")
	}
	if err == nil && b.detector == nil {
		err = errors.Wrap(ErrNotConfigured, "detector not configured")
	}
	if err != nil {
		if b.session != nil {
			_ = b.session.Close()
		}
		return nil, err
	}

	return &engine{
		session:  b.session,
		detector: b.detector,
	}, nil
}

// engine implements the Engine interface.
type engine struct {
	mu       sync.Mutex
	session  *ProfiledSession
	detector *detectors.Detector
	closed   bool
}

// Predict runs the detector on img.
//
// Arguments:
//   - ctx: The context for the prediction.
//   - img: The frame.
//
// Returns:
//   - []postprocess.Detection: The detections, most confident first.
//   - error: An error if the engine is closed or inference fails.
func (e *engine) Predict(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New("engine is closed")
	}
	return e.detector.Detect(ctx, img)
}

func (e *engine) WarmUp(ctx context.Context, runs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New("engine is closed")
	}
	return e.detector.WarmUp(ctx, runs)
}

func (e *engine) Info() detectors.ModelInfo {
	return e.detector.Info()
}

func (e *engine) Metrics() PerformanceMetrics {
	return e.session.GetPerformanceMetrics()
}

// Close waits for a running prediction and releases the session.
func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	return e.session.Close()
}
