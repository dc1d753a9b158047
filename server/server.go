// Package server - HTTP API for running detection on uploaded images.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/profiler"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadSize bounds the size of an uploaded image.
const DefaultMaxUploadSize int64 = 32 << 20

// Server exposes an engine over HTTP.
//
// Routes:
//   - POST /api/detect: an image as the raw body or as the "image" multipart field.
//   - GET /api/config: the model and pipeline settings.
//   - GET /api/metrics: session timings and, if configured, profiler diagnostics.
//   - GET /healthz: liveness.
//
// With a static directory configured, its files are served from "/".
type Server struct {
	engine        inference.Engine
	logger        logrus.FieldLogger
	profiler      *profiler.Profiler
	staticDir     string
	maxUploadSize int64
	router        *gin.Engine
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStaticDir serves the files in dir from "/".
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithProfiler reports p from /api/metrics.
func WithProfiler(p *profiler.Profiler) Option {
	return func(s *Server) { s.profiler = p }
}

// WithMaxUploadSize bounds uploaded images to n bytes.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadSize = n
		}
	}
}

// DetectResponse is the body of a successful POST /api/detect.
type DetectResponse struct {
	Detections []postprocess.Detection `json:"detections"`
	Width      int                     `json:"width"`
	Height     int                     `json:"height"`
}

// MetricsResponse is the body of GET /api/metrics.
type MetricsResponse struct {
	Session  inference.PerformanceMetrics `json:"session"`
	Profiler *profiler.Snapshot           `json:"profiler,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates a server for engine.
//
// Arguments:
//   - engine: The engine that serves detections. The server does not close it.
//   - opts: Optional logger, static directory, profiler and upload limit.
//
// Returns:
//   - *Server: The server.
func New(engine inference.Engine, opts ...Option) *Server {
	s := &Server{
		engine:        engine,
		logger:        logrus.StandardLogger(),
		maxUploadSize: DefaultMaxUploadSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if s.staticDir != "" {
		r.Use(static.Serve("/", static.LocalFile(s.staticDir, false)))
	}
	r.GET("/healthz", s.health)
	api := r.Group("/api")
	api.POST("/detect", s.detect)
	api.GET("/config", s.config)
	api.GET("/metrics", s.metrics)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
//
// Arguments:
//   - ctx: Stops the server when canceled.
//   - addr: The listen address, e.g. ":8080".
//
// Returns:
//   - error: An error if the listener fails.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Wrap(srv.Shutdown(shutdownCtx), "http server shutdown")
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Debug("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) config(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Info())
}

func (s *Server) metrics(c *gin.Context) {
	resp := MetricsResponse{Session: s.engine.Metrics()}
	if s.profiler != nil {
		snap := s.profiler.Snapshot()
		resp.Profiler = &snap
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) detect(c *gin.Context) {
	data, err := s.readImage(c)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}

	img, err := images.Decode(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	detections, err := s.engine.Predict(c.Request.Context(), img)
	if err != nil {
		s.logger.WithError(err).Error("detection failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	bounds := img.Bounds()
	c.JSON(http.StatusOK, DetectResponse{
		Detections: detections,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
	})
}

// readImage returns the uploaded bytes from the "image" multipart field or, for
// any other content type, the raw body.
func (s *Server) readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize)

	if c.ContentType() == "multipart/form-data" {
		header, err := c.FormFile("image")
		if err != nil {
			return nil, errors.Wrap(err, "missing image field")
		}
		f, err := header.Open()
		if err != nil {
			return nil, errors.Wrap(err, "failed to open upload")
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read body")
	}
	return data, nil
}
