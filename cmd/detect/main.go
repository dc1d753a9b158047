// Command detect runs YOLO object detection on images, directories, video files,
// cameras or HTTP uploads.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/inference/detectors"
	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/nvr-ai/go-yolo/models"
	"github.com/nvr-ai/go-yolo/profiler"
	"github.com/nvr-ai/go-yolo/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// options holds the parsed command line.
type options struct {
	imagePath  string
	dirPath    string
	videoPath  string
	camera     int
	serveAddr  string
	staticDir  string
	outputDir  string
	configPath string
	modelPath  string
	backend    string
	libPath    string
	labelsPath string
	threads    int
	warmup     int
	bench      int
	classes    string
	debug      bool
	profile    bool
	profEvery  time.Duration
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var o options
	fs.StringVar(&o.imagePath, "image", "", "Path to an image file")
	fs.StringVar(&o.dirPath, "dir", "", "Directory of image files, processed in frame order")
	fs.StringVar(&o.videoPath, "video", "", "Path to a video file (.mp4, .avi, .mov)")
	fs.IntVar(&o.camera, "camera", -1, "Camera device ID")
	fs.StringVar(&o.serveAddr, "serve", "", "Serve the HTTP API on this address, e.g. :8080")
	fs.StringVar(&o.staticDir, "static", "", "Directory of static files served with -serve")
	fs.StringVar(&o.outputDir, "out", "", "Directory for annotated frames (image, dir and video inputs)")
	fs.StringVar(&o.configPath, "config", "", "YAML pipeline configuration")
	fs.StringVar(&o.modelPath, "model", "yolov8n.onnx", "Path to the model file")
	fs.StringVar(&o.backend, "backend", string(providers.BackendONNX), "Inference backend: onnx or tflite")
	fs.StringVar(&o.libPath, "lib", "", "ONNX Runtime shared library path")
	fs.StringVar(&o.labelsPath, "labels", "", "Class label file, one name per line")
	fs.IntVar(&o.threads, "threads", 0, "Intra-op threads (0 uses the runtime default)")
	fs.IntVar(&o.warmup, "warmup", 1, "Warm-up runs before the first frame")
	fs.IntVar(&o.bench, "bench", 0, "Benchmark N iterations per camera resolution using the -image or -dir frames")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	fs.StringVar(&o.classes, "classes", "", "Comma-separated class names to report, replacing the allowed classes")
	fs.BoolVar(&o.profile, "profile", false, "Print a profiler report on exit")
	fs.DurationVar(&o.profEvery, "profile-every", 10*time.Second, "Log profiler status at this interval with -profile (0 disables)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	_, err := o.input()
	return o, err
}

// pipelineConfig loads the pipeline configuration and applies the label override.
func (o options) pipelineConfig() (detectors.Config, error) {
	cfg := detectors.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = detectors.LoadConfig(o.configPath); err != nil {
			return cfg, err
		}
	}
	if o.labelsPath != "" {
		labels, err := models.LoadLabels(o.labelsPath)
		if err != nil {
			return cfg, err
		}
		cfg.Labels = labels
	}
	if o.classes != "" {
		ids, err := classIDs(cfg.Labels, o.classes)
		if err != nil {
			return cfg, err
		}
		cfg.AllowedClasses = ids
	}
	return cfg, nil
}

// classIDs resolves comma-separated class names against labels.
func classIDs(labels models.LabelTable, names string) ([]int, error) {
	var ids []int
	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id := labels.Index(name)
		if id < 0 {
			return nil, errors.Errorf("unknown class %q", name)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("-classes names no class")
	}
	return ids, nil
}

func (o options) sessionConfig() providers.Config {
	cfg := providers.DefaultConfig()
	cfg.Backend = providers.Backend(o.backend)
	cfg.ModelPath = o.modelPath
	cfg.LibraryPath = o.libPath
	cfg.IntraOpThreads = o.threads
	return cfg
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("invalid arguments")
	}
	if opts.debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.WithError(err).Fatal("detect failed")
	}
}

func run(ctx context.Context, opts options, logger *logrus.Logger) error {
	cfg, err := opts.pipelineConfig()
	if err != nil {
		return err
	}

	prof := profiler.New(profiler.Options{})
	engine, err := inference.NewEngineBuilder().
		WithSession(opts.sessionConfig()).
		WithDetector(cfg, detectors.WithLogger(logger), detectors.WithRecorder(prof)).
		Build()
	if err != nil {
		return errors.Wrap(err, "failed to build engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.WithError(err).Warn("failed to close engine")
		}
		if err := providers.Shutdown(); err != nil {
			logger.WithError(err).Warn("failed to shut down runtime")
		}
	}()

	info := engine.Info()
	logger.WithFields(logrus.Fields{
		"model":      opts.modelPath,
		"backend":    opts.backend,
		"input":      fmt.Sprintf("%dx%d", info.InputWidth, info.InputHeight),
		"confidence": info.ConfidenceThreshold,
		"iou":        info.IoUThreshold,
		"max":        info.MaxDetections,
		"classes":    info.AllowedLabels,
	}).Info("engine ready")

	if opts.warmup > 0 {
		start := time.Now()
		if err := engine.WarmUp(ctx, opts.warmup); err != nil {
			return err
		}
		logger.WithField("elapsed", time.Since(start)).Debug("warm-up complete")
		prof.Reset()
	}

	if opts.profile {
		defer func() { fmt.Fprint(os.Stderr, prof.Report()) }()
		if opts.profEvery > 0 {
			profCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go prof.Run(profCtx, logger, opts.profEvery)
		}
	}

	if opts.outputDir != "" {
		if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create output directory")
		}
	}

	in, _ := opts.input()
	r := &runner{engine: engine, logger: logger, outputDir: opts.outputDir}

	if opts.bench > 0 {
		return r.benchmark(ctx, in, opts.bench)
	}

	switch in.kind {
	case inputImage:
		return r.image(ctx, in.path)
	case inputDir:
		return r.directory(ctx, in.path)
	case inputVideo, inputCamera:
		return r.capture(ctx, in)
	case inputServe:
		srv := server.New(engine,
			server.WithLogger(logger),
			server.WithStaticDir(opts.staticDir),
			server.WithProfiler(prof),
		)
		return srv.Run(ctx, in.path)
	}
	return nil
}
