package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvr-ai/go-yolo/benchmark"
	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var boxColor = color.RGBA{0, 255, 0, 0}

// runner feeds frames from one source to the engine.
type runner struct {
	engine    inference.Engine
	logger    logrus.FieldLogger
	outputDir string
}

func (r *runner) image(ctx context.Context, path string) error {
	img, err := images.Load(path)
	if err != nil {
		return err
	}
	dets, err := r.detect(ctx, img, logrus.Fields{"path": path})
	if err != nil {
		return err
	}
	return r.save(img, dets, filepath.Base(path))
}

func (r *runner) directory(ctx context.Context, dir string) error {
	files, err := util.LoadDirectoryImageFiles(dir)
	if err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{"dir": dir, "files": len(files)}).Info("processing directory")

	for _, f := range files {
		if ctx.Err() != nil {
			return nil
		}
		img, err := images.Decode(f.Data)
		if err != nil {
			r.logger.WithError(err).WithField("path", f.Path).Warn("skipping undecodable file")
			continue
		}
		dets, err := r.detect(ctx, img, logrus.Fields{"path": f.Path, "frame": f.Frame})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return errors.Wrapf(err, "frame %s", f.Path)
		}
		if err := r.save(img, dets, filepath.Base(f.Path)); err != nil {
			return err
		}
	}
	return nil
}

// capture reads frames from a camera or video file until the source ends, ctx is
// canceled or a detection fails. Each frame waits for its result.
func (r *runner) capture(ctx context.Context, in inputConfig) error {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if in.kind == inputCamera {
		vc, err = gocv.OpenVideoCapture(in.deviceID)
	} else {
		vc, err = gocv.OpenVideoCapture(in.path)
	}
	if err != nil {
		return errors.Wrapf(err, "error opening %s", in.kind)
	}
	defer vc.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	r.logger.WithFields(logrus.Fields{"source": in.kind.String(), "device": in.deviceID, "path": in.path}).Info("capture started")

	for frame := 0; ; {
		if ctx.Err() != nil {
			return nil
		}
		if ok := vc.Read(&mat); !ok {
			r.logger.WithField("frames", frame).Info("capture ended")
			return nil
		}
		if mat.Empty() {
			continue
		}

		img, err := images.FromMat(mat)
		if err != nil {
			return errors.Wrapf(err, "frame %d", frame)
		}
		dets, err := r.detect(ctx, img, logrus.Fields{"frame": frame})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return errors.Wrapf(err, "frame %d", frame)
		}
		if in.kind == inputVideo && len(dets) > 0 {
			if err := r.saveMat(&mat, dets, fmt.Sprintf("frame-%06d.jpg", frame)); err != nil {
				return err
			}
		}
		frame++
	}
}

// benchmark runs every common camera resolution over the frames of in and
// saves the results to the output directory, "benchmarks" by default.
func (r *runner) benchmark(ctx context.Context, in inputConfig, iterations int) error {
	var frames []image.Image
	if in.kind == inputImage {
		img, err := images.Load(in.path)
		if err != nil {
			return err
		}
		frames = append(frames, img)
	} else {
		files, err := util.LoadDirectoryImageFiles(in.path)
		if err != nil {
			return err
		}
		for _, f := range files {
			img, err := images.Decode(f.Data)
			if err != nil {
				r.logger.WithError(err).WithField("path", f.Path).Warn("skipping undecodable file")
				continue
			}
			frames = append(frames, img)
		}
	}

	outputDir := r.outputDir
	if outputDir == "" {
		outputDir = "benchmarks"
	}
	suite := benchmark.NewSuite(r.engine, outputDir, r.logger)
	suite.AddFrames(frames...)
	for _, res := range benchmark.CommonResolutions {
		suite.AddScenario(benchmark.NewScenarioBuilder(res.Name).
			WithResolution(res.Width, res.Height).
			WithIterations(iterations).
			Build())
	}
	if err := suite.RunAll(ctx); err != nil {
		return err
	}

	jsonPath, csvPath, err := suite.SaveResults()
	if err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{"results": jsonPath, "summary": csvPath}).Info("benchmark saved")
	return nil
}

func (r *runner) detect(ctx context.Context, img image.Image, fields logrus.Fields) ([]postprocess.Detection, error) {
	start := time.Now()
	dets, err := r.engine.Predict(ctx, img)
	if err != nil {
		return nil, err
	}

	summary := make([]string, len(dets))
	for i, d := range dets {
		summary[i] = fmt.Sprintf("%s %.2f %s", d.Label, d.Confidence, d.Box())
	}
	r.logger.WithFields(fields).WithFields(logrus.Fields{
		"size":       fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()),
		"elapsed":    time.Since(start),
		"count":      len(dets),
		"detections": strings.Join(summary, "; "),
	}).Info("frame processed")
	return dets, nil
}

// save writes img with its detections drawn to the output directory, if set.
func (r *runner) save(img image.Image, dets []postprocess.Detection, name string) error {
	if r.outputDir == "" {
		return nil
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return errors.Wrap(err, "failed to convert frame")
	}
	defer mat.Close()
	return r.saveMat(&mat, dets, name)
}

func (r *runner) saveMat(mat *gocv.Mat, dets []postprocess.Detection, name string) error {
	if r.outputDir == "" {
		return nil
	}
	annotate(mat, dets)
	path := filepath.Join(r.outputDir, "detected_"+name)
	if !gocv.IMWrite(path, *mat) {
		return errors.Errorf("failed to write %s", path)
	}
	r.logger.WithField("path", path).Debug("annotated frame saved")
	return nil
}

// annotate draws each detection's box and label onto mat.
func annotate(mat *gocv.Mat, dets []postprocess.Detection) {
	for _, d := range dets {
		rect := d.Box().Rectangle()
		gocv.Rectangle(mat, rect, boxColor, 2)
		label := fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
		gocv.PutText(mat, label, image.Pt(rect.Min.X, rect.Min.Y+12), gocv.FontHersheyPlain, 0.8, boxColor, 2)
	}
}
