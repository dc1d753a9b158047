package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-yolo/inference/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func touch(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseFlags_Inputs(t *testing.T) {
	dir := t.TempDir()
	img := touch(t, dir, "frame.jpg", "x")
	video := touch(t, dir, "clip.mp4", "x")
	text := touch(t, dir, "notes.txt", "x")

	tests := []struct {
		name    string
		args    []string
		want    inputKind
		wantErr bool
	}{
		{"image", []string{"-image", img}, inputImage, false},
		{"dir", []string{"-dir", dir}, inputDir, false},
		{"video", []string{"-video", video}, inputVideo, false},
		{"camera", []string{"-camera", "0"}, inputCamera, false},
		{"serve", []string{"-serve", ":8080"}, inputServe, false},
		{"none", nil, 0, true},
		{"two inputs", []string{"-image", img, "-camera", "1"}, 0, true},
		{"missing image", []string{"-image", filepath.Join(dir, "gone.png")}, 0, true},
		{"unsupported image", []string{"-image", text}, 0, true},
		{"unsupported video", []string{"-video", img}, 0, true},
		{"dir is a file", []string{"-dir", img}, 0, true},
		{"unknown flag", []string{"-nope"}, 0, true},
		{"bench with dir", []string{"-dir", dir, "-bench", "5"}, inputDir, false},
		{"bench with camera", []string{"-camera", "0", "-bench", "5"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseFlags(newFlagSet(), tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			in, err := opts.input()
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.kind)
		})
	}
}

func TestOptions_SessionConfig(t *testing.T) {
	opts, err := parseFlags(newFlagSet(), []string{"-serve", ":0", "-backend", "tflite", "-model", "m.tflite", "-threads", "4", "-lib", "/opt/ort.so"})
	require.NoError(t, err)

	cfg := opts.sessionConfig()
	assert.Equal(t, providers.BackendTFLite, cfg.Backend)
	assert.Equal(t, "m.tflite", cfg.ModelPath)
	assert.Equal(t, 4, cfg.IntraOpThreads)
	assert.Equal(t, "/opt/ort.so", cfg.LibraryPath)
	assert.NoError(t, cfg.Validate())
}

func TestOptions_PipelineConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := touch(t, dir, "pipeline.yaml", "confidence_threshold: 0.5\nmax_detections: 10\n")
	labelsPath := touch(t, dir, "labels.txt", "cat\ndog\n")

	opts, err := parseFlags(newFlagSet(), []string{"-serve", ":0", "-config", cfgPath, "-labels", labelsPath})
	require.NoError(t, err)

	cfg, err := opts.pipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), cfg.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.MaxDetections)
	assert.Equal(t, float32(0.45), cfg.IoUThreshold)
	assert.Equal(t, []string{"cat", "dog"}, []string(cfg.Labels))

	opts.configPath = filepath.Join(dir, "missing.yaml")
	_, err = opts.pipelineConfig()
	assert.Error(t, err)
}

func TestOptions_PipelineConfigDefaults(t *testing.T) {
	opts, err := parseFlags(newFlagSet(), []string{"-camera", "0"})
	require.NoError(t, err)

	cfg, err := opts.pipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MaxDetections)
	assert.Len(t, cfg.Labels, 80)
}

func TestOptions_Classes(t *testing.T) {
	opts, err := parseFlags(newFlagSet(), []string{"-camera", "0", "-classes", "person, cell phone,dog"})
	require.NoError(t, err)

	cfg, err := opts.pipelineConfig()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 67, 16}, cfg.AllowedClasses)

	opts.classes = "person,unicorn"
	_, err = opts.pipelineConfig()
	assert.ErrorContains(t, err, "unicorn")

	opts.classes = " , "
	_, err = opts.pipelineConfig()
	assert.Error(t, err)
}
