package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var trackers = []string{"kcf", "csrt", "mil", "hold"}

func TestParseDefaults(t *testing.T) {
	t.Setenv(OutputEnv, "")

	cfg, err := Parse([]byte(`
cameras:
  - id: door
    source: "0"
  - id: hall
    source: rtsp://cam/hall
    detection_period: 1
    tracker: hold
    resize: {width: 640, height: 360}
`), trackers)
	require.NoError(t, err)

	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultModel, cfg.Detector.Model)
	assert.Equal(t, DefaultMinConfidence, cfg.Detector.MinConfidence)

	require.Len(t, cfg.Cameras, 2)
	assert.Equal(t, DefaultDetectionPeriod, cfg.Cameras[0].Period())
	assert.Equal(t, DefaultTracker, cfg.Cameras[0].Tracker)
	assert.Nil(t, cfg.Cameras[0].Resize)

	assert.Equal(t, 1, cfg.Cameras[1].Period())
	assert.Equal(t, "hold", cfg.Cameras[1].Tracker)
	assert.Equal(t, &Size{Width: 640, Height: 360}, cfg.Cameras[1].Resize)
}

func TestOutputFromEnv(t *testing.T) {
	t.Setenv(OutputEnv, "/srv/faces")

	cfg, err := Parse([]byte("output: ignored\ncameras: [{id: a, source: x}]\n"), trackers)
	require.NoError(t, err)
	assert.Equal(t, "/srv/faces", cfg.Output)
}

func TestCommandDetectorKeepsModelEmpty(t *testing.T) {
	cfg, err := Parse([]byte(`
detector:
  command: [python3, detect.py]
  min_confidence: 0.9
cameras: [{id: a, source: x}]
`), trackers)
	require.NoError(t, err)
	assert.Empty(t, cfg.Detector.Model)
	assert.Equal(t, []string{"python3", "detect.py"}, cfg.Detector.Command)
	assert.Equal(t, 0.9, cfg.Detector.MinConfidence)
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"no cameras", "cameras: []", "no cameras configured"},
		{"missing id", "cameras: [{source: x}]", "id is required"},
		{"path id", "cameras: [{id: a/b, source: x}]", "usable as a directory name"},
		{"duplicate id", "cameras: [{id: a, source: x}, {id: a, source: y}]", "duplicate id"},
		{"missing source", "cameras: [{id: a}]", "source is required"},
		{"zero period", "cameras: [{id: a, source: x, detection_period: 0}]", "detection_period must be >= 1, got 0"},
		{"negative period", "cameras: [{id: a, source: x, detection_period: -2}]", "detection_period must be >= 1"},
		{"unknown tracker", "cameras: [{id: a, source: x, tracker: staple}]", `unknown tracker "staple"`},
		{"half resize", "cameras: [{id: a, source: x, resize: {width: 640}}]", "positive width and height"},
		{"two primaries", "cameras: [{id: a, source: x, primary: true}, {id: b, source: y, primary: true}]", "at most one"},
		{"confidence range", "detector: {min_confidence: 1.5}\ncameras: [{id: a, source: x}]", "min_confidence"},
		{"unknown field", "cameras: [{id: a, source: x, fps: 30}]", "field fps not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), trackers)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte("cameras: [{id: a}, {source: y, detection_period: -1}]"), trackers)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source is required")
	assert.Contains(t, err.Error(), "id is required")
	assert.Contains(t, err.Error(), "detection_period")
}

func TestCameraPeriod(t *testing.T) {
	assert.Equal(t, DefaultDetectionPeriod, Camera{}.Period())

	zero := 0
	assert.Equal(t, 0, Camera{DetectionPeriod: &zero}.Period(), "an explicit zero is kept for validation")
}

func TestPrimary(t *testing.T) {
	cfg := &Config{Cameras: []Camera{{ID: "a"}, {ID: "b", Primary: true}, {ID: "c"}}}
	assert.Equal(t, 1, cfg.Primary())

	cfg.Cameras[1].Primary = false
	assert.Equal(t, 2, cfg.Primary(), "falls back to the last camera")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cameras.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cameras: [{id: a, source: video.mp4}]\n"), 0644))

	cfg, err := Load(path, trackers)
	require.NoError(t, err)
	assert.Equal(t, "video.mp4", cfg.Cameras[0].Source)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), trackers)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
