// Package config loads the camera file.
//
//	output: /data/faces
//	detector:
//	  model: models/face_detection_yunet_2023mar.onnx
//	  min_confidence: 0.6
//	cameras:
//	  - id: door
//	    source: "0"
//	    detection_period: 5
//	    tracker: kcf
//	    resize: {width: 640, height: 480}
//	    primary: true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty.
const (
	DefaultOutput          = "faces"
	DefaultDetectionPeriod = 5
	DefaultTracker         = "kcf"
	DefaultModel           = "models/face_detection_yunet_2023mar.onnx"
	DefaultMinConfidence   = 0.6
)

// OutputEnv overrides the output directory when set.
const OutputEnv = "FACETRAIL_OUTPUT"

// Size is a resize target in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Camera is one camera entry.
type Camera struct {
	ID     string `yaml:"id"`
	Source string `yaml:"source"`
	// DetectionPeriod is nil when the file leaves it out; an explicit 0 is invalid.
	DetectionPeriod *int   `yaml:"detection_period"`
	Tracker         string `yaml:"tracker"`
	Resize          *Size  `yaml:"resize"`
	Primary         bool   `yaml:"primary"`
}

// Period returns the detection period, or the default when none was given.
func (c Camera) Period() int {
	if c.DetectionPeriod == nil {
		return DefaultDetectionPeriod
	}
	return *c.DetectionPeriod
}

// Detector selects the face detector. Command, when set, runs an external
// detector process instead of the built-in model.
type Detector struct {
	Model         string   `yaml:"model"`
	Command       []string `yaml:"command"`
	MinConfidence float64  `yaml:"min_confidence"`
}

// Config is the whole camera file.
type Config struct {
	Output   string   `yaml:"output"`
	Detector Detector `yaml:"detector"`
	Cameras  []Camera `yaml:"cameras"`
}

// Load reads, defaults and validates the file at path. trackers lists the
// accepted tracker names.
func Load(path string, trackers []string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data, trackers)
}

// Parse is Load for in-memory documents.
func Parse(data []byte, trackers []string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(trackers); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if env := os.Getenv(OutputEnv); env != "" {
		c.Output = env
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Detector.Model == "" && len(c.Detector.Command) == 0 {
		c.Detector.Model = DefaultModel
	}
	if c.Detector.MinConfidence == 0 {
		c.Detector.MinConfidence = DefaultMinConfidence
	}
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.DetectionPeriod == nil {
			period := DefaultDetectionPeriod
			cam.DetectionPeriod = &period
		}
		if cam.Tracker == "" {
			cam.Tracker = DefaultTracker
		}
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate(trackers []string) error {
	var errs []error
	if len(c.Cameras) == 0 {
		errs = append(errs, errors.New("no cameras configured"))
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("min_confidence must be between 0 and 1, got %g", c.Detector.MinConfidence))
	}

	seen := make(map[string]bool)
	primaries := 0
	for i, cam := range c.Cameras {
		where := fmt.Sprintf("camera %d", i)
		if cam.ID != "" {
			where = fmt.Sprintf("camera %q", cam.ID)
		}
		switch {
		case strings.TrimSpace(cam.ID) == "":
			errs = append(errs, fmt.Errorf("%s: id is required", where))
		case strings.ContainsAny(cam.ID, `/\`) || cam.ID == "." || cam.ID == "..":
			errs = append(errs, fmt.Errorf("%s: id must be usable as a directory name", where))
		case seen[cam.ID]:
			errs = append(errs, fmt.Errorf("%s: duplicate id", where))
		}
		seen[cam.ID] = true

		if strings.TrimSpace(cam.Source) == "" {
			errs = append(errs, fmt.Errorf("%s: source is required", where))
		}
		if p := cam.Period(); p < 1 {
			errs = append(errs, fmt.Errorf("%s: detection_period must be >= 1, got %d", where, p))
		}
		if len(trackers) > 0 && !slices.Contains(trackers, cam.Tracker) {
			errs = append(errs, fmt.Errorf("%s: unknown tracker %q (want one of %s)", where, cam.Tracker, strings.Join(trackers, ", ")))
		}
		if r := cam.Resize; r != nil && (r.Width <= 0 || r.Height <= 0) {
			errs = append(errs, fmt.Errorf("%s: resize needs a positive width and height, got %dx%d", where, r.Width, r.Height))
		}
		if cam.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		errs = append(errs, fmt.Errorf("%d cameras are marked primary, at most one may be", primaries))
	}
	return errors.Join(errs...)
}

// Primary returns the index of the camera that runs on the main goroutine: the
// one marked primary, or the last one.
func (c *Config) Primary() int {
	for i, cam := range c.Cameras {
		if cam.Primary {
			return i
		}
	}
	return len(c.Cameras) - 1
}
