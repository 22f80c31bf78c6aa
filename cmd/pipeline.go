package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/andresmejia3/facetrail/internal/camera"
	"github.com/andresmejia3/facetrail/internal/config"
	"github.com/andresmejia3/facetrail/internal/logging"
	"github.com/andresmejia3/facetrail/internal/persist"
	"github.com/andresmejia3/facetrail/internal/tracking"
	"github.com/andresmejia3/facetrail/internal/vision"
	"github.com/andresmejia3/facetrail/internal/worker"
	"github.com/rs/zerolog"
)

// pipeline describes one camera loop independently of where its frames come from.
type pipeline struct {
	Index         int
	Camera        string
	Source        string
	Period        int
	Tracker       string
	Width, Height int
	Output        string
	Detector      config.Detector
	RunID         string
	Show          bool
	RetryDelay    time.Duration
}

// buildLoop wires src to a detector, trackers and persistence. src is closed
// when building fails.
func buildLoop(ctx context.Context, src camera.Source, p pipeline) (*camera.Loop, error) {
	log := logging.ForCamera(Logger, p.Camera)
	cache := vision.NewMatCache()
	var resources []io.Closer
	fail := func(err error) (*camera.Loop, error) {
		src.Close()
		for _, r := range resources {
			r.Close()
		}
		cache.Close()
		return nil, err
	}

	files := persist.NewFileStore(p.Output, p.Camera, log)
	if err := files.Prepare(); err != nil {
		return fail(err)
	}

	factory, err := vision.NewTrackerFactory(p.Tracker, cache)
	if err != nil {
		return fail(err)
	}

	det, closer, err := newDetector(p.Index, p.Detector, cache, log)
	if err != nil {
		return fail(err)
	}
	resources = append(resources, closer)

	// A typed nil *store.Store must not end up inside the interface
	var catalog persist.Catalog
	if DB != nil {
		if err := DB.EnsureCamera(ctx, p.Camera, p.Source); err != nil {
			log.Warn().Err(err).Msg("failed to register camera")
		}
		catalog = DB
	}

	engine := tracking.NewEngine(tracking.Config{
		Camera:     p.Camera,
		NewTracker: factory,
		Persister:  persist.NewRecorder(files, catalog, p.RunID, log),
		Logger:     &log,
	})

	loop := &camera.Loop{
		Camera:        p.Camera,
		Source:        src,
		Detector:      det,
		Engine:        engine,
		Period:        p.Period,
		Width:         p.Width,
		Height:        p.Height,
		MinConfidence: p.Detector.MinConfidence,
		RetryDelay:    p.RetryDelay,
		// The cache goes last: trackers, detector and window all borrow its Mat
		Resources: append(resources, cache),
		Log:       log,
	}
	if p.Show {
		loop.Display = vision.NewWindow(p.Camera, cache)
	}

	log.Info().
		Str("source", p.Source).
		Int("detection_period", p.Period).
		Str("tracker", p.Tracker).
		Str("output", files.Dir).
		Msg("camera ready")
	return loop, nil
}

// detector is what a camera loop needs from a face detector backend.
type detector interface {
	camera.Detector
	io.Closer
}

func newDetector(index int, cfg config.Detector, cache *vision.MatCache, log zerolog.Logger) (camera.Detector, io.Closer, error) {
	var (
		d   detector
		err error
	)
	if len(cfg.Command) > 0 {
		d, err = worker.New(index, log, cfg.Command[0], cfg.Command[1:]...)
	} else {
		d, err = vision.NewYuNet(cfg.Model, cfg.MinConfidence, cache)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start face detector: %w", err)
	}
	return d, d, nil
}

// outputDir picks the output root: flag, then FACETRAIL_OUTPUT, then the default.
func outputDir(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(config.OutputEnv); env != "" {
		return env
	}
	return config.DefaultOutput
}

func fmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60
	s := int(duration.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
