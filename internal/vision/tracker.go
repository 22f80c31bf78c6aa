package vision

import (
	"fmt"

	"github.com/andresmejia3/facetrail/internal/tracking"
	"github.com/andresmejia3/facetrail/internal/types"
	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Tracker backend names accepted in the camera configuration.
const (
	TrackerKCF  = "kcf"
	TrackerCSRT = "csrt"
	TrackerMIL  = "mil"
	TrackerHold = "hold"
)

// TrackerNames lists every backend, for flag help and validation.
var TrackerNames = []string{TrackerKCF, TrackerCSRT, TrackerMIL, TrackerHold}

// NewTrackerFactory returns the tracking.Factory for backend name. OpenCV
// trackers share frames through cache.
func NewTrackerFactory(name string, cache *MatCache) (tracking.Factory, error) {
	var create func() gocv.Tracker
	switch name {
	case TrackerKCF:
		create = contrib.NewTrackerKCF
	case TrackerCSRT:
		create = contrib.NewTrackerCSRT
	case TrackerMIL:
		create = gocv.NewTrackerMIL
	case TrackerHold:
		return tracking.NewHoldTracker, nil
	default:
		return nil, fmt.Errorf("unknown tracker %q", name)
	}
	return func() (tracking.Tracker, error) {
		return &cvTracker{create: create, cache: cache}, nil
	}, nil
}

// cvTracker wraps a gocv tracker. OpenCV trackers cannot be re-seeded, so Reinit
// replaces the underlying instance.
type cvTracker struct {
	create func() gocv.Tracker
	cache  *MatCache
	t      gocv.Tracker
}

func (c *cvTracker) Init(frame types.Frame, box types.Rect) error {
	mat, err := c.cache.Get(frame)
	if err != nil {
		return err
	}
	c.Close()
	c.t = c.create()
	if !c.t.Init(mat, box.Image().Intersect(frame.Bounds())) {
		return tracking.ErrTrackerInit
	}
	return nil
}

func (c *cvTracker) Update(frame types.Frame) (types.Rect, bool) {
	if c.t == nil {
		return types.Rect{}, false
	}
	mat, err := c.cache.Get(frame)
	if err != nil {
		return types.Rect{}, false
	}
	r, ok := c.t.Update(mat)
	if !ok {
		return types.Rect{}, false
	}
	return types.RectFromImage(r), true
}

func (c *cvTracker) Reinit(frame types.Frame, box types.Rect) error {
	return c.Init(frame, box)
}

func (c *cvTracker) Close() error {
	if c.t == nil {
		return nil
	}
	err := c.t.Close()
	c.t = nil
	return err
}
