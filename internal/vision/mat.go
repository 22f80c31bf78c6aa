// Package vision adapts OpenCV (through gocv) to the capture, detector,
// tracker and display capabilities used by a camera loop.
package vision

import (
	"fmt"
	"time"

	"github.com/andresmejia3/facetrail/internal/types"
	"gocv.io/x/gocv"
)

// MatCache converts each frame to a Mat once and shares it between the trackers,
// the detector and the window of one camera loop. It is not safe for concurrent use.
type MatCache struct {
	index    int
	captured time.Time
	mat      gocv.Mat
	valid    bool
}

// NewMatCache returns an empty cache.
func NewMatCache() *MatCache {
	return &MatCache{}
}

// Get returns the Mat for frame. The Mat is owned by the cache and stays valid
// until the next frame is requested or the cache is closed.
func (c *MatCache) Get(frame types.Frame) (gocv.Mat, error) {
	if c.valid && c.index == frame.Index && c.captured.Equal(frame.Captured) {
		return c.mat, nil
	}
	if frame.Image == nil {
		return gocv.Mat{}, fmt.Errorf("frame %d has no image", frame.Index)
	}
	mat, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("converting frame %d: %w", frame.Index, err)
	}
	c.release()
	c.mat, c.index, c.captured, c.valid = mat, frame.Index, frame.Captured, true
	return c.mat, nil
}

func (c *MatCache) release() {
	if c.valid {
		c.mat.Close()
		c.valid = false
	}
}

// Close frees the cached Mat.
func (c *MatCache) Close() error {
	c.release()
	return nil
}
