package vision

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/andresmejia3/facetrail/internal/types"
	"gocv.io/x/gocv"
)

var errCapture = errors.New("capture video failed")

// Capture reads frames from a camera device, a stream URL or a video file.
type Capture struct {
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	isFile bool
}

// OpenCapture opens source. A purely numeric source is a device index.
func OpenCapture(source string) (*Capture, error) {
	var device interface{} = source
	if n, err := strconv.Atoi(source); err == nil {
		device = n
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %q: %w", source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("failed to open camera %q", source)
	}
	// Keep latency low on live streams
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	info, err := os.Stat(source)
	return &Capture{
		vc:     vc,
		mat:    gocv.NewMat(),
		isFile: err == nil && info.Mode().IsRegular(),
	}, nil
}

// Read grabs the next frame. A failed read on a live source is transient; on a
// video file it means the file is exhausted.
func (c *Capture) Read() (types.Frame, error) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		if c.isFile {
			return types.Frame{}, types.ErrEndOfStream
		}
		return types.Frame{}, errCapture
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return types.Frame{}, fmt.Errorf("converting captured frame: %w", err)
	}
	return types.Frame{Captured: time.Now(), Image: img}, nil
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mat.Close()
	return c.vc.Close()
}
