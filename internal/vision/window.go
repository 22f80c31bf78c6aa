package vision

import (
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/facetrail/internal/tracking"
	"github.com/andresmejia3/facetrail/internal/types"
	"gocv.io/x/gocv"
)

// Frames wider than this are shown at half size.
const maxDisplayWidth = 1500

var (
	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	textColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// Window shows annotated frames of one camera.
type Window struct {
	win   *gocv.Window
	cache *MatCache
	view  gocv.Mat
}

// NewWindow opens a window titled after the camera.
func NewWindow(camera string, cache *MatCache) *Window {
	return &Window{
		win:   gocv.NewWindow(camera),
		cache: cache,
		view:  gocv.NewMat(),
	}
}

// Show draws the active tracks on frame and displays it. It reports true when
// the user pressed q.
func (w *Window) Show(frame types.Frame, tracks []tracking.Snapshot) bool {
	mat, err := w.cache.Get(frame)
	if err != nil {
		return false
	}
	mat.CopyTo(&w.view)
	for _, t := range tracks {
		r := t.Box.Image()
		gocv.Rectangle(&w.view, r, boxColor, 2)
		gocv.PutText(&w.view, fmt.Sprintf("#%d %.0f", t.ID, t.Score), image.Pt(r.Min.X, r.Min.Y-6),
			gocv.FontHersheyPlain, 1.2, textColor, 2)
	}
	if w.view.Cols() > maxDisplayWidth {
		gocv.Resize(w.view, &w.view, image.Point{}, 0.5, 0.5, gocv.InterpolationLinear)
	}
	w.win.IMShow(w.view)
	return w.win.WaitKey(1) == 'q'
}

// Close destroys the window.
func (w *Window) Close() error {
	w.view.Close()
	return w.win.Close()
}
