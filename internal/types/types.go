package types

import (
	"errors"
	"image"
	"math"
	"time"

	"golang.org/x/image/draw"
)

// ErrEndOfStream is returned by a Source that has no more frames (end of a video file or pipe).
var ErrEndOfStream = errors.New("end of stream")

// ErrDetectorExited is returned by a detector whose backing process is gone.
var ErrDetectorExited = errors.New("face detector exited")

// Point is a 2D point in frame pixel coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle given by its top-left (X1,Y1) and bottom-right (X2,Y2) corners.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// RectFromImage converts an integer image rectangle.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{X1: float64(r.Min.X), Y1: float64(r.Min.Y), X2: float64(r.Max.X), Y2: float64(r.Max.Y)}
}

func (r Rect) Width() float64  { return r.X2 - r.X1 }
func (r Rect) Height() float64 { return r.Y2 - r.Y1 }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: (r.X1 + r.X2) / 2, Y: (r.Y1 + r.Y2) / 2}
}

// Degenerate reports whether the rectangle has zero or negative extent, or holds a NaN/Inf coordinate.
func (r Rect) Degenerate() bool {
	for _, v := range [4]float64{r.X1, r.Y1, r.X2, r.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return r.Width() <= 0 || r.Height() <= 0
}

// ContainsStrict reports whether p lies strictly inside r (points on the border are outside).
func (r Rect) ContainsStrict(p Point) bool {
	return p.X > r.X1 && p.X < r.X2 && p.Y > r.Y1 && p.Y < r.Y2
}

// Image rounds the rectangle outward to integer pixel coordinates.
func (r Rect) Image() image.Rectangle {
	return image.Rect(int(math.Floor(r.X1)), int(math.Floor(r.Y1)), int(math.Ceil(r.X2)), int(math.Ceil(r.Y2)))
}

// Overlap is the face-identity predicate: the center of a lies strictly inside b
// and the center of b lies strictly inside a. Degenerate rectangles never overlap.
func Overlap(a, b Rect) bool {
	if a.Degenerate() || b.Degenerate() {
		return false
	}
	return b.ContainsStrict(a.Center()) && a.ContainsStrict(b.Center())
}

// Detection is one face observed in one frame.
type Detection struct {
	Box        Rect
	Landmarks  [5]Point // right eye, left eye, nose tip, right mouth corner, left mouth corner
	Confidence float64
}

// Frame is a single decoded video frame.
type Frame struct {
	Index    int
	Captured time.Time
	Image    image.Image
}

// Clone returns a deep copy of the frame that does not share pixel memory with f.
// The copy keeps the source bounds, so boxes in frame coordinates stay valid.
func (f Frame) Clone() Frame {
	if f.Image == nil {
		return f
	}
	b := f.Image.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, f.Image, b.Min, draw.Src)
	f.Image = dst
	return f
}

// Bounds returns the frame's pixel rectangle, or an empty rectangle for a frame without an image.
func (f Frame) Bounds() image.Rectangle {
	if f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Sighting is what a retired track leaves behind: its best frame and the detection that produced it.
type Sighting struct {
	Camera        string
	TrackID       uint64
	Frame         Frame
	Detection     Detection
	Score         float64
	FirstFrame    int
	LastFrame     int
	Confirmations int
	RetiredAt     time.Time
}

// FaceResult matches the JSON structure coming back from a detector worker.
type FaceResult struct {
	Box       [4]float64    `json:"box"`       // [x1, y1, x2, y2]
	Landmarks [5][2]float64 `json:"landmarks"` // five (x, y) points
	Score     float64       `json:"score"`
}

// Detection converts the worker payload into a Detection.
func (f FaceResult) Detection() Detection {
	d := Detection{
		Box:        Rect{X1: f.Box[0], Y1: f.Box[1], X2: f.Box[2], Y2: f.Box[3]},
		Confidence: f.Score,
	}
	for i, p := range f.Landmarks {
		d.Landmarks[i] = Point{X: p[0], Y: p[1]}
	}
	return d
}

// ErrorResult captures the error object returned by a worker on failure
type ErrorResult struct {
	Error string `json:"error"`
}
