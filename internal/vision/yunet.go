package vision

import (
	"context"
	"fmt"
	"image"
	"os"

	"github.com/andresmejia3/facetrail/internal/types"
	"gocv.io/x/gocv"
)

// yunetColumns is the row width of a YuNet result: box (4), five landmarks (10), score.
const yunetColumns = 15

// YuNet runs OpenCV's FaceDetectorYN on frames.
type YuNet struct {
	fd    gocv.FaceDetectorYN
	cache *MatCache
	size  image.Point
}

// NewYuNet loads the ONNX model at path. Faces scoring under minScore are
// discarded by OpenCV itself.
func NewYuNet(path string, minScore float64, cache *MatCache) (*YuNet, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("detector model: %w", err)
	}
	size := image.Pt(320, 320)
	fd := gocv.NewFaceDetectorYN(path, "", size)
	fd.SetScoreThreshold(float32(minScore))
	return &YuNet{fd: fd, cache: cache, size: size}, nil
}

// Detect returns the faces found in frame.
func (y *YuNet) Detect(_ context.Context, frame types.Frame) ([]types.Detection, error) {
	mat, err := y.cache.Get(frame)
	if err != nil {
		return nil, err
	}
	if sz := image.Pt(mat.Cols(), mat.Rows()); sz != y.size {
		y.fd.SetInputSize(sz)
		y.size = sz
	}

	faces := gocv.NewMat()
	defer faces.Close()
	y.fd.Detect(mat, &faces)
	if faces.Empty() {
		return nil, nil
	}
	if faces.Cols() < yunetColumns {
		return nil, fmt.Errorf("unexpected detector output width %d", faces.Cols())
	}

	// Offsets map detector coordinates back into the frame when it does not start at (0,0)
	origin := frame.Bounds().Min
	ox, oy := float64(origin.X), float64(origin.Y)

	dets := make([]types.Detection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		at := func(c int) float64 { return float64(faces.GetFloatAt(r, c)) }
		x, y0, w, h := at(0)+ox, at(1)+oy, at(2), at(3)
		d := types.Detection{
			Box:        types.Rect{X1: x, Y1: y0, X2: x + w, Y2: y0 + h},
			Confidence: at(14),
		}
		for i := range d.Landmarks {
			d.Landmarks[i] = types.Point{X: at(4+2*i) + ox, Y: at(5+2*i) + oy}
		}
		dets = append(dets, d)
	}
	return dets, nil
}

// Close releases the model.
func (y *YuNet) Close() error {
	y.fd.Close()
	return nil
}
