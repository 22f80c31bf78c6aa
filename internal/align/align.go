// Package align warps a face onto a canonical 112x112 crop using its five
// landmarks. Everything here is a pure function and safe for concurrent use.
package align

import (
	"image"
	"math"

	"github.com/andresmejia3/facetrail/internal/types"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Size is the side of the aligned output in pixels.
const Size = 112

// Template holds the canonical landmark positions inside a Size x Size crop, in
// the detector's order: right eye, left eye, nose tip, right and left mouth corners.
var Template = [5]types.Point{
	{X: 38.2946, Y: 51.6963},
	{X: 73.5318, Y: 51.5014},
	{X: 56.0252, Y: 71.7366},
	{X: 41.5493, Y: 92.3655},
	{X: 70.7299, Y: 92.2041},
}

// minSpread is the smallest landmark variance (in squared pixels) accepted as a face.
const minSpread = 1e-3

// Similarity returns the least-squares similarity transform (uniform scale,
// rotation and translation) mapping src onto dst, as an affine matrix
// [a -b tx; b a ty]. ok is false when src is degenerate.
func Similarity(src, dst [5]types.Point) (m f64.Aff3, ok bool) {
	var sc, dc types.Point
	for i := range src {
		sc.X += src[i].X
		sc.Y += src[i].Y
		dc.X += dst[i].X
		dc.Y += dst[i].Y
	}
	n := float64(len(src))
	sc.X, sc.Y, dc.X, dc.Y = sc.X/n, sc.Y/n, dc.X/n, dc.Y/n

	var spread, dot, cross float64
	for i := range src {
		sx, sy := src[i].X-sc.X, src[i].Y-sc.Y
		dx, dy := dst[i].X-dc.X, dst[i].Y-dc.Y
		spread += sx*sx + sy*sy
		dot += sx*dx + sy*dy
		cross += sx*dy - sy*dx
	}
	if !(spread/n > minSpread) {
		return m, false
	}

	a, b := dot/spread, cross/spread
	if math.IsNaN(a) || math.IsNaN(b) || a*a+b*b == 0 {
		return m, false
	}
	tx := dc.X - (a*sc.X - b*sc.Y)
	ty := dc.Y - (b*sc.X + a*sc.Y)
	return f64.Aff3{a, -b, tx, b, a, ty}, true
}

// Face returns the aligned Size x Size face, or ok=false when the landmarks
// cannot be aligned.
func Face(img image.Image, landmarks [5]types.Point) (*image.RGBA, bool) {
	if img == nil || img.Bounds().Empty() {
		return nil, false
	}
	m, ok := Similarity(landmarks, Template)
	if !ok {
		return nil, false
	}
	dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.BiLinear.Transform(dst, m, img, img.Bounds(), draw.Src, nil)
	return dst, true
}
