// Package quality scores face crops by focus.
package quality

import (
	"errors"
	"image"
	"image/draw"

	"github.com/andresmejia3/facetrail/internal/types"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidRegion is returned for an empty crop or a region that does not intersect the image.
var ErrInvalidRegion = errors.New("invalid region")

// Sharpness returns the variance of the 4-neighbour Laplacian response over the crop.
// Higher values mean a sharper, more in-focus image. The response equals OpenCV's
// Laplacian(src, CV_64F, ksize=1) with BORDER_REFLECT_101, so the score matches
// the usual gocv.Laplacian + MeanStdDev blur metric squared.
func Sharpness(crop *image.Gray) (float64, error) {
	if crop == nil {
		return 0, ErrInvalidRegion
	}
	b := crop.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return 0, ErrInvalidRegion
	}

	at := func(x, y int) float64 {
		return float64(crop.Pix[crop.PixOffset(b.Min.X+border(x, w), b.Min.Y+border(y, h))])
	}

	response := make([]float64, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			lap := at(x, y-1) + at(x-1, y) + at(x+1, y) + at(x, y+1) - 4*at(x, y)
			response = append(response, lap)
		}
	}
	return stat.PopVariance(response, nil), nil
}

// border maps an out-of-range index back into [0, n) with reflect-101 semantics
// (abcd -> cb|abcd|cb). A single pixel wide side is replicated.
func border(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}

// Luma returns the luminance of img inside r, clipped to the image bounds.
func Luma(img image.Image, r image.Rectangle) (*image.Gray, error) {
	if img == nil {
		return nil, ErrInvalidRegion
	}
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return nil, ErrInvalidRegion
	}
	gray := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(gray, gray.Bounds(), img, r.Min, draw.Src)
	return gray, nil
}

// Score crops img at box and returns its sharpness.
func Score(img image.Image, box types.Rect) (float64, error) {
	if box.Degenerate() {
		return 0, ErrInvalidRegion
	}
	crop, err := Luma(img, box.Image())
	if err != nil {
		return 0, err
	}
	return Sharpness(crop)
}
