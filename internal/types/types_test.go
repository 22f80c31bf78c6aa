package types

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want bool
	}{
		{"identical boxes", Rect{10, 10, 50, 50}, Rect{10, 10, 50, 50}, true},
		{"small drift", Rect{10, 10, 50, 50}, Rect{14, 12, 56, 53}, true},
		{"disjoint", Rect{0, 0, 10, 10}, Rect{20, 20, 30, 30}, false},
		{"touching edges", Rect{0, 0, 10, 10}, Rect{10, 0, 20, 10}, false},
		{"partial edge overlap", Rect{0, 0, 10, 10}, Rect{6, 0, 16, 10}, false},
		// center of the small box is inside the big one, but not the reverse
		{"nested, one-sided", Rect{0, 0, 100, 100}, Rect{2, 2, 12, 12}, false},
		{"center on border", Rect{0, 0, 10, 10}, Rect{5, 0, 15, 10}, false},
		{"zero width", Rect{10, 10, 10, 50}, Rect{10, 10, 50, 50}, false},
		{"inverted", Rect{50, 50, 10, 10}, Rect{10, 10, 50, 50}, false},
		{"NaN", Rect{math.NaN(), 0, 10, 10}, Rect{0, 0, 10, 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlap(tt.a, tt.b))
			// the predicate is symmetric
			assert.Equal(t, Overlap(tt.a, tt.b), Overlap(tt.b, tt.a))
		})
	}
}

func TestOverlapSymmetryGrid(t *testing.T) {
	var rects []Rect
	for x := 0.0; x <= 30; x += 7.5 {
		for w := 0.0; w <= 30; w += 10 {
			rects = append(rects, Rect{x, x / 2, x + w, x/2 + w + 5})
		}
	}
	for _, a := range rects {
		for _, b := range rects {
			require.Equal(t, Overlap(a, b), Overlap(b, a), "a=%v b=%v", a, b)

			disjoint := a.X2 <= b.X1 || b.X2 <= a.X1 || a.Y2 <= b.Y1 || b.Y2 <= a.Y1
			if disjoint {
				require.False(t, Overlap(a, b), "disjoint rectangles matched: a=%v b=%v", a, b)
			}
		}
	}
}

func TestRectImage(t *testing.T) {
	r := Rect{1.2, 2.7, 10.1, 20.0}
	assert.Equal(t, image.Rect(1, 2, 11, 20), r.Image())
	assert.Equal(t, Rect{1, 2, 11, 20}, RectFromImage(image.Rect(1, 2, 11, 20)))
}

func TestFrameClone(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{200, 10, 10, 255})

	f := Frame{Index: 3, Image: img}
	c := f.Clone()

	img.Set(1, 1, color.RGBA{0, 0, 0, 255})

	r, _, _, _ := c.Image.At(1, 1).RGBA()
	assert.Equal(t, uint32(200), r>>8, "clone must not share pixels with the source")
	assert.Equal(t, 3, c.Index)
}

func TestFrameCloneDecodedFormats(t *testing.T) {
	ycc := image.NewYCbCr(image.Rect(10, 20, 18, 28), image.YCbCrSubsampleRatio420)
	for i := range ycc.Y {
		ycc.Y[i] = 180
	}
	for i := range ycc.Cb {
		ycc.Cb[i], ycc.Cr[i] = 128, 128
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	nrgba.Set(2, 2, color.NRGBA{10, 200, 30, 255})

	for name, img := range map[string]image.Image{"ycbcr": ycc, "nrgba": nrgba} {
		c := Frame{Image: img}.Clone()
		require.IsType(t, &image.RGBA{}, c.Image, name)
		assert.Equal(t, img.Bounds(), c.Image.Bounds(), "%s: clone keeps frame coordinates", name)

		b := img.Bounds()
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				wr, wg, wb, _ := img.At(x, y).RGBA()
				gr, gg, gb, _ := c.Image.At(x, y).RGBA()
				assert.InDelta(t, wr>>8, gr>>8, 1, "%s r at %d,%d", name, x, y)
				assert.InDelta(t, wg>>8, gg>>8, 1, "%s g at %d,%d", name, x, y)
				assert.InDelta(t, wb>>8, gb>>8, 1, "%s b at %d,%d", name, x, y)
			}
		}
	}

	ycc.Y[0] = 0
	c := Frame{Image: ycc}.Clone()
	ycc.Y[0] = 255
	r, _, _, _ := c.Image.At(10, 20).RGBA()
	assert.Less(t, r>>8, uint32(60), "clone must not share pixels with a YCbCr source")
}

func TestFaceResultDetection(t *testing.T) {
	fr := FaceResult{
		Box:       [4]float64{1, 2, 3, 4},
		Landmarks: [5][2]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}, {5, 5}},
		Score:     0.9,
	}
	d := fr.Detection()
	assert.Equal(t, Rect{1, 2, 3, 4}, d.Box)
	assert.Equal(t, Point{5, 5}, d.Landmarks[4])
	assert.InDelta(t, 0.9, d.Confidence, 1e-12)
}
