package align

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(m [6]float64, p types.Point) types.Point {
	return types.Point{X: m[0]*p.X + m[1]*p.Y + m[2], Y: m[3]*p.X + m[4]*p.Y + m[5]}
}

func TestSimilarityIdentity(t *testing.T) {
	m, ok := Similarity(Template, Template)
	require.True(t, ok)
	want := [6]float64{1, 0, 0, 0, 1, 0}
	for i := range want {
		assert.InDelta(t, want[i], m[i], 1e-9)
	}
}

func TestSimilarityRecoversTransform(t *testing.T) {
	// rotate the template by 30 degrees, scale by 2.5 and shift it
	theta := math.Pi / 6
	scale := 2.5
	var src [5]types.Point
	for i, p := range Template {
		src[i] = types.Point{
			X: scale*(p.X*math.Cos(theta)-p.Y*math.Sin(theta)) + 300,
			Y: scale*(p.X*math.Sin(theta)+p.Y*math.Cos(theta)) + 120,
		}
	}

	m, ok := Similarity(src, Template)
	require.True(t, ok)
	for i := range src {
		got := apply(m, src[i])
		assert.InDelta(t, Template[i].X, got.X, 1e-6)
		assert.InDelta(t, Template[i].Y, got.Y, 1e-6)
	}
}

func TestSimilarityDegenerate(t *testing.T) {
	var same [5]types.Point
	for i := range same {
		same[i] = types.Point{X: 40, Y: 40}
	}
	_, ok := Similarity(same, Template)
	assert.False(t, ok, "all landmarks on one point")

	nan := Template
	nan[2] = types.Point{X: math.NaN(), Y: 0}
	_, ok = Similarity(nan, Template)
	assert.False(t, ok)
}

func TestFace(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}

	out, ok := Face(img, Template)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, Size, Size), out.Bounds())
	// identity warp keeps the gradient
	r, g, _, _ := out.At(56, 70).RGBA()
	assert.InDelta(t, 56, float64(r>>8), 1)
	assert.InDelta(t, 70, float64(g>>8), 1)

	_, ok = Face(img, [5]types.Point{})
	assert.False(t, ok)
	_, ok = Face(nil, Template)
	assert.False(t, ok)
}
