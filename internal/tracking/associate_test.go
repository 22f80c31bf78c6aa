package tracking

import (
	"testing"

	"github.com/andresmejia3/facetrail/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestAssociate(t *testing.T) {
	a := types.Rect{X1: 10, Y1: 10, X2: 50, Y2: 50}
	b := types.Rect{X1: 100, Y1: 100, X2: 140, Y2: 140}

	tests := []struct {
		name       string
		detections []types.Rect
		tracks     []types.Rect
		want       []int
	}{
		{
			name:       "no tracks",
			detections: []types.Rect{a, b},
			want:       []int{NewTrack, NewTrack},
		},
		{
			name:   "no detections",
			tracks: []types.Rect{a},
			want:   []int{},
		},
		{
			name:       "exact match",
			detections: []types.Rect{a},
			tracks:     []types.Rect{a},
			want:       []int{0},
		},
		{
			name:       "matches follow pool order",
			detections: []types.Rect{b, a},
			tracks:     []types.Rect{a, b},
			want:       []int{1, 0},
		},
		{
			name:       "claimed track is not matched twice",
			detections: []types.Rect{a, {X1: 12, Y1: 12, X2: 52, Y2: 52}},
			tracks:     []types.Rect{a},
			want:       []int{0, NewTrack},
		},
		{
			name:       "first eligible track wins",
			detections: []types.Rect{a},
			tracks:     []types.Rect{{X1: 12, Y1: 12, X2: 52, Y2: 52}, a},
			want:       []int{0},
		},
		{
			name:       "degenerate detection",
			detections: []types.Rect{{X1: 30, Y1: 10, X2: 30, Y2: 50}, {}},
			tracks:     []types.Rect{a},
			want:       []int{Rejected, Rejected},
		},
		{
			name:       "degenerate track never matches",
			detections: []types.Rect{a},
			tracks:     []types.Rect{{X1: 30, Y1: 30, X2: 30, Y2: 30}},
			want:       []int{NewTrack},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Associate(tt.detections, tt.tracks))
		})
	}
}

func TestPoolRemoveIf(t *testing.T) {
	p := NewPool()
	for i := 0; i < 5; i++ {
		p.add(&Track{})
	}

	removed := p.removeIf(func(t *Track) bool { return t.ID%2 == 1 })

	assert.Len(t, removed, 2)
	assert.Equal(t, uint64(1), removed[0].ID)
	assert.Equal(t, uint64(3), removed[1].ID)
	assert.Equal(t, 3, p.Len())
	for i, want := range []uint64{0, 2, 4} {
		assert.Equal(t, want, p.At(i).ID)
	}

	p.add(&Track{})
	assert.Equal(t, uint64(5), p.At(3).ID, "ids are never reused")
}

func TestHoldTracker(t *testing.T) {
	tr, err := NewHoldTracker()
	assert.NoError(t, err)

	box := types.Rect{X1: 1, Y1: 2, X2: 3, Y2: 4}
	assert.NoError(t, tr.Init(types.Frame{}, box))
	got, ok := tr.Update(types.Frame{})
	assert.True(t, ok)
	assert.Equal(t, box, got)

	assert.ErrorIs(t, tr.Reinit(types.Frame{}, types.Rect{}), ErrTrackerInit)
	assert.NoError(t, tr.Close())
	_, ok = tr.Update(types.Frame{})
	assert.False(t, ok)
}
