package ranking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/abhisek-1221/korai-sub001/internal/export"
	"github.com/abhisek-1221/korai-sub001/internal/models"
)

func clip(start, end, score float64) models.Clip {
	return models.Clip{ID: uuid.New(), Start: start, End: end, ViralityScore: score}
}

func TestRankOrdersByScoreThenStart(t *testing.T) {
	in := []models.Clip{
		clip(50, 60, 0.7),
		clip(10, 20, 0.9),
		clip(30, 40, 0.7),
		clip(0, 5, 0.2),
	}
	got := Rank(in)

	starts := make([]float64, len(got))
	for i, c := range got {
		starts[i] = c.Start
	}
	assert.Equal(t, []float64{10, 30, 50, 0}, starts)
	assert.Equal(t, 50.0, in[0].Start, "input untouched")
}

func TestRankIsDeterministic(t *testing.T) {
	in := []models.Clip{clip(1, 2, 0.5), clip(1, 3, 0.5), clip(0, 9, 0.5)}
	first := Rank(in)
	for i := 0; i < 10; i++ {
		reversed := []models.Clip{in[2], in[1], in[0]}
		assert.Equal(t, first, Rank(reversed))
	}
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

func TestValidateSelection(t *testing.T) {
	clips := []models.Clip{clip(10, 40, 0.9), clip(60, 90, 0.5)}

	tests := []struct {
		name string
		sel  []export.Range
		want error
	}{
		{name: "whole clip", sel: []export.Range{{Start: 10, End: 40}}},
		{name: "sub range", sel: []export.Range{{Start: 15, End: 30}, {Start: 60, End: 61}}},
		{name: "empty", sel: nil, want: ErrEmptySelection},
		{name: "zero length", sel: []export.Range{{Start: 20, End: 20}}, want: ErrInvalidRange},
		{name: "negative", sel: []export.Range{{Start: -1, End: 20}}, want: ErrInvalidRange},
		{name: "duplicate", sel: []export.Range{{Start: 10, End: 40}, {Start: 10, End: 40}}, want: ErrDuplicateRange},
		{name: "spans two clips", sel: []export.Range{{Start: 30, End: 70}}, want: ErrOutOfBounds},
		{name: "outside", sel: []export.Range{{Start: 41, End: 50}}, want: ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelection(clips, tt.sel)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
