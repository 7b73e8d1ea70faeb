package export

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAspectRatio(t *testing.T) {
	for _, ok := range []string{"9:16", "16:9", "1:1", " 1:1 "} {
		_, err := ParseAspectRatio(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "4:3", "16x9", "9:16:1"} {
		_, err := ParseAspectRatio(bad)
		assert.ErrorIs(t, err, ErrAspectRatio, bad)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want *string
		err  bool
	}{
		{in: "", want: nil},
		{in: "none", want: nil},
		{in: "NULL", want: nil},
		{in: "en", want: ptr("en")},
		{in: "ES", want: ptr("es")},
		{in: "pt-BR", want: ptr("pt")},
		{in: "english", err: true},
		{in: "e1", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeLanguage(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrLanguage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequestValidate(t *testing.T) {
	good := Request{AspectRatio: AspectPortrait, Selection: []Range{{Start: 0, End: 10}}}
	assert.NoError(t, good.Validate())

	empty := good
	empty.Selection = nil
	assert.ErrorIs(t, empty.Validate(), ErrEmpty)

	inverted := good
	inverted.Selection = []Range{{Start: 5, End: 5}}
	assert.ErrorIs(t, inverted.Validate(), ErrRange)

	nan := good
	nan.Selection = []Range{{Start: math.NaN(), End: 3}}
	assert.ErrorIs(t, nan.Validate(), ErrRange)

	ratio := good
	ratio.AspectRatio = "4:3"
	assert.ErrorIs(t, ratio.Validate(), ErrAspectRatio)
}

func TestMatchArtifacts(t *testing.T) {
	sel := []Range{{Start: 0, End: 10}, {Start: 20, End: 30}}
	art := func(s, e float64, key string) Artifact {
		return Artifact{Range: Range{Start: s, End: e}, StorageKey: key}
	}

	assert.NoError(t, MatchArtifacts(sel, []Artifact{art(20, 30, "b"), art(0, 10, "a")}))
	assert.ErrorIs(t, MatchArtifacts(sel, nil), ErrArtifacts)
	assert.ErrorIs(t, MatchArtifacts(sel, []Artifact{art(0, 10, "a")}), ErrArtifacts)
	assert.ErrorIs(t, MatchArtifacts(sel, []Artifact{art(0, 10, "a"), art(0, 10, "a2")}), ErrArtifacts)
	assert.ErrorIs(t, MatchArtifacts(sel, []Artifact{art(0, 10, "a"), art(20, 30, "")}), ErrArtifacts)
}

func ptr(s string) *string { return &s }
