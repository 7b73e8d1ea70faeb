// Package ranking orders candidate clips and validates user selections.
package ranking

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/abhisek-1221/korai-sub001/internal/export"
	"github.com/abhisek-1221/korai-sub001/internal/models"
)

// boundsTolerance absorbs float noise from offsets that round-trip through JSON.
const boundsTolerance = 1e-6

var (
	ErrEmptySelection = errors.New("selection is empty")
	ErrInvalidRange   = errors.New("range is invalid")
	ErrDuplicateRange = errors.New("range selected twice")
	ErrOutOfBounds    = errors.New("range is not within any identified clip")
)

// Rank returns clips ordered by virality score descending, then start
// ascending. Remaining ties fall back to end and id so the order is total.
// The input slice is not modified.
func Rank(clips []models.Clip) []models.Clip {
	out := make([]models.Clip, len(clips))
	copy(out, clips)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if sa, sb := score(a), score(b); sa != sb {
			return sa > sb
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.ID.String() < b.ID.String()
	})
	return out
}

// score sorts NaN last.
func score(c models.Clip) float64 {
	if math.IsNaN(c.ViralityScore) {
		return math.Inf(-1)
	}
	return c.ViralityScore
}

// ValidateSelection checks that every selected range is well formed, chosen
// once, and lies within the bounds of at least one of the video's clips.
func ValidateSelection(clips []models.Clip, selection []export.Range) error {
	if len(selection) == 0 {
		return ErrEmptySelection
	}
	seen := make(map[export.Range]struct{}, len(selection))
	for i, r := range selection {
		if !export.ValidRange(r) {
			return fmt.Errorf("selection[%d] [%g, %g]: %w", i, r.Start, r.End, ErrInvalidRange)
		}
		if _, dup := seen[r]; dup {
			return fmt.Errorf("selection[%d] [%g, %g]: %w", i, r.Start, r.End, ErrDuplicateRange)
		}
		seen[r] = struct{}{}
		if !withinAny(clips, r) {
			return fmt.Errorf("selection[%d] [%g, %g]: %w", i, r.Start, r.End, ErrOutOfBounds)
		}
	}
	return nil
}

func withinAny(clips []models.Clip, r export.Range) bool {
	for _, c := range clips {
		if r.Start >= c.Start-boundsTolerance && r.End <= c.End+boundsTolerance {
			return true
		}
	}
	return false
}
