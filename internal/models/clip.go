package models

import (
	"time"

	"github.com/google/uuid"
)

// Clip is a candidate segment produced by identification.
type Clip struct {
	ID            uuid.UUID `json:"id"`
	VideoID       uuid.UUID `json:"video_id"`
	Start         float64   `json:"start"`
	End           float64   `json:"end"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	ViralityScore float64   `json:"virality_score"`
	RelatedTopics []string  `json:"related_topics"`
	Transcript    string    `json:"transcript"`
	CreatedAt     time.Time `json:"created_at"`
}

// Range returns the clip's offsets.
func (c Clip) Range() Range {
	return Range{Start: c.Start, End: c.End}
}

// ExportedClip is a rendered artifact of one selected range.
type ExportedClip struct {
	ID             uuid.UUID `json:"id"`
	VideoID        uuid.UUID `json:"video_id"`
	BatchID        uuid.UUID `json:"batch_id"`
	Start          float64   `json:"start"`
	End            float64   `json:"end"`
	StorageKey     string    `json:"storage_key"`
	AspectRatio    string    `json:"aspect_ratio"`
	TargetLanguage *string   `json:"target_language,omitempty"` // Nullable, no translation when nil
	CreatedAt      time.Time `json:"created_at"`
}
