// Package store holds the persistence contracts shared by every backend.
package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek-1221/korai-sub001/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is not owned by the caller.
	ErrNotFound = errors.New("record not found")
	// ErrStaleState is returned when a conditional update finds the row has moved on.
	ErrStaleState = errors.New("stale state: row changed since it was read")
)

// VideoMetadata is the identification summary persisted on a video.
type VideoMetadata struct {
	TotalClips       int
	VideoDuration    *string
	DetectedLanguage *string
	S3Path           *string
}

// Batch opens an export batch on a video.
type Batch struct {
	ID        uuid.UUID
	Selection []models.Range
}

// VideoAdvance is one conditional transition of a video. It applies only if
// the row still has FromStatus and FromVersion; the status change and every
// row it carries commit together or not at all.
type VideoAdvance struct {
	VideoID     uuid.UUID
	FromStatus  models.VideoStatus
	FromVersion int
	ToStatus    models.VideoStatus
	At          time.Time

	ErrorReason *string
	Metadata    *VideoMetadata
	Clips       []models.Clip
	Batch       *Batch
	// ClaimBatch stamps the open batch as claimed at At. Opening a new
	// Batch clears the stamp.
	ClaimBatch bool
	Exported   []models.ExportedClip
}

// TranscriptionAdvance is one conditional transition of a transcription.
type TranscriptionAdvance struct {
	TranscriptionID uuid.UUID
	FromStatus      models.TranscriptionStatus
	FromVersion     int
	ToStatus        models.TranscriptionStatus
	At              time.Time

	ErrorReason *string
	Segments    []models.TranscriptionSegment
}
