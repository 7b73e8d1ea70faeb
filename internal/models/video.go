package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus is the lifecycle state of a submitted video.
type VideoStatus string

const (
	VideoStatusSubmitted   VideoStatus = "submitted"
	VideoStatusIdentifying VideoStatus = "identifying"
	VideoStatusIdentified  VideoStatus = "identified"
	VideoStatusExporting   VideoStatus = "exporting"
	VideoStatusCompleted   VideoStatus = "completed"
	VideoStatusFailed      VideoStatus = "failed"
)

// Terminal reports whether no further transition leaves this status.
func (s VideoStatus) Terminal() bool {
	return s == VideoStatusFailed
}

// Video represents a submitted source video and its pipeline state.
type Video struct {
	ID         uuid.UUID   `json:"id"`
	UserID     string      `json:"user_id"`
	YoutubeURL string      `json:"youtube_url"`
	Prompt     string      `json:"prompt"`
	SourceKey  string      `json:"source_key"` // Blob key the identify worker uploads the source to
	Status     VideoStatus `json:"status"`
	// ErrorReason is only set once the video is Failed.
	ErrorReason *string `json:"error_reason,omitempty"`
	Version     int     `json:"version"`

	// Export batch currently (or last) in flight.
	CurrentBatchID *uuid.UUID `json:"current_batch_id,omitempty"`
	BatchSelection []Range    `json:"-"`
	// BatchClaimedAt is when a worker started rendering the current batch.
	BatchClaimedAt *time.Time `json:"-"`

	TotalClips       int     `json:"total_clips"`
	VideoDuration    *string `json:"video_duration,omitempty"`
	DetectedLanguage *string `json:"detected_language,omitempty"`
	S3Path           *string `json:"s3_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Clips []Clip `json:"clips,omitempty"`
}

// Range is a [Start, End) span of a source video in seconds.
type Range struct {
	Start float64 `json:"start" validate:"gte=0"`
	End   float64 `json:"end" validate:"gtfield=Start"`
}
