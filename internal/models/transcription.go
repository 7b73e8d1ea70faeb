package models

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptionStatus is the lifecycle state of a transcription.
type TranscriptionStatus string

const (
	TranscriptionStatusSubmitted    TranscriptionStatus = "submitted"
	TranscriptionStatusTranscribing TranscriptionStatus = "transcribing"
	TranscriptionStatusCompleted    TranscriptionStatus = "completed"
	TranscriptionStatusFailed       TranscriptionStatus = "failed"
)

// Transcription represents a speaker-labelled transcript of a video.
type Transcription struct {
	ID          uuid.UUID              `json:"id"`
	UserID      string                 `json:"user_id"`
	YoutubeURL  string                 `json:"youtube_url"`
	Status      TranscriptionStatus    `json:"status"`
	ErrorReason *string                `json:"error_reason,omitempty"`
	Version     int                    `json:"version"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Segments    []TranscriptionSegment `json:"segments,omitempty"`
}

// TranscriptionSegment is a single utterance attributed to a speaker label.
type TranscriptionSegment struct {
	ID              uuid.UUID `json:"id"`
	TranscriptionID uuid.UUID `json:"transcription_id"`
	Start           float64   `json:"start"`
	End             float64   `json:"end"`
	Text            string    `json:"text"`
	Speaker         string    `json:"speaker"`                // Label assigned by the transcriber, e.g. "SPEAKER_00"
	SpeakerName     *string   `json:"speaker_name,omitempty"` // Display name mapped by the user
}

// DisplayName returns the mapped speaker name, or the raw label when unmapped.
func (s TranscriptionSegment) DisplayName() string {
	if s.SpeakerName != nil && *s.SpeakerName != "" {
		return *s.SpeakerName
	}
	return s.Speaker
}
