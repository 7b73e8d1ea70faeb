package pipeline

import (
	"github.com/google/uuid"

	"github.com/abhisek-1221/korai-sub001/internal/export"
	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/store"
)

// Work item event names on the job substrate.
const (
	EventIdentifyClips = "video/identify.clips"
	EventProcessClips  = "clips/process"
	EventTranscribe    = "video/transcribe.with.speakers"
)

// IdentifyWorkItem asks a worker to identify candidate clips.
type IdentifyWorkItem struct {
	VideoID    uuid.UUID `json:"video_id"`
	UserID     string    `json:"user_id"`
	YoutubeURL string    `json:"youtube_url"`
	SourceKey  string    `json:"source_key"`
	Prompt     string    `json:"prompt"`
}

// ExportWorkItem asks a worker to render one export batch.
type ExportWorkItem struct {
	VideoID        uuid.UUID      `json:"video_id"`
	BatchID        uuid.UUID      `json:"batch_id"`
	UserID         string         `json:"user_id"`
	YoutubeURL     string         `json:"youtube_url"`
	SourceKey      string         `json:"source_key"`
	Selection      []models.Range `json:"selection"`
	AspectRatio    string         `json:"aspect_ratio"`
	TargetLanguage *string        `json:"target_language,omitempty"`
	Subtitles      bool           `json:"subtitles"`
}

// Request converts the work item into a render request.
func (w ExportWorkItem) Request() export.Request {
	return export.Request{
		VideoID:        w.VideoID,
		BatchID:        w.BatchID,
		SourceKey:      w.SourceKey,
		YoutubeURL:     w.YoutubeURL,
		Selection:      w.Selection,
		AspectRatio:    export.AspectRatio(w.AspectRatio),
		TargetLanguage: w.TargetLanguage,
		Subtitles:      w.Subtitles,
	}
}

// TranscribeWorkItem asks a worker to transcribe a video with speaker labels.
type TranscribeWorkItem struct {
	TranscriptionID uuid.UUID `json:"transcription_id"`
	UserID          string    `json:"user_id"`
	YoutubeURL      string    `json:"youtube_url"`
}

// IdentifyResult is a worker's answer to an IdentifyWorkItem. A non-empty
// Failure marks the identification as failed.
type IdentifyResult struct {
	VideoID  uuid.UUID
	Clips    []models.Clip
	Metadata store.VideoMetadata
	Failure  string
}

// ExportResult is a worker's answer to an ExportWorkItem.
type ExportResult struct {
	VideoID   uuid.UUID
	BatchID   uuid.UUID
	Artifacts []export.Artifact
	Failure   string
}

// TranscriptionResult is a worker's answer to a TranscribeWorkItem.
type TranscriptionResult struct {
	TranscriptionID uuid.UUID
	Segments        []models.TranscriptionSegment
	Failure         string
}
