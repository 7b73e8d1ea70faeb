package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/abhisek-1221/korai-sub001/internal/export"
	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/store"
)

// State is the part of a video the transition function reads.
type State struct {
	Status         models.VideoStatus
	BatchID        *uuid.UUID
	BatchSelection []models.Range
	// BatchClaimed is set once a worker has started rendering the batch.
	BatchClaimed bool
}

func stateOf(v *models.Video) State {
	return State{
		Status:         v.Status,
		BatchID:        v.CurrentBatchID,
		BatchSelection: v.BatchSelection,
		BatchClaimed:   v.BatchClaimedAt != nil,
	}
}

func (s State) isBatch(id uuid.UUID) bool {
	return s.BatchID != nil && *s.BatchID == id
}

// Message is an input to the video state machine.
type Message interface{ isMessage() }

// HandedOff records that the identify work item was enqueued.
type HandedOff struct{}

// IdentifySucceeded carries the candidate clips of a video.
type IdentifySucceeded struct {
	Clips    []models.Clip
	Metadata store.VideoMetadata
}

// IdentifyFailed carries the reason identification failed.
type IdentifyFailed struct{ Reason string }

// ExportRequested opens a new export batch.
type ExportRequested struct {
	BatchID   uuid.UUID
	Selection []models.Range
}

// ExportClaimed records that a worker is about to render a batch.
type ExportClaimed struct{ BatchID uuid.UUID }

// ExportSucceeded carries the artifacts of a batch.
type ExportSucceeded struct {
	BatchID   uuid.UUID
	Artifacts []export.Artifact
}

// ExportFailed carries the reason a batch failed.
type ExportFailed struct {
	BatchID uuid.UUID
	Reason  string
}

func (HandedOff) isMessage()         {}
func (IdentifySucceeded) isMessage() {}
func (IdentifyFailed) isMessage()    {}
func (ExportRequested) isMessage()   {}
func (ExportClaimed) isMessage()     {}
func (ExportSucceeded) isMessage()   {}
func (ExportFailed) isMessage()      {}

// Effect is a side effect the caller must perform with the transition.
type Effect interface{ isEffect() }

// PersistClips stores the candidate clips with the transition.
type PersistClips struct {
	Clips    []models.Clip
	Metadata store.VideoMetadata
}

// PersistExports stores one exported clip row per artifact with the transition.
type PersistExports struct {
	BatchID   uuid.UUID
	Artifacts []export.Artifact
}

// RecordFailure stores the failure reason with the transition.
type RecordFailure struct{ Reason string }

// OpenBatch records the batch id and selection with the transition.
type OpenBatch struct {
	BatchID   uuid.UUID
	Selection []models.Range
}

// ClaimBatch marks the open batch as being rendered.
type ClaimBatch struct{ BatchID uuid.UUID }

// DispatchExport enqueues the render work item before the transition commits.
type DispatchExport struct{ BatchID uuid.UUID }

func (PersistClips) isEffect()   {}
func (PersistExports) isEffect() {}
func (RecordFailure) isEffect()  {}
func (OpenBatch) isEffect()      {}
func (ClaimBatch) isEffect()     {}
func (DispatchExport) isEffect() {}

// Step is the video transition function. It is pure: it returns the next
// status and the effects to apply with it, or ErrConflict / ErrNotReady /
// ErrValidation when the message does not apply to s.
//
//	submitted --HandedOff--> identifying --IdentifySucceeded--> identified
//	identifying --IdentifyFailed--> failed
//	identified|completed --ExportRequested--> exporting
//	exporting --ExportClaimed(current, unclaimed batch)--> exporting
//	exporting --ExportSucceeded(current batch)--> completed
//	exporting --ExportFailed(current batch)--> failed
//
// Failed is terminal. Claiming a batch twice returns ErrRenderClaimed. A success whose artifacts do not match the batch is
// treated as a failure of that batch.
func Step(s State, msg Message) (models.VideoStatus, []Effect, error) {
	if s.Status.Terminal() {
		return s.Status, nil, conflict(s, msg)
	}

	switch m := msg.(type) {
	case HandedOff:
		if s.Status == models.VideoStatusSubmitted {
			return models.VideoStatusIdentifying, nil, nil
		}

	case IdentifySucceeded:
		switch s.Status {
		case models.VideoStatusIdentifying:
			return models.VideoStatusIdentified, []Effect{PersistClips{Clips: m.Clips, Metadata: m.Metadata}}, nil
		case models.VideoStatusSubmitted:
			return s.Status, nil, ErrNotReady
		}

	case IdentifyFailed:
		switch s.Status {
		case models.VideoStatusIdentifying:
			return models.VideoStatusFailed, []Effect{RecordFailure{Reason: m.Reason}}, nil
		case models.VideoStatusSubmitted:
			return s.Status, nil, ErrNotReady
		}

	case ExportRequested:
		if len(m.Selection) == 0 {
			return s.Status, nil, invalidf("selection is empty")
		}
		if s.Status == models.VideoStatusIdentified || s.Status == models.VideoStatusCompleted {
			return models.VideoStatusExporting, []Effect{
				DispatchExport{BatchID: m.BatchID},
				OpenBatch{BatchID: m.BatchID, Selection: m.Selection},
			}, nil
		}

	case ExportClaimed:
		if s.Status == models.VideoStatusExporting && s.isBatch(m.BatchID) {
			if s.BatchClaimed {
				return s.Status, nil, ErrRenderClaimed
			}
			return s.Status, []Effect{ClaimBatch{BatchID: m.BatchID}}, nil
		}
		if awaitingBatch(s, m.BatchID) {
			return s.Status, nil, ErrNotReady
		}

	case ExportSucceeded:
		if s.Status == models.VideoStatusExporting && s.isBatch(m.BatchID) {
			if err := export.MatchArtifacts(s.BatchSelection, m.Artifacts); err != nil {
				return models.VideoStatusFailed, []Effect{RecordFailure{Reason: err.Error()}}, nil
			}
			return models.VideoStatusCompleted, []Effect{PersistExports{BatchID: m.BatchID, Artifacts: m.Artifacts}}, nil
		}
		if awaitingBatch(s, m.BatchID) {
			return s.Status, nil, ErrNotReady
		}

	case ExportFailed:
		if s.Status == models.VideoStatusExporting && s.isBatch(m.BatchID) {
			return models.VideoStatusFailed, []Effect{RecordFailure{Reason: m.Reason}}, nil
		}
		if awaitingBatch(s, m.BatchID) {
			return s.Status, nil, ErrNotReady
		}

	default:
		return s.Status, nil, fmt.Errorf("unknown message %T", msg)
	}
	return s.Status, nil, conflict(s, msg)
}

// awaitingBatch reports a result for a batch the gateway may still be
// recording: the video accepts exports but has not opened this batch.
func awaitingBatch(s State, batchID uuid.UUID) bool {
	return (s.Status == models.VideoStatusIdentified || s.Status == models.VideoStatusCompleted) && !s.isBatch(batchID)
}

func conflict(s State, msg Message) error {
	return fmt.Errorf("%w: %T does not apply to a %s video", ErrConflict, msg, s.Status)
}

// TranscriptionMessage is an input to the transcription state machine.
type TranscriptionMessage interface{ isTranscriptionMessage() }

// TranscriptionHandedOff records that the transcribe work item was enqueued.
type TranscriptionHandedOff struct{}

// TranscriptionSucceeded carries the transcript segments.
type TranscriptionSucceeded struct{ Segments []models.TranscriptionSegment }

// TranscriptionFailed carries the failure reason.
type TranscriptionFailed struct{ Reason string }

func (TranscriptionHandedOff) isTranscriptionMessage() {}
func (TranscriptionSucceeded) isTranscriptionMessage() {}
func (TranscriptionFailed) isTranscriptionMessage()    {}

// StepTranscription is the transcription transition function.
//
//	submitted --HandedOff--> transcribing --Succeeded--> completed
//	transcribing --Failed--> failed
func StepTranscription(status models.TranscriptionStatus, msg TranscriptionMessage) (models.TranscriptionStatus, error) {
	switch msg.(type) {
	case TranscriptionHandedOff:
		if status == models.TranscriptionStatusSubmitted {
			return models.TranscriptionStatusTranscribing, nil
		}
	case TranscriptionSucceeded:
		switch status {
		case models.TranscriptionStatusTranscribing:
			return models.TranscriptionStatusCompleted, nil
		case models.TranscriptionStatusSubmitted:
			return status, ErrNotReady
		}
	case TranscriptionFailed:
		switch status {
		case models.TranscriptionStatusTranscribing:
			return models.TranscriptionStatusFailed, nil
		case models.TranscriptionStatusSubmitted:
			return status, ErrNotReady
		}
	default:
		return status, fmt.Errorf("unknown message %T", msg)
	}
	return status, fmt.Errorf("%w: %T does not apply to a %s transcription", ErrConflict, msg, status)
}
