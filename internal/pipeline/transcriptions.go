package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/quota"
	"github.com/abhisek-1221/korai-sub001/internal/store"
	"github.com/abhisek-1221/korai-sub001/internal/youtube"
)

// SubmitTranscription validates and admits a transcription request, records
// it and hands it to the transcribe worker.
func (o *Orchestrator) SubmitTranscription(ctx context.Context, userID, youtubeURL string) (*models.Transcription, error) {
	url := strings.TrimSpace(youtubeURL)
	if err := youtube.Validate(url); err != nil {
		return nil, invalid(err)
	}
	if err := o.admit(ctx, userID, quota.ClassTranscribe); err != nil {
		return nil, err
	}

	now := o.now().UTC()
	t := &models.Transcription{
		ID:         o.newID(),
		UserID:     userID,
		YoutubeURL: url,
		Status:     models.TranscriptionStatusSubmitted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.transcriptions.CreateTranscription(ctx, t); err != nil {
		return nil, fmt.Errorf("create transcription: %w", err)
	}
	log := o.log.WithFields(logrus.Fields{"transcription_id": t.ID, "user_id": userID})

	item := TranscribeWorkItem{TranscriptionID: t.ID, UserID: userID, YoutubeURL: url}
	if err := o.send(ctx, EventTranscribe, item); err != nil {
		log.WithError(err).Error("Failed to enqueue transcription, left submitted")
		return t, err
	}

	next, err := o.advanceTranscription(ctx, t, TranscriptionHandedOff{}, nil)
	if err != nil {
		log.WithError(err).Warn("Could not record transcription hand-off")
		return t, nil
	}
	log.Info("Transcription submitted")
	return next, nil
}

// ClaimTranscription is the transcribe worker's counterpart of ClaimIdentify.
func (o *Orchestrator) ClaimTranscription(ctx context.Context, id uuid.UUID) error {
	for attempt := 0; attempt < 2; attempt++ {
		t, err := o.transcriptions.GetTranscriptionByID(ctx, id)
		if err != nil {
			return storeErr(err)
		}
		switch t.Status {
		case models.TranscriptionStatusTranscribing:
			return nil
		case models.TranscriptionStatusSubmitted:
			if _, err := o.advanceTranscription(ctx, t, TranscriptionHandedOff{}, nil); err == nil || !errors.Is(err, ErrConflict) {
				return err
			}
		default:
			return fmt.Errorf("%w: transcription is %s", ErrConflict, t.Status)
		}
	}
	return ErrConflict
}

// HandleTranscriptionResult applies a transcription result. Segments are
// stored ordered by start offset, atomically with the transition.
func (o *Orchestrator) HandleTranscriptionResult(ctx context.Context, res TranscriptionResult) error {
	t, err := o.transcriptions.GetTranscriptionByID(ctx, res.TranscriptionID)
	if err != nil {
		return storeErr(err)
	}

	var msg TranscriptionMessage
	var segments []models.TranscriptionSegment
	if res.Failure != "" {
		msg = TranscriptionFailed{Reason: res.Failure}
	} else {
		segments = make([]models.TranscriptionSegment, len(res.Segments))
		copy(segments, res.Segments)
		sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
		for i := range segments {
			segments[i].ID = o.newID()
			segments[i].TranscriptionID = t.ID
			if strings.TrimSpace(segments[i].Speaker) == "" {
				segments[i].Speaker = "UNKNOWN"
			}
		}
		msg = TranscriptionSucceeded{Segments: segments}
	}

	next, err := o.advanceTranscription(ctx, t, msg, segments)
	if err != nil {
		return err
	}
	o.log.WithFields(logrus.Fields{
		"transcription_id": t.ID,
		"status":           next.Status,
		"segments":         len(segments),
	}).Info("Transcription result applied")
	return nil
}

func (o *Orchestrator) advanceTranscription(ctx context.Context, t *models.Transcription, msg TranscriptionMessage, segments []models.TranscriptionSegment) (*models.Transcription, error) {
	to, err := StepTranscription(t.Status, msg)
	if err != nil {
		return nil, err
	}
	adv := store.TranscriptionAdvance{
		TranscriptionID: t.ID,
		FromStatus:      t.Status,
		FromVersion:     t.Version,
		ToStatus:        to,
		At:              o.now().UTC(),
		Segments:        segments,
	}
	if f, ok := msg.(TranscriptionFailed); ok {
		reason := truncate(f.Reason, maxReasonLength)
		adv.ErrorReason = &reason
	}
	if err := o.transcriptions.AdvanceTranscription(ctx, adv); err != nil {
		return nil, storeErr(err)
	}
	next := *t
	next.Status = to
	next.Version++
	next.UpdatedAt = adv.At
	next.ErrorReason = adv.ErrorReason
	next.Segments = segments
	return &next, nil
}

// GetTranscription returns a transcription with segments ascending by start.
func (o *Orchestrator) GetTranscription(ctx context.Context, id uuid.UUID, userID string) (*models.Transcription, error) {
	t, err := o.transcriptions.GetTranscription(ctx, id, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return t, nil
}

// ListTranscriptions returns the caller's transcriptions, newest first.
func (o *Orchestrator) ListTranscriptions(ctx context.Context, userID string) ([]models.Transcription, error) {
	return o.transcriptions.ListTranscriptions(ctx, userID)
}
