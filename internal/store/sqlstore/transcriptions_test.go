package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/store"
)

func seedTranscription(t *testing.T, db *DB, userID string) *models.Transcription {
	t.Helper()
	ctx := context.Background()
	tr := &models.Transcription{
		ID:         uuid.New(),
		UserID:     userID,
		YoutubeURL: "https://youtu.be/dQw4w9WgXcQ",
		Status:     models.TranscriptionStatusTranscribing,
		CreatedAt:  baseTime,
		UpdatedAt:  baseTime,
	}
	require.NoError(t, db.CreateTranscription(ctx, tr))

	segments := []models.TranscriptionSegment{
		{ID: uuid.New(), Start: 5, End: 9, Text: "second", Speaker: "SPEAKER_01"},
		{ID: uuid.New(), Start: 0, End: 4, Text: "first", Speaker: "SPEAKER_00"},
		{ID: uuid.New(), Start: 10, End: 12, Text: "third", Speaker: "SPEAKER_00"},
	}
	require.NoError(t, db.AdvanceTranscription(ctx, store.TranscriptionAdvance{
		TranscriptionID: tr.ID,
		FromStatus:      models.TranscriptionStatusTranscribing,
		ToStatus:        models.TranscriptionStatusCompleted,
		At:              baseTime.Add(time.Minute),
		Segments:        segments,
	}))
	return tr
}

func TestTranscriptionSegmentsOrderedByStart(t *testing.T) {
	db := newTestDB(t)
	tr := seedTranscription(t, db, "u")

	got, err := db.GetTranscription(context.Background(), tr.ID, "u")
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionStatusCompleted, got.Status)
	require.Len(t, got.Segments, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got.Segments[0].Text, got.Segments[1].Text, got.Segments[2].Text})

	_, err = db.GetTranscription(context.Background(), tr.ID, "intruder")
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := db.ListTranscriptions(context.Background(), "u")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Segments)
}

func TestAdvanceTranscriptionStale(t *testing.T) {
	db := newTestDB(t)
	tr := seedTranscription(t, db, "u")

	err := db.AdvanceTranscription(context.Background(), store.TranscriptionAdvance{
		TranscriptionID: tr.ID,
		FromStatus:      models.TranscriptionStatusTranscribing,
		ToStatus:        models.TranscriptionStatusFailed,
		At:              baseTime,
	})
	assert.ErrorIs(t, err, store.ErrStaleState)
}

func TestApplySpeakerMappings(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tr := seedTranscription(t, db, "u")

	n, err := db.ApplySpeakerMappings(ctx, tr.ID, "u", map[string]string{
		"SPEAKER_00": "Alice",
		"SPEAKER_01": "Bob",
		"SPEAKER_09": "Nobody",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := db.GetTranscription(ctx, tr.ID, "u")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Segments[0].DisplayName())
	assert.Equal(t, "Bob", got.Segments[1].DisplayName())
	assert.Equal(t, "Alice", got.Segments[2].DisplayName())

	// Applying the same mapping again changes nothing visible.
	_, err = db.ApplySpeakerMappings(ctx, tr.ID, "u", map[string]string{"SPEAKER_00": "Alice"})
	require.NoError(t, err)
	again, err := db.GetTranscription(ctx, tr.ID, "u")
	require.NoError(t, err)
	assert.Equal(t, got.Segments, again.Segments)
}

func TestApplySpeakerMappingsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tr := seedTranscription(t, db, "u")

	boom := errors.New("connection reset")
	db.beforeSpeakerUpdate = func(label string) error {
		if label == "SPEAKER_01" {
			return boom
		}
		return nil
	}

	_, err := db.ApplySpeakerMappings(ctx, tr.ID, "u", map[string]string{
		"SPEAKER_00": "Alice",
		"SPEAKER_01": "Bob",
	})
	require.ErrorIs(t, err, boom)

	got, err := db.GetTranscription(ctx, tr.ID, "u")
	require.NoError(t, err)
	for _, s := range got.Segments {
		assert.Nil(t, s.SpeakerName, "label %s must keep its previous name", s.Speaker)
	}
}

func TestApplySpeakerMappingsOwnership(t *testing.T) {
	db := newTestDB(t)
	tr := seedTranscription(t, db, "u")

	_, err := db.ApplySpeakerMappings(context.Background(), tr.ID, "intruder", map[string]string{"SPEAKER_00": "Mallory"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
