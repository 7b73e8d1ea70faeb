package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/store"
)

const transcriptionColumns = `id, user_id, youtube_url, status, error_reason, version, created_at, updated_at`

const segmentColumns = `id, transcription_id, start_offset, end_offset, text, speaker, speaker_name`

func scanTranscription(s scanner) (*models.Transcription, error) {
	var (
		t         models.Transcription
		status    string
		errReason sql.NullString
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.YoutubeURL, &status, &errReason, &t.Version, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = models.TranscriptionStatus(status)
	t.ErrorReason = stringPtr(errReason)
	return &t, nil
}

// CreateTranscription inserts a new transcription row.
func (d *DB) CreateTranscription(ctx context.Context, t *models.Transcription) error {
	_, err := d.exec(ctx, d.db, `INSERT INTO transcriptions (id, user_id, youtube_url, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.YoutubeURL, string(t.Status), t.Version, utc(t.CreatedAt), utc(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert transcription %s: %w", t.ID, err)
	}
	return nil
}

// GetTranscription loads a transcription owned by userID with its segments
// ordered by start offset.
func (d *DB) GetTranscription(ctx context.Context, id uuid.UUID, userID string) (*models.Transcription, error) {
	row := d.queryRow(ctx, d.db, `SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTranscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transcription %s: %w", id, err)
	}
	if t.Segments, err = d.listSegments(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTranscriptionByID loads a transcription without segments, regardless of owner.
func (d *DB) GetTranscriptionByID(ctx context.Context, id uuid.UUID) (*models.Transcription, error) {
	row := d.queryRow(ctx, d.db, `SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = ?`, id)
	t, err := scanTranscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load transcription %s: %w", id, err)
	}
	return t, nil
}

func (d *DB) listSegments(ctx context.Context, transcriptionID uuid.UUID) ([]models.TranscriptionSegment, error) {
	rows, err := d.query(ctx, d.db, `SELECT `+segmentColumns+` FROM transcription_segments
		WHERE transcription_id = ? ORDER BY start_offset ASC, position ASC`, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("list segments of %s: %w", transcriptionID, err)
	}
	defer rows.Close()

	segments := []models.TranscriptionSegment{}
	for rows.Next() {
		var (
			s    models.TranscriptionSegment
			name sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.TranscriptionID, &s.Start, &s.End, &s.Text, &s.Speaker, &name); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		s.SpeakerName = stringPtr(name)
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// ListTranscriptions returns the user's transcriptions, newest first, without segments.
func (d *DB) ListTranscriptions(ctx context.Context, userID string) ([]models.Transcription, error) {
	rows, err := d.query(ctx, d.db, `SELECT `+transcriptionColumns+` FROM transcriptions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()

	out := []models.Transcription{}
	for rows.Next() {
		t, err := scanTranscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// AdvanceTranscription applies a conditional transition and inserts the
// carried segments in the same transaction.
func (d *DB) AdvanceTranscription(ctx context.Context, adv store.TranscriptionAdvance) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		res, err := d.exec(ctx, tx, `UPDATE transcriptions
			SET status = ?, version = version + 1, updated_at = ?, error_reason = COALESCE(?, error_reason)
			WHERE id = ? AND status = ? AND version = ?`,
			string(adv.ToStatus), utc(adv.At), nullString(adv.ErrorReason),
			adv.TranscriptionID, string(adv.FromStatus), adv.FromVersion)
		if err != nil {
			return fmt.Errorf("advance transcription %s: %w", adv.TranscriptionID, err)
		}
		if err := affectedOne(res, store.ErrStaleState); err != nil {
			if errors.Is(err, store.ErrStaleState) {
				return d.staleOrMissing(ctx, tx, "transcriptions", adv.TranscriptionID)
			}
			return err
		}

		for i, s := range adv.Segments {
			if _, err := d.exec(ctx, tx, `INSERT INTO transcription_segments
				(id, transcription_id, position, start_offset, end_offset, text, speaker, speaker_name)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				s.ID, adv.TranscriptionID, i, s.Start, s.End, s.Text, s.Speaker, nullString(s.SpeakerName)); err != nil {
				return fmt.Errorf("insert segment %d: %w", i, err)
			}
		}
		return nil
	})
}

// ApplySpeakerMappings sets the display name of every segment of each mapped
// label, as one transaction: either every label is applied or none is.
// It returns the number of segments updated.
func (d *DB) ApplySpeakerMappings(ctx context.Context, transcriptionID uuid.UUID, userID string, mapping map[string]string) (int64, error) {
	labels := make([]string, 0, len(mapping))
	for label := range mapping {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var updated int64
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := d.queryRow(ctx, tx, `SELECT 1 FROM transcriptions WHERE id = ? AND user_id = ?`, transcriptionID, userID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check transcription %s: %w", transcriptionID, err)
		}

		for _, label := range labels {
			if d.beforeSpeakerUpdate != nil {
				if err := d.beforeSpeakerUpdate(label); err != nil {
					return err
				}
			}
			res, err := d.exec(ctx, tx, `UPDATE transcription_segments SET speaker_name = ?
				WHERE transcription_id = ? AND speaker = ?`, mapping[label], transcriptionID, label)
			if err != nil {
				return fmt.Errorf("map speaker %q: %w", label, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			updated += n
		}

		_, err = d.exec(ctx, tx, `UPDATE transcriptions SET updated_at = ? WHERE id = ?`, utc(time.Now()), transcriptionID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}
