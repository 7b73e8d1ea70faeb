package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/store"
)

const videoColumns = `id, user_id, youtube_url, prompt, source_key, status, error_reason, version,
	current_batch_id, batch_selection, batch_claimed_at, total_clips, video_duration, detected_language, s3_path,
	created_at, updated_at`

const clipColumns = `id, video_id, start_offset, end_offset, title, summary, virality_score,
	related_topics, transcript, created_at`

const exportedColumns = `id, video_id, batch_id, start_offset, end_offset, storage_key, aspect_ratio,
	target_language, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanVideo(s scanner) (*models.Video, error) {
	var (
		v                        models.Video
		status                   string
		errReason, selection     sql.NullString
		duration, language, path sql.NullString
		batch                    uuid.NullUUID
		claimedAt                sql.NullTime
	)
	err := s.Scan(&v.ID, &v.UserID, &v.YoutubeURL, &v.Prompt, &v.SourceKey, &status, &errReason, &v.Version,
		&batch, &selection, &claimedAt, &v.TotalClips, &duration, &language, &path,
		&v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.Status = models.VideoStatus(status)
	v.ErrorReason = stringPtr(errReason)
	v.VideoDuration = stringPtr(duration)
	v.DetectedLanguage = stringPtr(language)
	v.S3Path = stringPtr(path)
	if batch.Valid {
		id := batch.UUID
		v.CurrentBatchID = &id
	}
	if claimedAt.Valid {
		at := claimedAt.Time.UTC()
		v.BatchClaimedAt = &at
	}
	if selection.Valid && selection.String != "" {
		if err := json.Unmarshal([]byte(selection.String), &v.BatchSelection); err != nil {
			return nil, fmt.Errorf("decode batch selection of video %s: %w", v.ID, err)
		}
	}
	return &v, nil
}

func scanClip(s scanner) (models.Clip, error) {
	var (
		c      models.Clip
		topics string
	)
	if err := s.Scan(&c.ID, &c.VideoID, &c.Start, &c.End, &c.Title, &c.Summary, &c.ViralityScore,
		&topics, &c.Transcript, &c.CreatedAt); err != nil {
		return c, err
	}
	if topics != "" {
		if err := json.Unmarshal([]byte(topics), &c.RelatedTopics); err != nil {
			return c, fmt.Errorf("decode related topics of clip %s: %w", c.ID, err)
		}
	}
	if c.RelatedTopics == nil {
		c.RelatedTopics = []string{}
	}
	return c, nil
}

func scanExported(s scanner) (models.ExportedClip, error) {
	var (
		e    models.ExportedClip
		lang sql.NullString
	)
	if err := s.Scan(&e.ID, &e.VideoID, &e.BatchID, &e.Start, &e.End, &e.StorageKey, &e.AspectRatio,
		&lang, &e.CreatedAt); err != nil {
		return e, err
	}
	e.TargetLanguage = stringPtr(lang)
	return e, nil
}

// CreateVideo inserts a new video row.
func (d *DB) CreateVideo(ctx context.Context, v *models.Video) error {
	_, err := d.exec(ctx, d.db, `INSERT INTO videos (id, user_id, youtube_url, prompt, source_key, status,
		version, total_clips, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.YoutubeURL, v.Prompt, v.SourceKey, string(v.Status),
		v.Version, v.TotalClips, utc(v.CreatedAt), utc(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert video %s: %w", v.ID, err)
	}
	return nil
}

// GetVideo loads a video owned by userID.
func (d *DB) GetVideo(ctx context.Context, id uuid.UUID, userID string) (*models.Video, error) {
	row := d.queryRow(ctx, d.db, `SELECT `+videoColumns+` FROM videos WHERE id = ? AND user_id = ?`, id, userID)
	return d.oneVideo(row, id)
}

// GetVideoByID loads a video regardless of owner. Workers use it.
func (d *DB) GetVideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	row := d.queryRow(ctx, d.db, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	return d.oneVideo(row, id)
}

func (d *DB) oneVideo(row *sql.Row, id uuid.UUID) (*models.Video, error) {
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load video %s: %w", id, err)
	}
	return v, nil
}

// ListVideos returns the user's videos, newest first, each with its clip count.
func (d *DB) ListVideos(ctx context.Context, userID string) ([]models.Video, error) {
	rows, err := d.query(ctx, d.db, `SELECT `+videoColumns+` FROM videos WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// ListClips returns every candidate clip of a video in insertion order.
func (d *DB) ListClips(ctx context.Context, videoID uuid.UUID) ([]models.Clip, error) {
	return d.listClips(ctx, d.db, videoID)
}

func (d *DB) listClips(ctx context.Context, q queryer, videoID uuid.UUID) ([]models.Clip, error) {
	rows, err := d.query(ctx, q, `SELECT `+clipColumns+` FROM clips WHERE video_id = ?
		ORDER BY created_at ASC, start_offset ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list clips of %s: %w", videoID, err)
	}
	defer rows.Close()

	clips := []models.Clip{}
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// AdvanceVideo applies a conditional transition together with the rows it
// carries. It returns store.ErrStaleState when the video has moved past
// FromStatus/FromVersion and store.ErrNotFound when it no longer exists.
func (d *DB) AdvanceVideo(ctx context.Context, adv store.VideoAdvance) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		sets := []string{"status = ?", "version = version + 1", "updated_at = ?"}
		args := []any{string(adv.ToStatus), utc(adv.At)}

		if adv.ErrorReason != nil {
			sets = append(sets, "error_reason = ?")
			args = append(args, *adv.ErrorReason)
		}
		if m := adv.Metadata; m != nil {
			sets = append(sets, "total_clips = ?", "video_duration = ?", "detected_language = ?", "s3_path = ?")
			args = append(args, m.TotalClips, nullString(m.VideoDuration), nullString(m.DetectedLanguage), nullString(m.S3Path))
		}
		if b := adv.Batch; b != nil {
			selection, err := json.Marshal(b.Selection)
			if err != nil {
				return fmt.Errorf("encode batch selection: %w", err)
			}
			sets = append(sets, "current_batch_id = ?", "batch_selection = ?", "batch_claimed_at = NULL")
			args = append(args, b.ID, string(selection))
		}
		if adv.ClaimBatch {
			sets = append(sets, "batch_claimed_at = ?")
			args = append(args, utc(adv.At))
		}
		args = append(args, adv.VideoID, string(adv.FromStatus), adv.FromVersion)

		res, err := d.exec(ctx, tx, `UPDATE videos SET `+strings.Join(sets, ", ")+`
			WHERE id = ? AND status = ? AND version = ?`, args...)
		if err != nil {
			return fmt.Errorf("advance video %s: %w", adv.VideoID, err)
		}
		if err := affectedOne(res, store.ErrStaleState); err != nil {
			if errors.Is(err, store.ErrStaleState) {
				return d.staleOrMissing(ctx, tx, "videos", adv.VideoID)
			}
			return err
		}

		for _, c := range adv.Clips {
			topics, err := json.Marshal(nonNil(c.RelatedTopics))
			if err != nil {
				return fmt.Errorf("encode related topics: %w", err)
			}
			if _, err := d.exec(ctx, tx, `INSERT INTO clips (`+clipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, adv.VideoID, c.Start, c.End, c.Title, c.Summary, c.ViralityScore,
				string(topics), c.Transcript, utc(c.CreatedAt)); err != nil {
				return fmt.Errorf("insert clip: %w", err)
			}
		}

		for _, e := range adv.Exported {
			if _, err := d.exec(ctx, tx, `INSERT INTO exported_clips (`+exportedColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, adv.VideoID, e.BatchID, e.Start, e.End, e.StorageKey, e.AspectRatio,
				nullString(e.TargetLanguage), utc(e.CreatedAt)); err != nil {
				return fmt.Errorf("insert exported clip: %w", err)
			}
		}
		return nil
	})
}

// staleOrMissing tells a lost conditional update apart from a deleted row.
func (d *DB) staleOrMissing(ctx context.Context, q queryer, table string, id uuid.UUID) error {
	var one int
	err := d.queryRow(ctx, q, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check %s %s: %w", table, id, err)
	}
	return store.ErrStaleState
}

// DeleteVideo removes a video owned by userID with its clips and exports.
func (d *DB) DeleteVideo(ctx context.Context, id uuid.UUID, userID string) error {
	res, err := d.exec(ctx, d.db, `DELETE FROM videos WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete video %s: %w", id, err)
	}
	return affectedOne(res, store.ErrNotFound)
}

// ListExportedClips returns the exports of a video owned by userID, newest first.
func (d *DB) ListExportedClips(ctx context.Context, videoID uuid.UUID, userID string) ([]models.ExportedClip, error) {
	var one int
	err := d.queryRow(ctx, d.db, `SELECT 1 FROM videos WHERE id = ? AND user_id = ?`, videoID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("check video %s: %w", videoID, err)
	}

	rows, err := d.query(ctx, d.db, `SELECT `+exportedColumns+` FROM exported_clips WHERE video_id = ?
		ORDER BY created_at DESC, id DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list exported clips of %s: %w", videoID, err)
	}
	defer rows.Close()

	out := []models.ExportedClip{}
	for rows.Next() {
		e, err := scanExported(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exported clip: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetExportedClip loads one export of a video owned by userID.
func (d *DB) GetExportedClip(ctx context.Context, videoID, clipID uuid.UUID, userID string) (*models.ExportedClip, error) {
	row := d.queryRow(ctx, d.db, `SELECT e.id, e.video_id, e.batch_id, e.start_offset, e.end_offset, e.storage_key,
			e.aspect_ratio, e.target_language, e.created_at
		FROM exported_clips e JOIN videos v ON v.id = e.video_id
		WHERE e.id = ? AND e.video_id = ? AND v.user_id = ?`, clipID, videoID, userID)
	e, err := scanExported(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load exported clip %s: %w", clipID, err)
	}
	return &e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
