package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/blob"
	"github.com/abhisek-1221/korai-sub001/internal/export"
	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/quota"
	"github.com/abhisek-1221/korai-sub001/internal/ranking"
	"github.com/abhisek-1221/korai-sub001/internal/youtube"
)

// maxPromptLength bounds the free-text identification prompt.
const maxPromptLength = 2000

// SubmitInput is a new video submission.
type SubmitInput struct {
	UserID     string
	YoutubeURL string
	Prompt     string
}

// Submit validates and admits a video, records it, and hands it to the
// identify worker. If the hand-off cannot be enqueued the video stays
// submitted and ErrDispatch is returned together with it.
func (o *Orchestrator) Submit(ctx context.Context, in SubmitInput) (*models.Video, error) {
	url := strings.TrimSpace(in.YoutubeURL)
	if err := youtube.Validate(url); err != nil {
		return nil, invalid(err)
	}
	prompt := strings.TrimSpace(in.Prompt)
	if len([]rune(prompt)) > maxPromptLength {
		return nil, invalidf("prompt exceeds %d characters", maxPromptLength)
	}
	if err := o.admit(ctx, in.UserID, quota.ClassIdentify); err != nil {
		return nil, err
	}

	now := o.now().UTC()
	id := o.newID()
	v := &models.Video{
		ID:         id,
		UserID:     in.UserID,
		YoutubeURL: url,
		Prompt:     prompt,
		SourceKey:  SourceKey(id),
		Status:     models.VideoStatusSubmitted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.videos.CreateVideo(ctx, v); err != nil {
		return nil, fmt.Errorf("create video: %w", err)
	}
	log := o.log.WithFields(logrus.Fields{"video_id": v.ID, "user_id": v.UserID})

	item := IdentifyWorkItem{VideoID: v.ID, UserID: v.UserID, YoutubeURL: v.YoutubeURL, SourceKey: v.SourceKey, Prompt: v.Prompt}
	if err := o.send(ctx, EventIdentifyClips, item); err != nil {
		log.WithError(err).Error("Failed to enqueue identification, video left submitted")
		return v, err
	}

	next, err := o.advance(ctx, v, HandedOff{})
	if err != nil {
		// The worker claims the hand-off itself when it picks the item up.
		log.WithError(err).Warn("Could not record identification hand-off")
		return v, nil
	}
	log.Info("Video submitted for identification")
	return next, nil
}

// ClaimIdentify is called by the identify worker before it starts. It
// records the hand-off if the gateway has not yet done so. It returns nil
// when the video awaits identification, ErrConflict when it has moved past
// it (a duplicate delivery) and ErrNotFound when the video was deleted.
func (o *Orchestrator) ClaimIdentify(ctx context.Context, videoID uuid.UUID) error {
	for attempt := 0; attempt < 2; attempt++ {
		v, err := o.loadVideo(ctx, videoID)
		if err != nil {
			return err
		}
		switch v.Status {
		case models.VideoStatusIdentifying:
			return nil
		case models.VideoStatusSubmitted:
			if _, err := o.advance(ctx, v, HandedOff{}); err == nil || !errors.Is(err, ErrConflict) {
				return err
			}
			// Lost the race with the gateway; re-read.
		default:
			return fmt.Errorf("%w: video is %s", ErrConflict, v.Status)
		}
	}
	return ErrConflict
}

// HandleIdentifyResult applies an identification result. Clips with
// unusable offsets are dropped; the remaining candidate set is persisted
// atomically with the transition to identified.
func (o *Orchestrator) HandleIdentifyResult(ctx context.Context, res IdentifyResult) error {
	v, err := o.loadVideo(ctx, res.VideoID)
	if err != nil {
		return err
	}
	log := o.log.WithField("video_id", v.ID)

	var msg Message
	if res.Failure != "" {
		msg = IdentifyFailed{Reason: res.Failure}
	} else {
		clips := make([]models.Clip, 0, len(res.Clips))
		for _, c := range res.Clips {
			if !export.ValidRange(c.Range()) {
				log.WithFields(logrus.Fields{"start": c.Start, "end": c.End}).Warn("Dropping identified clip with invalid range")
				continue
			}
			clips = append(clips, c)
		}
		msg = IdentifySucceeded{Clips: clips, Metadata: res.Metadata}
	}

	next, err := o.advance(ctx, v, msg)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"status": next.Status, "total_clips": next.TotalClips}).Info("Identification result applied")
	return nil
}

// ExportInput is an export request for a set of ranges of one video.
type ExportInput struct {
	VideoID        uuid.UUID
	UserID         string
	Selection      []models.Range
	AspectRatio    string
	TargetLanguage string
	Subtitles      bool
}

// ExportBatch describes an accepted export.
type ExportBatch struct {
	VideoID uuid.UUID          `json:"video_id"`
	BatchID uuid.UUID          `json:"batch_id"`
	Status  models.VideoStatus `json:"status"`
	Clips   int                `json:"clips"`
}

// ExportSelection validates a selection against the video's clips, admits
// it, enqueues the render and records the open batch. Validation happens
// before any state change or dispatch.
func (o *Orchestrator) ExportSelection(ctx context.Context, in ExportInput) (*ExportBatch, error) {
	ratio, err := export.ParseAspectRatio(in.AspectRatio)
	if err != nil {
		return nil, invalid(err)
	}
	lang, err := export.NormalizeLanguage(in.TargetLanguage)
	if err != nil {
		return nil, invalid(err)
	}
	if len(in.Selection) == 0 {
		return nil, invalid(ranking.ErrEmptySelection)
	}

	v, err := o.videos.GetVideo(ctx, in.VideoID, in.UserID)
	if err != nil {
		return nil, storeErr(err)
	}
	clips, err := o.videos.ListClips(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("load clips: %w", err)
	}
	if err := ranking.ValidateSelection(clips, in.Selection); err != nil {
		return nil, invalid(err)
	}

	batchID := o.newID()
	msg := ExportRequested{BatchID: batchID, Selection: in.Selection}
	adv, _, err := o.plan(v, msg)
	if err != nil {
		return nil, err
	}

	if err := o.admit(ctx, in.UserID, quota.ClassExport); err != nil {
		return nil, err
	}

	log := o.log.WithFields(logrus.Fields{"video_id": v.ID, "user_id": in.UserID, "batch_id": batchID})
	item := ExportWorkItem{
		VideoID:        v.ID,
		BatchID:        batchID,
		UserID:         in.UserID,
		YoutubeURL:     v.YoutubeURL,
		SourceKey:      v.SourceKey,
		Selection:      in.Selection,
		AspectRatio:    string(ratio),
		TargetLanguage: lang,
		Subtitles:      in.Subtitles,
	}
	if err := o.send(ctx, EventProcessClips, item); err != nil {
		log.WithError(err).Error("Failed to enqueue export")
		return nil, err
	}

	next, err := o.commit(ctx, v, adv)
	if err != nil {
		// The enqueued item finds a batch it does not own and is dropped.
		log.WithError(err).Warn("Export batch lost to a concurrent transition")
		return nil, err
	}
	log.WithField("clips", len(in.Selection)).Info("Export batch opened")
	return &ExportBatch{VideoID: v.ID, BatchID: batchID, Status: next.Status, Clips: len(in.Selection)}, nil
}

// ClaimExport is called by the export worker before rendering. It records
// that the batch's render has started, so a redelivered item is never
// rendered twice. It returns ErrRenderClaimed when an earlier delivery
// already claimed the batch, ErrNotReady when the gateway may still be
// recording it, ErrConflict when the batch is done or superseded (or another
// delivery claimed it concurrently) and ErrNotFound when the video was
// deleted.
func (o *Orchestrator) ClaimExport(ctx context.Context, videoID, batchID uuid.UUID) error {
	v, err := o.loadVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if _, err := o.advance(ctx, v, ExportClaimed{BatchID: batchID}); err != nil {
		return err
	}
	o.log.WithFields(logrus.Fields{"video_id": v.ID, "batch_id": batchID}).Debug("Export batch claimed")
	return nil
}

// HandleExportResult applies a render result. On success one exported clip
// row per artifact is persisted atomically with the transition to
// completed; on failure no row is written.
func (o *Orchestrator) HandleExportResult(ctx context.Context, res ExportResult) error {
	v, err := o.loadVideo(ctx, res.VideoID)
	if err != nil {
		return err
	}

	var msg Message = ExportSucceeded{BatchID: res.BatchID, Artifacts: res.Artifacts}
	if res.Failure != "" {
		msg = ExportFailed{BatchID: res.BatchID, Reason: res.Failure}
	}
	next, err := o.advance(ctx, v, msg)
	if err != nil {
		return err
	}

	entry := o.log.WithFields(logrus.Fields{"video_id": v.ID, "batch_id": res.BatchID, "status": next.Status})
	if next.Status == models.VideoStatusFailed && next.ErrorReason != nil {
		entry.WithField("error_reason", *next.ErrorReason).Warn("Export batch failed")
		return nil
	}
	entry.WithField("artifacts", len(res.Artifacts)).Info("Export batch completed")
	return nil
}

// Delete removes a video with its clips and exports. Results arriving for
// it later find nothing and are discarded. Stored artifacts are left in the
// blob store.
func (o *Orchestrator) Delete(ctx context.Context, videoID uuid.UUID, userID string) error {
	if err := o.videos.DeleteVideo(ctx, videoID, userID); err != nil {
		return storeErr(err)
	}
	o.log.WithFields(logrus.Fields{"video_id": videoID, "user_id": userID}).Info("Video deleted")
	return nil
}

// ListVideos returns the caller's videos, newest first.
func (o *Orchestrator) ListVideos(ctx context.Context, userID string) ([]models.Video, error) {
	return o.videos.ListVideos(ctx, userID)
}

// GetVideo returns a video with its candidate clips ranked.
func (o *Orchestrator) GetVideo(ctx context.Context, videoID uuid.UUID, userID string) (*models.Video, error) {
	v, err := o.videos.GetVideo(ctx, videoID, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	clips, err := o.videos.ListClips(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("load clips: %w", err)
	}
	v.Clips = ranking.Rank(clips)
	return v, nil
}

// ListExportedClips returns the exports of a video, newest first.
func (o *Orchestrator) ListExportedClips(ctx context.Context, videoID uuid.UUID, userID string) ([]models.ExportedClip, error) {
	clips, err := o.videos.ListExportedClips(ctx, videoID, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return clips, nil
}

// DownloadLink is a signed, expiring URL for an exported clip.
type DownloadLink struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// DownloadURL signs a GET URL for an exported clip owned by userID.
func (o *Orchestrator) DownloadURL(ctx context.Context, videoID, clipID uuid.UUID, userID string) (*DownloadLink, error) {
	clip, err := o.videos.GetExportedClip(ctx, videoID, clipID, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if o.blobs == nil {
		return nil, errors.New("pipeline: no blob store configured")
	}
	url, err := o.blobs.SignedURL(ctx, clip.StorageKey, blob.DownloadTTL)
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", clip.StorageKey, err)
	}
	return &DownloadLink{URL: url, ExpiresIn: int(blob.DownloadTTL.Seconds())}, nil
}
