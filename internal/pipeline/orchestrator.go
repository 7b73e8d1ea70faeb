// Package pipeline drives videos and transcriptions through their
// lifecycles. Every transition is a conditional update on (id, status,
// version), so concurrent gateways and duplicate worker deliveries can never
// move an entity backwards or apply a result twice.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/queue"
	"github.com/abhisek-1221/korai-sub001/internal/quota"
	"github.com/abhisek-1221/korai-sub001/internal/store"
)

// maxReasonLength bounds persisted failure reasons.
const maxReasonLength = 1000

// VideoStore persists videos, clips and exported clips.
type VideoStore interface {
	CreateVideo(ctx context.Context, v *models.Video) error
	GetVideo(ctx context.Context, id uuid.UUID, userID string) (*models.Video, error)
	GetVideoByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	ListVideos(ctx context.Context, userID string) ([]models.Video, error)
	ListClips(ctx context.Context, videoID uuid.UUID) ([]models.Clip, error)
	AdvanceVideo(ctx context.Context, adv store.VideoAdvance) error
	DeleteVideo(ctx context.Context, id uuid.UUID, userID string) error
	ListExportedClips(ctx context.Context, videoID uuid.UUID, userID string) ([]models.ExportedClip, error)
	GetExportedClip(ctx context.Context, videoID, clipID uuid.UUID, userID string) (*models.ExportedClip, error)
}

// TranscriptionStore persists transcriptions and their segments.
type TranscriptionStore interface {
	CreateTranscription(ctx context.Context, t *models.Transcription) error
	GetTranscription(ctx context.Context, id uuid.UUID, userID string) (*models.Transcription, error)
	GetTranscriptionByID(ctx context.Context, id uuid.UUID) (*models.Transcription, error)
	ListTranscriptions(ctx context.Context, userID string) ([]models.Transcription, error)
	AdvanceTranscription(ctx context.Context, adv store.TranscriptionAdvance) error
}

// Admitter consumes quota for a call.
type Admitter interface {
	Admit(ctx context.Context, userID string, class quota.Class) (quota.Decision, error)
}

// URLSigner issues time-limited download URLs.
type URLSigner interface {
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Options are the orchestrator's collaborators. Admission, Jobs and Blobs
// may be nil on the worker side, which only handles results.
type Options struct {
	Videos         VideoStore
	Transcriptions TranscriptionStore
	Admission      Admitter
	Jobs           queue.Sender
	Blobs          URLSigner
	Logger         logrus.FieldLogger
	Now            func() time.Time
	NewID          func() uuid.UUID
}

// Orchestrator implements the pipeline operations.
type Orchestrator struct {
	videos         VideoStore
	transcriptions TranscriptionStore
	admission      Admitter
	jobs           queue.Sender
	blobs          URLSigner
	log            logrus.FieldLogger
	now            func() time.Time
	newID          func() uuid.UUID
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		videos:         opts.Videos,
		transcriptions: opts.Transcriptions,
		admission:      opts.Admission,
		jobs:           opts.Jobs,
		blobs:          opts.Blobs,
		log:            opts.Logger,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.New
	}
	return o
}

// SourceKey is the blob key the source video of id is uploaded to.
func SourceKey(id uuid.UUID) string {
	return "youtube-videos/" + id.String() + "/yt"
}

func (o *Orchestrator) admit(ctx context.Context, userID string, class quota.Class) error {
	if o.admission == nil {
		return errors.New("pipeline: no admission controller configured")
	}
	_, err := o.admission.Admit(ctx, userID, class)
	return err
}

func (o *Orchestrator) send(ctx context.Context, event string, payload any) error {
	if o.jobs == nil {
		return fmt.Errorf("%w: no job substrate configured", ErrDispatch)
	}
	if err := o.jobs.Send(ctx, event, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrDispatch, err)
	}
	return nil
}

// plan runs Step for v and builds the conditional update it implies.
func (o *Orchestrator) plan(v *models.Video, msg Message) (store.VideoAdvance, []Effect, error) {
	to, effects, err := Step(stateOf(v), msg)
	if err != nil {
		return store.VideoAdvance{}, nil, err
	}

	now := o.now().UTC()
	adv := store.VideoAdvance{
		VideoID:     v.ID,
		FromStatus:  v.Status,
		FromVersion: v.Version,
		ToStatus:    to,
		At:          now,
	}
	for _, e := range effects {
		switch e := e.(type) {
		case PersistClips:
			adv.Clips = make([]models.Clip, len(e.Clips))
			for i, c := range e.Clips {
				c.ID = o.newID()
				c.VideoID = v.ID
				c.CreatedAt = now
				if c.RelatedTopics == nil {
					c.RelatedTopics = []string{}
				}
				adv.Clips[i] = c
			}
			meta := e.Metadata
			meta.TotalClips = len(adv.Clips)
			adv.Metadata = &meta
		case PersistExports:
			adv.Exported = make([]models.ExportedClip, len(e.Artifacts))
			for i, a := range e.Artifacts {
				adv.Exported[i] = models.ExportedClip{
					ID:             o.newID(),
					VideoID:        v.ID,
					BatchID:        e.BatchID,
					Start:          a.Start,
					End:            a.End,
					StorageKey:     a.StorageKey,
					AspectRatio:    string(a.AspectRatio),
					TargetLanguage: a.TargetLanguage,
					CreatedAt:      now,
				}
			}
		case RecordFailure:
			reason := truncate(e.Reason, maxReasonLength)
			if reason == "" {
				reason = "unknown failure"
			}
			adv.ErrorReason = &reason
		case OpenBatch:
			adv.Batch = &store.Batch{ID: e.BatchID, Selection: e.Selection}
		case ClaimBatch:
			adv.ClaimBatch = true
		case DispatchExport:
			// Sent by ExportSelection before the update commits.
		}
	}
	return adv, effects, nil
}

// commit applies adv and returns v as it is after the transition.
func (o *Orchestrator) commit(ctx context.Context, v *models.Video, adv store.VideoAdvance) (*models.Video, error) {
	if err := o.videos.AdvanceVideo(ctx, adv); err != nil {
		return nil, storeErr(err)
	}
	next := *v
	next.Status = adv.ToStatus
	next.Version = v.Version + 1
	next.UpdatedAt = adv.At
	if adv.ErrorReason != nil {
		next.ErrorReason = adv.ErrorReason
	}
	if adv.Metadata != nil {
		next.TotalClips = adv.Metadata.TotalClips
		next.VideoDuration = adv.Metadata.VideoDuration
		next.DetectedLanguage = adv.Metadata.DetectedLanguage
		next.S3Path = adv.Metadata.S3Path
	}
	if adv.Batch != nil {
		id := adv.Batch.ID
		next.CurrentBatchID = &id
		next.BatchSelection = adv.Batch.Selection
		next.BatchClaimedAt = nil
	}
	if adv.ClaimBatch {
		at := adv.At
		next.BatchClaimedAt = &at
	}
	if adv.Clips != nil {
		next.Clips = adv.Clips
	}
	return &next, nil
}

// advance plans and commits msg for v.
func (o *Orchestrator) advance(ctx context.Context, v *models.Video, msg Message) (*models.Video, error) {
	adv, _, err := o.plan(v, msg)
	if err != nil {
		return nil, err
	}
	return o.commit(ctx, v, adv)
}

func (o *Orchestrator) loadVideo(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	v, err := o.videos.GetVideoByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	return v, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
