package jobs

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/clipapi"
	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
	"github.com/abhisek-1221/korai-sub001/internal/store"
)

// IdentifyClipsJob finds candidate clips for a submitted video.
type IdentifyClipsJob struct {
	JobID string
	Item  pipeline.IdentifyWorkItem
	deps  *Deps
}

func (j *IdentifyClipsJob) ID() string   { return j.JobID }
func (j *IdentifyClipsJob) Type() string { return "IDENTIFY_CLIPS" }

func (j *IdentifyClipsJob) Payload() interface{} { return j.Item }

// Execute claims the video, calls the identification service and reports
// the clips, or the failure, to the pipeline.
func (j *IdentifyClipsJob) Execute(ctx context.Context) error {
	log := j.deps.Logger.WithFields(logrus.Fields{"job_id": j.JobID, "video_id": j.Item.VideoID})

	claimed, err := j.deps.settle(ctx, log, "claim identification", func(ctx context.Context) error {
		return j.deps.Pipeline.ClaimIdentify(ctx, j.Item.VideoID)
	})
	if err != nil || !claimed {
		return err
	}

	result := pipeline.IdentifyResult{VideoID: j.Item.VideoID}
	resp, err := j.deps.Identifier.Identify(ctx, clipapi.IdentifyRequest{
		YoutubeURL: j.Item.YoutubeURL,
		S3KeyYT:    j.Item.SourceKey,
		Prompt:     j.Item.Prompt,
	})
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		log.WithError(err).Error("Identification failed")
		result.Failure = err.Error()
	default:
		result.Clips, result.Metadata = identified(resp)
	}

	_, err = j.deps.settle(ctx, log, "report identification", func(ctx context.Context) error {
		return j.deps.Pipeline.HandleIdentifyResult(ctx, result)
	})
	return err
}

func identified(resp *clipapi.IdentifyResponse) ([]models.Clip, store.VideoMetadata) {
	clips := make([]models.Clip, 0, len(resp.IdentifiedClips))
	for _, c := range resp.IdentifiedClips {
		topics := c.RelatedTopics
		if topics == nil {
			topics = []string{}
		}
		clips = append(clips, models.Clip{
			Start:         float64(c.Start),
			End:           float64(c.End),
			Title:         strings.TrimSpace(c.Title),
			Summary:       c.Summary,
			ViralityScore: float64(c.ViralityScore),
			RelatedTopics: topics,
			Transcript:    c.Transcript,
		})
	}
	meta := store.VideoMetadata{
		VideoDuration:    strPtr(string(resp.VideoDuration)),
		DetectedLanguage: strPtr(string(resp.DetectedLanguage)),
		S3Path:           strPtr(string(resp.S3Path)),
	}
	return clips, meta
}
