package jobs

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/clipapi"
	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
)

// TranscribeJob produces the speaker-labelled transcript of a video.
type TranscribeJob struct {
	JobID string
	Item  pipeline.TranscribeWorkItem
	deps  *Deps
}

func (j *TranscribeJob) ID() string   { return j.JobID }
func (j *TranscribeJob) Type() string { return "TRANSCRIBE" }

func (j *TranscribeJob) Payload() interface{} { return j.Item }

func (j *TranscribeJob) Execute(ctx context.Context) error {
	log := j.deps.Logger.WithFields(logrus.Fields{"job_id": j.JobID, "transcription_id": j.Item.TranscriptionID})

	claimed, err := j.deps.settle(ctx, log, "claim transcription", func(ctx context.Context) error {
		return j.deps.Pipeline.ClaimTranscription(ctx, j.Item.TranscriptionID)
	})
	if err != nil || !claimed {
		return err
	}

	result := pipeline.TranscriptionResult{TranscriptionID: j.Item.TranscriptionID}
	resp, err := j.deps.Transcriber.Transcribe(ctx, clipapi.TranscribeRequest{YoutubeURL: j.Item.YoutubeURL})
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		log.WithError(err).Error("Transcription failed")
		result.Failure = err.Error()
	default:
		result.Segments = make([]models.TranscriptionSegment, 0, len(resp.Transcription))
		for _, s := range resp.Transcription {
			result.Segments = append(result.Segments, models.TranscriptionSegment{
				Start:   float64(s.Start),
				End:     float64(s.End),
				Text:    strings.TrimSpace(s.Text),
				Speaker: strings.TrimSpace(s.Speaker),
			})
		}
	}

	_, err = j.deps.settle(ctx, log, "report transcription", func(ctx context.Context) error {
		return j.deps.Pipeline.HandleTranscriptionResult(ctx, result)
	})
	return err
}
