package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/export"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
)

// ExportClipsJob renders one export batch. The batch is claimed before the
// render call, so it is rendered at most once however often the item is
// delivered; a delivery that finds the batch already claimed reports it as
// interrupted.
type ExportClipsJob struct {
	JobID string
	Item  pipeline.ExportWorkItem
	deps  *Deps
}

func (j *ExportClipsJob) ID() string   { return j.JobID }
func (j *ExportClipsJob) Type() string { return "PROCESS_CLIPS" }

func (j *ExportClipsJob) Payload() interface{} { return j.Item }

// manifest records what a completed batch produced.
type manifest struct {
	VideoID     string            `json:"video_id"`
	BatchID     string            `json:"batch_id"`
	AspectRatio string            `json:"aspect_ratio"`
	Language    *string           `json:"target_language"`
	Artifacts   []export.Artifact `json:"artifacts"`
	CompletedAt time.Time         `json:"completed_at"`
}

// ManifestKey is where the manifest of a completed batch is stored.
func ManifestKey(item pipeline.ExportWorkItem) string {
	return fmt.Sprintf("exports/%s/%s/manifest.json", item.VideoID, item.BatchID)
}

func (j *ExportClipsJob) Execute(ctx context.Context) error {
	log := j.deps.Logger.WithFields(logrus.Fields{"job_id": j.JobID, "video_id": j.Item.VideoID, "batch_id": j.Item.BatchID})

	result := pipeline.ExportResult{VideoID: j.Item.VideoID, BatchID: j.Item.BatchID}
	claimed, err := j.deps.settle(ctx, log, "claim export batch", func(ctx context.Context) error {
		return j.deps.Pipeline.ClaimExport(ctx, j.Item.VideoID, j.Item.BatchID)
	})
	var artifacts []export.Artifact
	switch {
	case errors.Is(err, pipeline.ErrRenderClaimed):
		log.Warn("Batch was claimed by an earlier delivery, reporting it interrupted")
		result.Failure = pipeline.ReasonRenderInterrupted
	case err != nil || !claimed:
		return err
	default:
		artifacts, err = j.deps.Renderer.Render(ctx, j.Item.Request())
		switch {
		case err == nil:
			result.Artifacts = artifacts
		case ctx.Err() != nil:
			log.WithError(err).Warn("Rendering interrupted by shutdown")
			result.Failure = pipeline.ReasonRenderInterrupted
		default:
			log.WithError(err).Error("Rendering failed")
			result.Failure = err.Error()
		}
	}

	rctx, cancel := j.deps.detached(ctx)
	defer cancel()
	applied, err := j.deps.settle(rctx, log, "report export", func(ctx context.Context) error {
		return j.deps.Pipeline.HandleExportResult(ctx, result)
	})
	if err != nil {
		return err
	}
	if applied && result.Failure == "" {
		j.storeManifest(rctx, log, artifacts)
	}
	return nil
}

func (j *ExportClipsJob) storeManifest(ctx context.Context, log logrus.FieldLogger, artifacts []export.Artifact) {
	if j.deps.Blobs == nil {
		return
	}
	data, err := json.Marshal(manifest{
		VideoID:     j.Item.VideoID.String(),
		BatchID:     j.Item.BatchID.String(),
		AspectRatio: j.Item.AspectRatio,
		Language:    j.Item.TargetLanguage,
		Artifacts:   artifacts,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).Warn("Failed to encode export manifest")
		return
	}
	if err := j.deps.Blobs.Put(ctx, ManifestKey(j.Item), data, "application/json"); err != nil {
		log.WithError(err).Warn("Failed to store export manifest")
	}
}
