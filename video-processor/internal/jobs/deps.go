package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/clipapi"
	"github.com/abhisek-1221/korai-sub001/internal/export"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
)

// Pipeline is the worker side of the orchestrator.
type Pipeline interface {
	ClaimIdentify(ctx context.Context, videoID uuid.UUID) error
	HandleIdentifyResult(ctx context.Context, res pipeline.IdentifyResult) error
	ClaimExport(ctx context.Context, videoID, batchID uuid.UUID) error
	HandleExportResult(ctx context.Context, res pipeline.ExportResult) error
	ClaimTranscription(ctx context.Context, id uuid.UUID) error
	HandleTranscriptionResult(ctx context.Context, res pipeline.TranscriptionResult) error
}

// Identifier finds candidate clips in a video.
type Identifier interface {
	Identify(ctx context.Context, req clipapi.IdentifyRequest) (*clipapi.IdentifyResponse, error)
}

// Transcriber produces speaker-labelled transcripts.
type Transcriber interface {
	Transcribe(ctx context.Context, req clipapi.TranscribeRequest) (*clipapi.TranscribeResponse, error)
}

// Putter stores objects.
type Putter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Deps are the collaborators shared by every job.
type Deps struct {
	Pipeline    Pipeline
	Identifier  Identifier
	Renderer    export.Renderer
	Transcriber Transcriber
	// Blobs receives export manifests. Optional.
	Blobs  Putter
	Logger logrus.FieldLogger

	// ReportRetries bounds how often a result is re-reported while the
	// gateway has not recorded the hand-off yet.
	ReportRetries int
	ReportBackoff time.Duration
	// ReportTimeout bounds result reporting after unrepeatable work.
	ReportTimeout time.Duration
}

// settle runs a pipeline call and interprets its outcome. applied is true
// when the call took effect. Duplicate deliveries, deleted targets and
// hand-offs that never show up settle the item without applying it; only
// unexpected errors are returned, so the item is redelivered.
func (d *Deps) settle(ctx context.Context, log logrus.FieldLogger, step string, fn func(context.Context) error) (applied bool, err error) {
	wait := d.ReportBackoff
	if wait <= 0 {
		wait = time.Second
	}
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, pipeline.ErrConflict):
			log.WithError(err).Infof("%s: already settled, skipping", step)
			return false, nil
		case errors.Is(err, pipeline.ErrNotFound):
			log.Infof("%s: target was deleted, discarding", step)
			return false, nil
		case errors.Is(err, pipeline.ErrNotReady):
			if attempt >= d.ReportRetries {
				log.Warnf("%s: hand-off never recorded after %d attempts, dropping", step, attempt+1)
				return false, nil
			}
			log.Debugf("%s: not ready, retrying in %s", step, wait)
			if !sleep(ctx, wait) {
				return false, ctx.Err()
			}
			wait *= 2
		default:
			return false, fmt.Errorf("%s: %w", step, err)
		}
	}
}

// detached returns a context that survives cancellation of ctx, for
// reporting the outcome of work that must not be repeated.
func (d *Deps) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.ReportTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
