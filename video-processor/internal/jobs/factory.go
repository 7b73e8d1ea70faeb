package jobs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
	"github.com/abhisek-1221/korai-sub001/internal/queue"
	"github.com/abhisek-1221/korai-sub001/video-processor/internal/worker"
)

// ErrUnknownEvent is returned for messages no job handles.
var ErrUnknownEvent = errors.New("jobs: unknown event")

// Factory builds jobs from work items.
type Factory struct {
	deps *Deps
}

// NewFactory creates a factory whose jobs share deps.
func NewFactory(deps *Deps) *Factory {
	return &Factory{deps: deps}
}

var _ worker.Factory = (*Factory)(nil)

// Build implements worker.Factory.
func (f *Factory) Build(msg queue.Message) (worker.Job, error) {
	switch msg.Event {
	case pipeline.EventIdentifyClips:
		var item pipeline.IdentifyWorkItem
		if err := decode(msg, &item); err != nil {
			return nil, err
		}
		if item.VideoID == uuid.Nil {
			return nil, fmt.Errorf("%s: missing video_id", msg.Event)
		}
		return &IdentifyClipsJob{JobID: msg.ID, Item: item, deps: f.deps}, nil

	case pipeline.EventProcessClips:
		var item pipeline.ExportWorkItem
		if err := decode(msg, &item); err != nil {
			return nil, err
		}
		if item.VideoID == uuid.Nil || item.BatchID == uuid.Nil {
			return nil, fmt.Errorf("%s: missing video_id or batch_id", msg.Event)
		}
		return &ExportClipsJob{JobID: msg.ID, Item: item, deps: f.deps}, nil

	case pipeline.EventTranscribe:
		var item pipeline.TranscribeWorkItem
		if err := decode(msg, &item); err != nil {
			return nil, err
		}
		if item.TranscriptionID == uuid.Nil {
			return nil, fmt.Errorf("%s: missing transcription_id", msg.Event)
		}
		return &TranscribeJob{JobID: msg.ID, Item: item, deps: f.deps}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
}

func decode(msg queue.Message, v any) error {
	if err := msg.Decode(v); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.Event, err)
	}
	return nil
}
