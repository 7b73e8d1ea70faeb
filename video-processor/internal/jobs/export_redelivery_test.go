package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek-1221/korai-sub001/internal/admission"
	"github.com/abhisek-1221/korai-sub001/internal/blob"
	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
	"github.com/abhisek-1221/korai-sub001/internal/quota"
	"github.com/abhisek-1221/korai-sub001/internal/queue"
	"github.com/abhisek-1221/korai-sub001/internal/store/sqlstore"
)

// streamSender keeps what the gateway enqueued so the test can deliver it.
type streamSender struct {
	mu   sync.Mutex
	sent []queue.Message
}

func (s *streamSender) Send(_ context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, queue.Message{ID: "1-0", Event: event, Payload: raw})
	return nil
}

func (s *streamSender) last(t *testing.T, event string) queue.Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].Event == event {
			return s.sent[i]
		}
	}
	t.Fatalf("no %s item sent", event)
	return queue.Message{}
}

// droppingReports loses the first export report, as a dropped database
// connection would after the row was never written.
type droppingReports struct {
	*pipeline.Orchestrator
	mu      sync.Mutex
	dropped bool
}

func (p *droppingReports) HandleExportResult(ctx context.Context, res pipeline.ExportResult) error {
	p.mu.Lock()
	drop := !p.dropped
	p.dropped = true
	p.mu.Unlock()
	if drop {
		return errors.New("connection reset")
	}
	return p.Orchestrator.HandleExportResult(ctx, res)
}

func TestExportRedeliveryNeverRendersTwice(t *testing.T) {
	ctx := context.Background()
	log, _ := test.NewNullLogger()

	db, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "jobs.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sender := &streamSender{}
	orch := pipeline.New(pipeline.Options{
		Videos:         db,
		Transcriptions: db,
		Admission:      admission.NewController(quota.NewLedger(db.Quota(), nil), log),
		Jobs:           sender,
		Blobs:          blob.NewMemoryStore("https://blobs.test"),
		Logger:         log,
	})

	renderer := &fakeRenderer{}
	factory := NewFactory(&Deps{
		Pipeline:      &droppingReports{Orchestrator: orch},
		Identifier:    &fakeIdentifier{},
		Renderer:      renderer,
		Transcriber:   &fakeTranscriber{},
		Logger:        log,
		ReportRetries: 2,
		ReportBackoff: time.Millisecond,
	})

	v, err := orch.Submit(ctx, pipeline.SubmitInput{UserID: "u1", YoutubeURL: "https://youtu.be/abc123"})
	require.NoError(t, err)
	require.NoError(t, orch.HandleIdentifyResult(ctx, pipeline.IdentifyResult{VideoID: v.ID, Clips: []models.Clip{
		{Start: 10, End: 40, Title: "Hook", ViralityScore: 0.9},
	}}))
	_, err = orch.ExportSelection(ctx, pipeline.ExportInput{
		VideoID: v.ID, UserID: "u1", Selection: []models.Range{{Start: 10, End: 40}}, AspectRatio: "9:16",
	})
	require.NoError(t, err)
	msg := sender.last(t, pipeline.EventProcessClips)

	first, err := factory.Build(msg)
	require.NoError(t, err)
	assert.ErrorContains(t, first.Execute(ctx), "connection reset", "unreported batch is redelivered")

	again, err := factory.Build(msg)
	require.NoError(t, err)
	require.NoError(t, again.Execute(ctx))

	assert.Equal(t, 1, renderer.calls)
	got, err := orch.GetVideo(ctx, v.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, got.Status)
	require.NotNil(t, got.ErrorReason)
	assert.Equal(t, pipeline.ReasonRenderInterrupted, *got.ErrorReason)

	exported, err := orch.ListExportedClips(ctx, v.ID, "u1")
	require.NoError(t, err)
	assert.Empty(t, exported)
}
