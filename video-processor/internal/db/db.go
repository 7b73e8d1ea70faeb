// Package db keeps the job-run audit trail in the Supabase
// video_job_statuses table.
package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	postgrest "github.com/supabase-community/postgrest-go"

	"github.com/abhisek-1221/korai-sub001/video-processor/internal/worker"
)

// Job run statuses.
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

const jobStatusTable = "video_job_statuses"

// VideoJobStatus maps to the video_job_statuses table.
// Pointers are used for nullable columns; JSONB columns stay raw.
type VideoJobStatus struct {
	JobID         string          `json:"job_id"`
	MessageID     string          `json:"message_id"`
	JobType       string          `json:"job_type"`
	Status        string          `json:"status"`
	InputPayload  json.RawMessage `json:"input_payload,omitempty"`
	OutputDetails json.RawMessage `json:"output_details,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
	UpdatedAt     *time.Time      `json:"updated_at,omitempty"`
}

// Recorder writes one row per job run.
type Recorder struct {
	client *postgrest.Client
	log    logrus.FieldLogger
	now    func() time.Time
}

var _ worker.Recorder = (*Recorder)(nil)

// NewRecorder creates a recorder over client.
func NewRecorder(client *postgrest.Client, log logrus.FieldLogger) *Recorder {
	return &Recorder{client: client, log: log, now: time.Now}
}

// Pending creates the run record and returns its id.
func (r *Recorder) Pending(ctx context.Context, job worker.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec := VideoJobStatus{
		JobID:     uuid.NewString(),
		MessageID: job.ID(),
		JobType:   job.Type(),
		Status:    StatusPending,
	}
	if p, ok := job.(worker.Payloader); ok {
		payload, err := json.Marshal(p.Payload())
		if err != nil {
			return "", fmt.Errorf("failed to marshal input payload: %w", err)
		}
		rec.InputPayload = payload
	}

	var results []VideoJobStatus
	// return=representation makes PostgREST echo the inserted row.
	_, err := r.client.From(jobStatusTable).Insert(rec, false, "", "representation", "").ExecuteTo(&results)
	if err != nil {
		return "", fmt.Errorf("failed to insert job record: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("no record returned after insert, job_id: %s", rec.JobID)
	}

	r.log.WithFields(logrus.Fields{"job_id": rec.JobID, "job_type": rec.JobType}).Debug("Created job record")
	return rec.JobID, nil
}

// Processing marks the run as started.
func (r *Recorder) Processing(ctx context.Context, recordID string) error {
	return r.update(ctx, recordID, map[string]interface{}{"status": StatusProcessing})
}

// Finished records the run outcome. A non-nil jobErr marks it failed.
func (r *Recorder) Finished(ctx context.Context, recordID string, jobErr error) error {
	fields := map[string]interface{}{"status": StatusCompleted}
	if jobErr != nil {
		fields["status"] = StatusFailed
		fields["error_message"] = jobErr.Error()
		if errors.Is(jobErr, context.Canceled) {
			fields["output_details"] = json.RawMessage(`{"interrupted":true}`)
		}
	}
	return r.update(ctx, recordID, fields)
}

func (r *Recorder) update(ctx context.Context, recordID string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields["updated_at"] = r.now().UTC()

	_, _, err := r.client.From(jobStatusTable).Update(fields, "minimal", "").Eq("job_id", recordID).Execute()
	if err != nil {
		return fmt.Errorf("failed to update job record %s: %w", recordID, err)
	}
	r.log.WithFields(logrus.Fields{"job_id": recordID, "status": fields["status"]}).Debug("Updated job record")
	return nil
}
