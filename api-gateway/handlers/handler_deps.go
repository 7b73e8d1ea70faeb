package handlers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
	"github.com/abhisek-1221/korai-sub001/internal/quota"
)

var validate = validator.New()

// Pipeline is the set of orchestrator operations the handlers expose.
type Pipeline interface {
	Submit(ctx context.Context, in pipeline.SubmitInput) (*models.Video, error)
	ListVideos(ctx context.Context, userID string) ([]models.Video, error)
	GetVideo(ctx context.Context, videoID uuid.UUID, userID string) (*models.Video, error)
	Delete(ctx context.Context, videoID uuid.UUID, userID string) error
	ExportSelection(ctx context.Context, in pipeline.ExportInput) (*pipeline.ExportBatch, error)
	ListExportedClips(ctx context.Context, videoID uuid.UUID, userID string) ([]models.ExportedClip, error)
	DownloadURL(ctx context.Context, videoID, clipID uuid.UUID, userID string) (*pipeline.DownloadLink, error)
	SubmitTranscription(ctx context.Context, userID, youtubeURL string) (*models.Transcription, error)
	ListTranscriptions(ctx context.Context, userID string) ([]models.Transcription, error)
	GetTranscription(ctx context.Context, id uuid.UUID, userID string) (*models.Transcription, error)
}

// SpeakerService persists speaker display names.
type SpeakerService interface {
	ApplyMappings(ctx context.Context, transcriptionID uuid.UUID, userID string, mapping map[string]string) (int64, error)
}

// UsageReader reports quota usage without consuming it.
type UsageReader interface {
	Usage(ctx context.Context, userID string) (map[quota.Class]quota.Usage, error)
}

// ApplicationHandler holds shared dependencies for handlers.
type ApplicationHandler struct {
	Pipeline       Pipeline
	Speakers       SpeakerService
	Usage          UsageReader
	Logger         logrus.FieldLogger
	RequestTimeout time.Duration
}

// NewApplicationHandler creates a new ApplicationHandler with the given dependencies.
func NewApplicationHandler(p Pipeline, speakers SpeakerService, usage UsageReader, logger logrus.FieldLogger, timeout time.Duration) *ApplicationHandler {
	return &ApplicationHandler{
		Pipeline:       p,
		Speakers:       speakers,
		Usage:          usage,
		Logger:         logger,
		RequestTimeout: timeout,
	}
}

// requestContext bounds the backend calls of one request.
func (h *ApplicationHandler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.UserContext()
	if h.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.RequestTimeout)
}
