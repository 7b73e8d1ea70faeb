package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abhisek-1221/korai-sub001/api-gateway/middleware"
	"github.com/abhisek-1221/korai-sub001/api-gateway/utils"
	"github.com/abhisek-1221/korai-sub001/internal/models"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
)

// ExportRequest defines the expected request body for exporting clips.
// TargetLanguage "none" or empty means no translation. Subtitles default to on.
type ExportRequest struct {
	Clips          []models.Range `json:"clips" validate:"required,min=1,dive"`
	AspectRatio    string         `json:"aspect_ratio" validate:"required,oneof=9:16 16:9 1:1"`
	TargetLanguage *string        `json:"target_language,omitempty"`
	Subtitles      *bool          `json:"subtitles,omitempty"`
}

// ExportClips godoc
// @Summary Render a selection of identified clips
// @Tags clips
// @Accept  json
// @Produce  json
// @Param   id path string true "Video ID"
// @Param   export body ExportRequest true "Selection to render"
// @Success 202 {object} pipeline.ExportBatch
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "An export is already running or the video failed"
// @Failure 429 {object} QuotaErrorResponse
// @Router /clips/videos/{id}/exports [post]
func (h *ApplicationHandler) ExportClips(c *fiber.Ctx) error {
	id, ok, err := parseID(c, "id")
	if !ok {
		return err
	}
	req := new(ExportRequest)
	if ok, err := parseBody(c, req); !ok {
		return err
	}

	in := pipeline.ExportInput{
		VideoID:     id,
		UserID:      middleware.UserID(c),
		Selection:   req.Clips,
		AspectRatio: req.AspectRatio,
		Subtitles:   true,
	}
	if req.TargetLanguage != nil {
		in.TargetLanguage = *req.TargetLanguage
	}
	if req.Subtitles != nil {
		in.Subtitles = *req.Subtitles
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	batch, err := h.Pipeline.ExportSelection(ctx, in)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithMessage(c, fiber.StatusAccepted, "Export started", batch)
}

// ListExportedClips returns a video's exported clips, newest first.
func (h *ApplicationHandler) ListExportedClips(c *fiber.Ctx) error {
	id, ok, err := parseID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	clips, err := h.Pipeline.ListExportedClips(ctx, id, middleware.UserID(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, clips)
}

// DownloadExportedClip returns a signed URL valid for one hour.
func (h *ApplicationHandler) DownloadExportedClip(c *fiber.Ctx) error {
	videoID, ok, err := parseID(c, "id")
	if !ok {
		return err
	}
	clipID, ok, err := parseID(c, "clipId")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	link, err := h.Pipeline.DownloadURL(ctx, videoID, clipID, middleware.UserID(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, link)
}
