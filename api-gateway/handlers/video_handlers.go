package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abhisek-1221/korai-sub001/api-gateway/middleware"
	"github.com/abhisek-1221/korai-sub001/api-gateway/utils"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
)

// SubmitVideoRequest defines the expected request body for submitting a video.
type SubmitVideoRequest struct {
	YoutubeURL string `json:"youtube_url" validate:"required"`
	Prompt     string `json:"prompt" validate:"max=2000"`
}

// SubmitVideo godoc
// @Summary Submit a YouTube video for clip identification
// @Tags clips
// @Accept  json
// @Produce  json
// @Param   video body SubmitVideoRequest true "Video to process"
// @Success 202 {object} models.Video
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} QuotaErrorResponse
// @Router /clips/videos [post]
func (h *ApplicationHandler) SubmitVideo(c *fiber.Ctx) error {
	req := new(SubmitVideoRequest)
	if ok, err := parseBody(c, req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	video, err := h.Pipeline.Submit(ctx, pipeline.SubmitInput{
		UserID:     middleware.UserID(c),
		YoutubeURL: req.YoutubeURL,
		Prompt:     req.Prompt,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithMessage(c, fiber.StatusAccepted, "Video submitted for processing", video)
}

// ListVideos godoc
// @Summary List the caller's videos, newest first
// @Tags clips
// @Produce  json
// @Router /clips/videos [get]
func (h *ApplicationHandler) ListVideos(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	videos, err := h.Pipeline.ListVideos(ctx, middleware.UserID(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, videos)
}

// GetVideo returns a video with its candidate clips ranked best first.
func (h *ApplicationHandler) GetVideo(c *fiber.Ctx) error {
	id, ok, err := parseID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	video, err := h.Pipeline.GetVideo(ctx, id, middleware.UserID(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, video)
}

// DeleteVideo removes a video with its clips and exports.
func (h *ApplicationHandler) DeleteVideo(c *fiber.Ctx) error {
	id, ok, err := parseID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.Pipeline.Delete(ctx, id, middleware.UserID(c)); err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithMessage(c, fiber.StatusOK, "Video deleted", fiber.Map{"id": id})
}
