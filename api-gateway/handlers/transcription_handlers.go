package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abhisek-1221/korai-sub001/api-gateway/middleware"
	"github.com/abhisek-1221/korai-sub001/api-gateway/utils"
)

// SubmitTranscriptionRequest defines the expected request body for a transcription.
type SubmitTranscriptionRequest struct {
	YoutubeURL string `json:"youtube_url" validate:"required"`
}

// SpeakerMappingsRequest maps diarization labels to display names.
type SpeakerMappingsRequest struct {
	SpeakerMappings map[string]string `json:"speaker_mappings" validate:"required,min=1,dive,keys,required,endkeys,required,max=100"`
}

// SubmitTranscription godoc
// @Summary Transcribe a YouTube video with speaker labels
// @Tags transcriptions
// @Accept  json
// @Produce  json
// @Param   transcription body SubmitTranscriptionRequest true "Video to transcribe"
// @Success 202 {object} models.Transcription
// @Failure 429 {object} QuotaErrorResponse
// @Router /transcriptions [post]
func (h *ApplicationHandler) SubmitTranscription(c *fiber.Ctx) error {
	req := new(SubmitTranscriptionRequest)
	if ok, err := parseBody(c, req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	t, err := h.Pipeline.SubmitTranscription(ctx, middleware.UserID(c), req.YoutubeURL)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithMessage(c, fiber.StatusAccepted, "Transcription submitted", t)
}

func (h *ApplicationHandler) ListTranscriptions(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	list, err := h.Pipeline.ListTranscriptions(ctx, middleware.UserID(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, list)
}

// GetTranscription returns a transcription with its segments in time order.
func (h *ApplicationHandler) GetTranscription(c *fiber.Ctx) error {
	id, ok, err := parseID(c, "id")
	if !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	t, err := h.Pipeline.GetTranscription(ctx, id, middleware.UserID(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, t)
}

// UpdateSpeakerMappings godoc
// @Summary Name the speakers of a transcription
// @Description Applies every mapping in one transaction; on error none is applied.
// @Tags transcriptions
// @Accept  json
// @Produce  json
// @Param   id path string true "Transcription ID"
// @Param   mappings body SpeakerMappingsRequest true "label -> name"
// @Router /transcriptions/{id}/speakers [patch]
func (h *ApplicationHandler) UpdateSpeakerMappings(c *fiber.Ctx) error {
	id, ok, err := parseID(c, "id")
	if !ok {
		return err
	}
	req := new(SpeakerMappingsRequest)
	if ok, err := parseBody(c, req); !ok {
		return err
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	n, err := h.Speakers.ApplyMappings(ctx, id, middleware.UserID(c), req.SpeakerMappings)
	if err != nil {
		return h.respondError(c, err)
	}
	return utils.RespondWithMessage(c, fiber.StatusOK, "Speaker names updated", fiber.Map{"updated_segments": n})
}
