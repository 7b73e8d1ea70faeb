package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abhisek-1221/korai-sub001/api-gateway/middleware"
	"github.com/abhisek-1221/korai-sub001/api-gateway/utils"
)

// GetUsage reports the caller's quota per resource class without consuming any.
func (h *ApplicationHandler) GetUsage(c *fiber.Ctx) error {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	usage, err := h.Usage.Usage(ctx, middleware.UserID(c))
	if err != nil {
		h.log(c).WithError(err).Error("Failed to read quota usage")
		return utils.RespondWithError(c, fiber.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
	}
	return utils.RespondWithJSON(c, fiber.StatusOK, usage)
}
