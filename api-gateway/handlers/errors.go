package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/api-gateway/middleware"
	"github.com/abhisek-1221/korai-sub001/api-gateway/utils"
	"github.com/abhisek-1221/korai-sub001/internal/admission"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
	"github.com/abhisek-1221/korai-sub001/internal/quota"
	"github.com/abhisek-1221/korai-sub001/internal/speakers"
	"github.com/abhisek-1221/korai-sub001/internal/store"
)

// ErrorResponse defines a common structure for error responses.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// QuotaErrorResponse is returned with 429.
type QuotaErrorResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Class     quota.Class `json:"class"`
	Limit     int         `json:"limit"`
	Remaining int         `json:"remaining"`
	ResetAt   int64       `json:"reset_at"` // unix milliseconds
}

// respondError translates a core error into a response. Detail of
// unexpected errors is logged, never returned.
func (h *ApplicationHandler) respondError(c *fiber.Ctx, err error) error {
	var qe *admission.QuotaExceededError
	switch {
	case errors.As(err, &qe):
		c.Set("X-RateLimit-Limit", strconv.Itoa(qe.Decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(qe.Decision.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(qe.Decision.ResetAt.UnixMilli(), 10))
		return c.Status(fiber.StatusTooManyRequests).JSON(QuotaErrorResponse{
			Status:    "error",
			Message:   "Rate limit exceeded",
			Class:     qe.Class,
			Limit:     qe.Decision.Limit,
			Remaining: qe.Decision.Remaining,
			ResetAt:   qe.Decision.ResetAt.UnixMilli(),
		})
	case errors.Is(err, admission.ErrUnauthenticated):
		return utils.RespondWithError(c, fiber.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, admission.ErrUnavailable):
		h.log(c).WithError(err).Error("Quota ledger unavailable")
		return utils.RespondWithError(c, fiber.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
	case errors.Is(err, pipeline.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return utils.RespondWithError(c, fiber.StatusNotFound, "Not found")
	case errors.Is(err, pipeline.ErrValidation), errors.Is(err, speakers.ErrValidation):
		return utils.RespondWithError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrConflict), errors.Is(err, store.ErrStaleState):
		return utils.RespondWithError(c, fiber.StatusConflict, "The resource changed state, reload and retry")
	case errors.Is(err, pipeline.ErrDispatch):
		h.log(c).WithError(err).Error("Failed to enqueue background work")
		return utils.RespondWithError(c, fiber.StatusServiceUnavailable, "Could not start processing, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		h.log(c).WithError(err).Warn("Request timed out")
		return utils.RespondWithError(c, fiber.StatusServiceUnavailable, "Request timed out, please retry")
	}
	h.log(c).WithError(err).Error("Unhandled error")
	return utils.RespondWithError(c, fiber.StatusInternalServerError, "Internal server error")
}

func (h *ApplicationHandler) log(c *fiber.Ctx) logrus.FieldLogger {
	return h.Logger.WithFields(logrus.Fields{
		"request_id": c.Locals(middleware.LocalsRequestID),
		"user_id":    middleware.UserID(c),
	})
}

// parseBody decodes and validates a JSON body into dst. When ok is false
// the 400 response has been written and err is what the handler returns.
func parseBody(c *fiber.Ctx, dst interface{}) (ok bool, err error) {
	if err := c.BodyParser(dst); err != nil {
		return false, utils.RespondWithError(c, fiber.StatusBadRequest, "Cannot parse request JSON")
	}
	if err := validate.Struct(dst); err != nil {
		return false, utils.RespondWithErrors(c, fiber.StatusBadRequest, "Invalid request", utils.FormatValidationErrors(err))
	}
	return true, nil
}

// parseID reads a uuid route parameter. When ok is false the 400 response
// has been written.
func parseID(c *fiber.Ctx, param string) (id uuid.UUID, ok bool, err error) {
	id, perr := uuid.Parse(c.Params(param))
	if perr != nil {
		return uuid.Nil, false, utils.RespondWithError(c, fiber.StatusBadRequest, "Invalid "+param)
	}
	return id, true, nil
}
