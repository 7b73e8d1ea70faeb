package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the health check and the authenticated API.
func (h *ApplicationHandler) RegisterRoutes(app *fiber.App, requireUser fiber.Handler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "API Gateway is healthy",
		})
	})

	apiV1 := app.Group("/api/v1", requireUser)

	videos := apiV1.Group("/clips/videos")
	videos.Post("", h.SubmitVideo)
	videos.Get("", h.ListVideos)
	videos.Get("/:id", h.GetVideo)
	videos.Delete("/:id", h.DeleteVideo)
	videos.Post("/:id/exports", h.ExportClips)
	videos.Get("/:id/exported", h.ListExportedClips)
	videos.Get("/:id/exported/:clipId/download", h.DownloadExportedClip)

	transcriptions := apiV1.Group("/transcriptions")
	transcriptions.Post("", h.SubmitTranscription)
	transcriptions.Get("", h.ListTranscriptions)
	transcriptions.Get("/:id", h.GetTranscription)
	transcriptions.Patch("/:id/speakers", h.UpdateSpeakerMappings)

	apiV1.Get("/usage", h.GetUsage)
}
