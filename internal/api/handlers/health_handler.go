package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/askdata/backend/internal/query"
	"github.com/askdata/backend/internal/storage/sqlite"
)

type HealthHandler struct {
	store   *sqlite.Client
	service *query.Service
}

func NewHealthHandler(store *sqlite.Client, service *query.Service) *HealthHandler {
	return &HealthHandler{
		store:   store,
		service: service,
	}
}

func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleReady reports whether the storage layer answers queries. A missing
// dataset is not a readiness failure, just a flag for the caller.
func (h *HealthHandler) HandleReady(c *fiber.Ctx) error {
	if _, err := h.store.ExecuteRead(c.Context(), "SELECT 1"); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"error":  err.Error(),
		})
	}

	_, loaded := h.service.Dataset()
	return c.JSON(fiber.Map{
		"status":         "ready",
		"dataset_loaded": loaded,
	})
}
