package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/askdata/backend/internal/metrics"
	"github.com/askdata/backend/internal/query"
	"github.com/askdata/backend/internal/storage/sqlite"
	"github.com/askdata/backend/pkg/logger"
)

type QueryHandler struct {
	service *query.Service
}

func NewQueryHandler(service *query.Service) *QueryHandler {
	return &QueryHandler{service: service}
}

// HandleAsk answers a natural-language question against the live dataset.
func (h *QueryHandler) HandleAsk(c *fiber.Ctx) error {
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	start := time.Now()
	resp, err := h.service.Ask(c.Context(), req.Question, req.SessionID)
	metrics.QueryDuration.WithLabelValues("ask").Observe(time.Since(start).Seconds())

	if errors.Is(err, query.ErrNoDataset) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": query.ErrNoDataset.Error(),
		})
	}
	if err != nil {
		logger.Error("Failed to answer question", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to answer question",
		})
	}

	return c.JSON(resp)
}

// HandleSQL runs a caller-written statement. Only single SELECTs pass the
// storage guard; everything else is rejected.
func (h *QueryHandler) HandleSQL(c *fiber.Ctx) error {
	var req struct {
		SQL string `json:"sql"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SQL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "SQL is required",
		})
	}

	rs, err := h.service.RunSQL(c.Context(), req.SQL)
	if errors.Is(err, query.ErrNoDataset) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": query.ErrNoDataset.Error(),
		})
	}
	if errors.Is(err, sqlite.ErrNotReadOnly) || errors.Is(err, sqlite.ErrMultipleStatements) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "SQL Error: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"columns": rs.Columns,
		"rows":    rs.RowMaps(),
	})
}

// HandleHistory lists the recorded turns of one session.
func (h *QueryHandler) HandleHistory(c *fiber.Ctx) error {
	sessionID := c.Query("session_id", "default")

	turns, err := h.service.History(c.Context(), sessionID)
	if err != nil {
		logger.Error("Failed to read session history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read history",
		})
	}

	return c.JSON(fiber.Map{
		"session_id": sessionID,
		"history":    turns,
	})
}
