package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/askdata/backend/internal/llm"
	"github.com/askdata/backend/internal/metrics"
	"github.com/askdata/backend/internal/query"
)

// Analyst layers generated narrative and chart advice over computed
// insight facts. May be nil, in which case the endpoint returns facts
// only.
type Analyst interface {
	ExplainResults(ctx context.Context, question, sqlText, facts string) llm.Explanation
	RecommendChart(ctx context.Context, question string, columns []string, types string, sample string) llm.ChartSpec
}

type InsightsHandler struct {
	service *query.Service
	analyst Analyst
}

func NewInsightsHandler(service *query.Service, analyst Analyst) *InsightsHandler {
	return &InsightsHandler{
		service: service,
		analyst: analyst,
	}
}

// HandleInsights answers a question and returns the deep analysis: ranked
// groups, outliers, a narrative explanation, and a chart recommendation.
func (h *InsightsHandler) HandleInsights(c *fiber.Ctx) error {
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
	resp, report, err := h.service.Report(c.Context(), req.Question, req.SessionID)
	metrics.QueryDuration.WithLabelValues("insights").Observe(time.Since(start).Seconds())

	if errors.Is(err, query.ErrNoDataset) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": query.ErrNoDataset.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate insights",
		})
	}
	if resp.Error != "" {
		return c.JSON(fiber.Map{
			"question": resp.Question,
			"sql":      resp.SQL,
			"error":    resp.Error,
		})
	}

	out := fiber.Map{
		"question":        resp.Question,
		"generated_sql":   resp.SQL,
		"session_id":      resp.SessionID,
		"rows":            resp.Rows,
		"insights":        report.Insights,
		"suggested_chart": report.SuggestedChart,
		"details":         report.Details,
	}

	if h.analyst != nil {
		facts := strings.Join(report.Insights, "\n")
		out["explanation"] = h.analyst.ExplainResults(c.Context(), resp.Question, resp.SQL, facts)
		out["chart"] = h.analyst.RecommendChart(c.Context(),
			resp.Question, resp.Columns, columnTypes(h.service), sampleJSON(resp.Rows))
	}

	return c.JSON(out)
}

func columnTypes(service *query.Service) string {
	dataset, ok := service.Dataset()
	if !ok {
		return ""
	}
	class := dataset.Classification
	return fmt.Sprintf("numeric: %s; categorical: %s; temporal: %s",
		strings.Join(class.Numeric, ", "),
		strings.Join(class.Categorical, ", "),
		strings.Join(class.Temporal, ", "),
	)
}

func sampleJSON(rows []map[string]any) string {
	limit := len(rows)
	if limit > 20 {
		limit = 20
	}
	data, err := json.Marshal(rows[:limit])
	if err != nil {
		return "[]"
	}
	return string(data)
}
