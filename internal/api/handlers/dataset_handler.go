package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/askdata/backend/internal/ingestion"
	"github.com/askdata/backend/internal/query"
	"github.com/askdata/backend/pkg/logger"
)

type DatasetHandler struct {
	processor *ingestion.Processor
	service   *query.Service
}

func NewDatasetHandler(processor *ingestion.Processor, service *query.Service) *DatasetHandler {
	return &DatasetHandler{
		processor: processor,
		service:   service,
	}
}

// HandleUpload ingests a CSV from a multipart form and makes it the live
// dataset.
func (h *DatasetHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A CSV file is required in the 'file' field",
		})
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Please upload a CSV file",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read uploaded file",
		})
	}
	defer file.Close()

	result, err := h.processor.Process(c.Context(), fileHeader.Filename, file)
	if err != nil {
		logger.Error("Dataset ingestion failed",
			zap.String("filename", fileHeader.Filename),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to process CSV: " + err.Error(),
		})
	}

	h.service.SetDataset(result)

	return c.JSON(fiber.Map{
		"filename":  result.Meta.Filename,
		"columns":   result.Meta.Columns,
		"row_count": result.Meta.RowCount,
		"column_types": fiber.Map{
			"numerical_columns":   result.Classification.Numeric,
			"categorical_columns": result.Classification.Categorical,
			"date_columns":        result.Classification.Temporal,
		},
		"preview":         result.Preview.RowMaps(),
		"dataset_summary": result.Summary,
	})
}

// HandleGet describes the currently loaded dataset.
func (h *DatasetHandler) HandleGet(c *fiber.Ctx) error {
	dataset, ok := h.service.Dataset()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No dataset loaded",
		})
	}

	return c.JSON(fiber.Map{
		"filename":    dataset.Meta.Filename,
		"table":       dataset.Meta.Table,
		"columns":     dataset.Meta.Columns,
		"row_count":   dataset.Meta.RowCount,
		"uploaded_at": dataset.Meta.UploadedAt,
		"column_types": fiber.Map{
			"numerical_columns":   dataset.Classification.Numeric,
			"categorical_columns": dataset.Classification.Categorical,
			"date_columns":        dataset.Classification.Temporal,
		},
	})
}
