package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/studysmart/lesson-engine/internal/domain"
)

// BatchStarter launches a background batch run.
type BatchStarter interface {
	Start(maxMappings, maxLessonsPerMapping int) (string, error)
}

// ProgressReader exposes the live state of the current or last run.
type ProgressReader interface {
	Snapshot() domain.BatchProgress
}

type BatchHandler struct {
	starter  BatchStarter
	progress ProgressReader
}

func NewBatchHandler(starter BatchStarter, progress ProgressReader) (*BatchHandler, error) {
	if starter == nil {
		return nil, fmt.Errorf("batch starter is required")
	}
	if progress == nil {
		return nil, fmt.Errorf("progress reader is required")
	}
	return &BatchHandler{starter: starter, progress: progress}, nil
}

func RegisterBatchRoutes(router fiber.Router, starter BatchStarter, progress ProgressReader) error {
	h, err := NewBatchHandler(starter, progress)
	if err != nil {
		return err
	}

	router.Post("/start", h.StartBatch)
	router.Get("/status", h.GetStatus)
	router.Get("/summary", h.GetSummary)

	return nil
}

type startBatchRequest struct {
	MaxMappings          int `json:"max_mappings"`
	MaxLessonsPerMapping int `json:"max_lessons_per_mapping"`
}

type startBatchResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
}

type statusResponse struct {
	Status           string  `json:"status"`
	LessonsGenerated int     `json:"lessons_generated"`
	LessonsFailed    int     `json:"lessons_failed"`
	RuntimeSeconds   float64 `json:"runtime"`
	StartedAt        string  `json:"started_at,omitempty"`
}

type summaryResponse struct {
	statusResponse
	BatchResults []domain.MappingResult `json:"batch_results"`
}

func (h *BatchHandler) StartBatch(c *fiber.Ctx) error {
	var req startBatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	if req.MaxMappings < 0 || req.MaxLessonsPerMapping < 0 {
		return toHTTPError(fmt.Errorf("%w: limits must be >= 0", domain.ErrValidation))
	}

	runID, err := h.starter.Start(req.MaxMappings, req.MaxLessonsPerMapping)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(startBatchResponse{
		Message: "batch generation started",
		RunID:   runID,
		Status:  domain.StatusProcessing.String(),
	})
}

func (h *BatchHandler) GetStatus(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(toStatusResponse(h.progress.Snapshot()))
}

func (h *BatchHandler) GetSummary(c *fiber.Ctx) error {
	snapshot := h.progress.Snapshot()

	results := snapshot.Results
	if results == nil {
		results = []domain.MappingResult{}
	}

	return c.Status(fiber.StatusOK).JSON(summaryResponse{
		statusResponse: toStatusResponse(snapshot),
		BatchResults:   results,
	})
}

func toStatusResponse(p domain.BatchProgress) statusResponse {
	resp := statusResponse{
		Status:           p.Status.String(),
		LessonsGenerated: p.LessonsGenerated,
		LessonsFailed:    p.LessonsFailed,
		RuntimeSeconds:   p.RuntimeSeconds,
	}
	if !p.StartedAt.IsZero() {
		resp.StartedAt = p.StartedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrBatchRunning):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
