package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/studysmart/lesson-engine/internal/domain"
)

// RunReader loads archived batch runs. Registered only when a run
// archive is configured.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*domain.BatchProgress, error)
}

type RunHandler struct {
	runs RunReader
}

func NewRunHandler(runs RunReader) (*RunHandler, error) {
	if runs == nil {
		return nil, fmt.Errorf("run reader is required")
	}
	return &RunHandler{runs: runs}, nil
}

func RegisterRunRoutes(router fiber.Router, runs RunReader) error {
	h, err := NewRunHandler(runs)
	if err != nil {
		return err
	}

	router.Get("/runs/:runId", h.GetRun)

	return nil
}

type runResponse struct {
	RunID string `json:"run_id"`
	statusResponse
	BatchResults []domain.MappingResult `json:"batch_results"`
}

func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	runID := strings.TrimSpace(c.Params("runId"))

	run, err := h.runs.GetRun(c.Context(), runID)
	if err != nil {
		return toHTTPError(err)
	}

	results := run.Results
	if results == nil {
		results = []domain.MappingResult{}
	}

	return c.Status(fiber.StatusOK).JSON(runResponse{
		RunID:          run.RunID,
		statusResponse: toStatusResponse(*run),
		BatchResults:   results,
	})
}
