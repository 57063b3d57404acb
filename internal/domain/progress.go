package domain

import (
	"fmt"
	"strings"
	"time"
)

// BatchStatus represents the lifecycle state of a batch run.
type BatchStatus string

const (
	StatusIdle       BatchStatus = "idle"
	StatusProcessing BatchStatus = "processing"
	StatusCompleted  BatchStatus = "completed"
	StatusError      BatchStatus = "error"
)

func (s BatchStatus) String() string { return string(s) }

func (s BatchStatus) IsValid() bool {
	switch s {
	case StatusIdle, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// IsTerminal reports whether a new run may begin from this state.
func (s BatchStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

func ParseBatchStatusFromString(s string) (BatchStatus, error) {
	st := BatchStatus(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// MappingResult summarizes one processed mapping file.
type MappingResult struct {
	Filename   string `json:"filename"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	OutputDir  string `json:"output_dir"`
}

// BatchProgress is the process-wide batch state: status, cumulative
// counters, start timestamp, and per-mapping results. Mutated only by the
// batch coordinator; read by status queries through copies.
type BatchProgress struct {
	RunID            string          `json:"run_id,omitempty"`
	Status           BatchStatus     `json:"status"`
	LessonsGenerated int             `json:"lessons_generated"`
	LessonsFailed    int             `json:"lessons_failed"`
	StartedAt        time.Time       `json:"started_at,omitzero"`
	RuntimeSeconds   float64         `json:"runtime"`
	Results          []MappingResult `json:"batch_results"`
}
