// Package store persists generated lessons and batch summaries as JSON
// files. The file tree is the system of record for generated content.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/studysmart/lesson-engine/internal/domain"
)

// LessonFile is the on-disk record for one generated lesson: the content
// plus enough metadata to trace it back to its source row.
type LessonFile struct {
	LessonID     string                  `json:"lesson_id"`
	BaseFilename string                  `json:"base_filename"`
	LessonData   domain.LessonRecord     `json:"lesson_data"`
	Content      domain.GeneratedContent `json:"generated_content"`
	GeneratedAt  time.Time               `json:"generated_at"`
}

type summaryFile struct {
	Timestamp        time.Time              `json:"timestamp"`
	RunID            string                 `json:"run_id"`
	RuntimeSeconds   float64                `json:"runtime_seconds"`
	LessonsGenerated int                    `json:"lessons_generated"`
	LessonsFailed    int                    `json:"lessons_failed"`
	Results          []domain.MappingResult `json:"results"`
}

// FileStore writes lesson output under {root}/{date}/{mapping}/.
type FileStore struct {
	root string
	now  func() time.Time
}

func NewFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	return &FileStore{root: root, now: time.Now}, nil
}

// MappingDir returns (and creates) the output directory for one mapping
// file within the current day's run.
func (s *FileStore) MappingDir(mappingFilename string) (string, error) {
	day := s.now().Format("2006-01-02")
	base := strings.TrimSuffix(filepath.Base(mappingFilename), ".json")
	dir := filepath.Join(s.root, day, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	return dir, nil
}

// WriteLesson persists one validated lesson and returns the file path.
func (s *FileStore) WriteLesson(dir string, record LessonFile) (string, error) {
	if record.GeneratedAt.IsZero() {
		record.GeneratedAt = s.now()
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode lesson %s: %w", record.LessonID, err)
	}

	path := filepath.Join(dir, record.LessonID+"_complete.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write lesson file %s: %w", path, err)
	}
	return path, nil
}

// ReadLesson loads a persisted lesson file back. Persistence is lossless:
// the reloaded content reproduces part count, headings, and strings.
func (s *FileStore) ReadLesson(path string) (*LessonFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lesson file %s: %w", path, err)
	}

	var record LessonFile
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse lesson file %s: %w", path, err)
	}
	return &record, nil
}

// WriteSummary persists the batch-level summary next to the lesson output.
func (s *FileStore) WriteSummary(progress domain.BatchProgress) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", s.root, err)
	}

	now := s.now()
	summary := summaryFile{
		Timestamp:        now,
		RunID:            progress.RunID,
		RuntimeSeconds:   progress.RuntimeSeconds,
		LessonsGenerated: progress.LessonsGenerated,
		LessonsFailed:    progress.LessonsFailed,
		Results:          progress.Results,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode batch summary: %w", err)
	}

	path := filepath.Join(s.root, fmt.Sprintf("batch_summary_%s.json", now.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write batch summary %s: %w", path, err)
	}
	return nil
}
