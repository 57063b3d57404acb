package repository

import (
	"time"

	"github.com/studysmart/lesson-engine/internal/domain"
)

// BatchRunModel is the persistence model for the batch_runs audit table.
type BatchRunModel struct {
	ID               string             `gorm:"type:uuid;primaryKey"`
	Status           domain.BatchStatus `gorm:"type:varchar(20);not null"`
	LessonsGenerated int                `gorm:"not null;default:0"`
	LessonsFailed    int                `gorm:"not null;default:0"`
	StartedAt        time.Time          `gorm:"type:timestamptz"`
	RuntimeSeconds   float64            `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (BatchRunModel) TableName() string {
	return "batch_runs"
}

// MappingResultModel is the persistence model for per-mapping results.
type MappingResultModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	RunID      string `gorm:"type:uuid;not null"`
	Filename   string `gorm:"type:varchar(255);not null"`
	Total      int    `gorm:"not null"`
	Successful int    `gorm:"not null"`
	Failed     int    `gorm:"not null"`
	OutputDir  string `gorm:"type:text"`
	CreatedAt  time.Time
}

func (MappingResultModel) TableName() string {
	return "mapping_results"
}

// LessonResultModel records one per-lesson outcome within a run.
type LessonResultModel struct {
	ID        string  `gorm:"type:uuid;primaryKey"`
	RunID     string  `gorm:"type:uuid;not null"`
	Mapping   string  `gorm:"type:varchar(255);not null"`
	LessonID  string  `gorm:"type:varchar(64);not null"`
	Success   bool    `gorm:"not null"`
	Detail    *string `gorm:"type:text"`
	CreatedAt time.Time
}

func (LessonResultModel) TableName() string {
	return "lesson_results"
}

func mappingResultModelToDomain(m *MappingResultModel) domain.MappingResult {
	if m == nil {
		return domain.MappingResult{}
	}
	return domain.MappingResult{
		Filename:   m.Filename,
		Total:      m.Total,
		Successful: m.Successful,
		Failed:     m.Failed,
		OutputDir:  m.OutputDir,
	}
}

func runModelToDomain(m *BatchRunModel, results []MappingResultModel) *domain.BatchProgress {
	if m == nil {
		return nil
	}

	progress := &domain.BatchProgress{
		RunID:            m.ID,
		Status:           m.Status,
		LessonsGenerated: m.LessonsGenerated,
		LessonsFailed:    m.LessonsFailed,
		StartedAt:        m.StartedAt,
		RuntimeSeconds:   m.RuntimeSeconds,
	}
	for i := range results {
		progress.Results = append(progress.Results, mappingResultModelToDomain(&results[i]))
	}
	return progress
}
