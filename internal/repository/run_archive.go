package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/studysmart/lesson-engine/internal/domain"
	"gorm.io/gorm"
)

// RunArchive records batch runs and per-lesson outcomes for audit. The
// file sink stays the system of record for generated content; the archive
// only keeps queryable history.
type RunArchive interface {
	CreateRun(ctx context.Context, progress domain.BatchProgress) error
	FinishRun(ctx context.Context, progress domain.BatchProgress) error
	RecordLesson(ctx context.Context, runID, mapping, lessonID string, success bool, detail string) error
	GetRun(ctx context.Context, runID string) (*domain.BatchProgress, error)
}

type GormRunArchive struct {
	db *gorm.DB
}

var _ RunArchive = (*GormRunArchive)(nil)

func NewGormRunArchive(db *gorm.DB) *GormRunArchive {
	return &GormRunArchive{db: db}
}

func (r *GormRunArchive) CreateRun(ctx context.Context, progress domain.BatchProgress) error {
	model := &BatchRunModel{
		ID:        progress.RunID,
		Status:    progress.Status,
		StartedAt: progress.StartedAt,
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// FinishRun writes the terminal run state and its per-mapping results.
func (r *GormRunArchive) FinishRun(ctx context.Context, progress domain.BatchProgress) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":            progress.Status,
			"lessons_generated": progress.LessonsGenerated,
			"lessons_failed":    progress.LessonsFailed,
			"runtime_seconds":   progress.RuntimeSeconds,
		}
		result := tx.Model(&BatchRunModel{}).Where("id = ?", progress.RunID).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrNotFound
		}

		for _, mapping := range progress.Results {
			model := &MappingResultModel{
				ID:         uuid.NewString(),
				RunID:      progress.RunID,
				Filename:   mapping.Filename,
				Total:      mapping.Total,
				Successful: mapping.Successful,
				Failed:     mapping.Failed,
				OutputDir:  mapping.OutputDir,
			}
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormRunArchive) RecordLesson(ctx context.Context, runID, mapping, lessonID string, success bool, detail string) error {
	model := &LessonResultModel{
		ID:       uuid.NewString(),
		RunID:    runID,
		Mapping:  mapping,
		LessonID: lessonID,
		Success:  success,
	}
	if detail != "" {
		model.Detail = &detail
	}
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormRunArchive) GetRun(ctx context.Context, runID string) (*domain.BatchProgress, error) {
	var run BatchRunModel
	err := r.db.WithContext(ctx).First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var results []MappingResultModel
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at").
		Find(&results).Error; err != nil {
		return nil, err
	}

	return runModelToDomain(&run, results), nil
}
