package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/studysmart/lesson-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_batch_runs",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.BatchRunModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_batch_runs_status_started ON batch_runs (status, started_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.BatchRunModel{})
			},
		},
		{
			ID: "000002_create_mapping_results",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.MappingResultModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_mapping_results_run_id ON mapping_results (run_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.MappingResultModel{})
			},
		},
		{
			ID: "000003_create_lesson_results",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.LessonResultModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_lesson_results_run_id ON lesson_results (run_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.LessonResultModel{})
			},
		},
	})

	return m.Migrate()
}
