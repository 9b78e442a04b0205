package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations executes the migrations AutoMigrate cannot express
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	statements := []string{
		// Activity listings are always newest first
		`CREATE INDEX IF NOT EXISTS idx_case_activities_case_date
		ON case_activities(case_id, activity_date DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_case_documents_activity
		ON case_documents(case_id, portal_activity_id)`,

		`CREATE INDEX IF NOT EXISTS idx_consultation_audits_time
		ON consultation_audits(query_time)`,

		`CREATE INDEX IF NOT EXISTS idx_case_records_parties
		ON case_records(plaintiff, defendant)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
