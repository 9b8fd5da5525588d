package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/dealerlink/lead-recovery/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createVisitorsTable(),
		createOutreachAttemptsTable(),
		createLeadsTable(),
		createVisitorActivitiesTable(),
	})

	return m.Migrate()
}

func createVisitorsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_visitors",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.VisitorModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_visitors_last_activity ON visitors (last_activity_at) WHERE NOT form_completed`,
				`CREATE INDEX IF NOT EXISTS idx_visitors_abandoned ON visitors (abandonment_detected, return_token_expires_at) WHERE abandonment_detected`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.VisitorModel{})
		},
	}
}

func createOutreachAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_outreach_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.OutreachAttemptModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_attempts_visitor_created ON outreach_attempts (visitor_id, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_provider_message ON outreach_attempts (provider_message_id) WHERE provider_message_id <> ''`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.OutreachAttemptModel{})
		},
	}
}

func createLeadsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_leads",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.LeadModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_leads_visitor_id ON leads (visitor_id)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.LeadModel{})
		},
	}
}

func createVisitorActivitiesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_visitor_activities",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.VisitorActivityModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_activities_visitor_created ON visitor_activities (visitor_id, created_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.VisitorActivityModel{})
		},
	}
}
