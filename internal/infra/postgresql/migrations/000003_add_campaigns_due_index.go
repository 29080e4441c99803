package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addCampaignsDueIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_campaigns_due_index",
		Migrate: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`CREATE INDEX IF NOT EXISTS idx_newsletter_campaigns_due ON newsletter_campaigns (scheduled_at, created_at) WHERE status = 'SCHEDULED'`,
				`CREATE INDEX IF NOT EXISTS idx_newsletter_campaigns_sending ON newsletter_campaigns (updated_at) WHERE status = 'SENDING'`,
			})
		},
		Rollback: func(tx *gorm.DB) error {
			return execAll(tx, []string{
				`DROP INDEX IF EXISTS idx_newsletter_campaigns_sending`,
				`DROP INDEX IF EXISTS idx_newsletter_campaigns_due`,
			})
		},
	}
}
