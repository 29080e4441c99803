package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"gorm.io/gorm"
)

func createSubscriptionEmailsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_subscription_emails",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.SubscriberModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_subscription_emails_active ON subscription_emails (created_at, id) WHERE status = 'ACTIVE'`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.SubscriberModel{})
		},
	}
}
