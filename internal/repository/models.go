package repository

import (
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
)

// CampaignModel is the persistence model for the newsletter_campaigns table.
// The recipient ledger lives in a jsonb column using the domain.Recipient JSON shape.
type CampaignModel struct {
	ID          string                `gorm:"type:uuid;primaryKey"`
	Title       string                `gorm:"type:varchar(255);not null"`
	Subject     string                `gorm:"type:varchar(255);not null"`
	HTML        string                `gorm:"column:html;type:text;not null"`
	Status      domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	ScheduledAt time.Time             `gorm:"type:timestamptz;not null"`
	Recipients  []domain.Recipient    `gorm:"type:jsonb;not null;default:'[]';serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (CampaignModel) TableName() string {
	return "newsletter_campaigns"
}

// SubscriberModel is the persistence model for the subscription_emails table.
type SubscriberModel struct {
	ID        string                  `gorm:"type:uuid;primaryKey"`
	Email     string                  `gorm:"type:varchar(320);not null;uniqueIndex"`
	Status    domain.SubscriberStatus `gorm:"type:varchar(20);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SubscriberModel) TableName() string {
	return "subscription_emails"
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	return &CampaignModel{
		ID:          c.ID,
		Title:       c.Title,
		Subject:     c.Subject,
		HTML:        c.HTML,
		Status:      c.Status,
		ScheduledAt: c.ScheduledAt,
		Recipients:  domain.CloneRecipients(c.Recipients),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:          m.ID,
		Title:       m.Title,
		Subject:     m.Subject,
		HTML:        m.HTML,
		Status:      m.Status,
		ScheduledAt: m.ScheduledAt,
		Recipients:  domain.CloneRecipients(m.Recipients),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func subscriberModelFromDomain(s *domain.Subscriber) *SubscriberModel {
	if s == nil {
		return nil
	}

	return &SubscriberModel{
		ID:        s.ID,
		Email:     s.Email,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func subscriberModelToDomain(m *SubscriberModel) *domain.Subscriber {
	if m == nil {
		return nil
	}

	return &domain.Subscriber{
		ID:        m.ID,
		Email:     m.Email,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
