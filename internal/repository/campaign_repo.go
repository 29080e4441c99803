package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status   *string
	Page     int
	PageSize int
}

type CampaignRepository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, params ListParams) ([]domain.Campaign, int64, error)
	FindDue(ctx context.Context, now time.Time) ([]domain.Campaign, error)
	SetStatus(ctx context.Context, id string, status domain.CampaignStatus) error
	TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error)
	SaveLedger(ctx context.Context, id string, recipients []domain.Recipient) error
	ReclaimStaleSending(ctx context.Context, olderThan time.Time) (int64, error)
}

type GormCampaignRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db, now: time.Now}
}

func (r *GormCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	model := campaignModelFromDomain(c)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if c != nil {
		*c = *campaignModelToDomain(model)
	}
	return nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func (r *GormCampaignRepo) List(ctx context.Context, params ListParams) ([]domain.Campaign, int64, error) {
	query := r.db.WithContext(ctx).Model(&CampaignModel{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(params.Page, params.PageSize)

	var models []CampaignModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, total, nil
}

// FindDue returns SCHEDULED campaigns whose scheduled_at has passed, oldest schedule first.
func (r *GormCampaignRepo) FindDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	var models []CampaignModel
	err := r.db.WithContext(ctx).
		Where("scheduled_at <= ? AND status = ?", now, domain.CampaignStatusScheduled).
		Order("scheduled_at ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, nil
}

func (r *GormCampaignRepo) SetStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TransitionStatus moves the campaign to `to` only while it is still in `from`.
// It reports false when another writer changed the status first.
func (r *GormCampaignRepo) TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SaveLedger replaces the whole recipient ledger. updated_at doubles as the
// dispatch heartbeat used by ReclaimStaleSending.
func (r *GormCampaignRepo) SaveLedger(ctx context.Context, id string, recipients []domain.Recipient) error {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ?", id).
		Select("recipients", "updated_at").
		UpdateColumns(&CampaignModel{
			Recipients: domain.CloneRecipients(recipients),
			UpdatedAt:  r.now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ReclaimStaleSending returns SENDING campaigns untouched since olderThan to SCHEDULED.
func (r *GormCampaignRepo) ReclaimStaleSending(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("status = ? AND updated_at < ?", domain.CampaignStatusSending, olderThan).
		Update("status", domain.CampaignStatusScheduled)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func normalizePage(page, pageSize int) (int, int) {
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 50
	}
	return page, min(pageSize, 100)
}
