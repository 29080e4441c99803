package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"gorm.io/gorm"
)

type SubscriberRepository interface {
	Create(ctx context.Context, s *domain.Subscriber) error
	GetByID(ctx context.Context, id string) (*domain.Subscriber, error)
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus) error
	Update(ctx context.Context, s *domain.Subscriber) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, params ListParams) ([]domain.Subscriber, int64, error)
	ListActiveEmails(ctx context.Context) ([]string, error)
}

type GormSubscriberRepo struct {
	db *gorm.DB
}

func NewGormSubscriberRepo(db *gorm.DB) *GormSubscriberRepo {
	return &GormSubscriberRepo{db: db}
}

func (r *GormSubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	model := subscriberModelFromDomain(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	if s != nil {
		*s = *subscriberModelToDomain(model)
	}
	return nil
}

func (r *GormSubscriberRepo) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	var model SubscriberModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return subscriberModelToDomain(&model), nil
}

func (r *GormSubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var model SubscriberModel
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return subscriberModelToDomain(&model), nil
}

func (r *GormSubscriberRepo) UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus) error {
	result := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
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

// Update writes the address and status of an existing subscriber. Taking an
// address that belongs to another subscriber is a conflict.
func (r *GormSubscriberRepo) Update(ctx context.Context, s *domain.Subscriber) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("id = ?", s.ID).
		Updates(map[string]any{
			"email":      s.Email,
			"status":     s.Status,
			"updated_at": now,
		})
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	s.UpdatedAt = now
	return nil
}

func (r *GormSubscriberRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&SubscriberModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormSubscriberRepo) List(ctx context.Context, params ListParams) ([]domain.Subscriber, int64, error) {
	query := r.db.WithContext(ctx).Model(&SubscriberModel{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(params.Page, params.PageSize)

	var models []SubscriberModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	subscribers := make([]domain.Subscriber, 0, len(models))
	for i := range models {
		subscribers = append(subscribers, *subscriberModelToDomain(&models[i]))
	}

	return subscribers, total, nil
}

// ListActiveEmails returns every ACTIVE address in subscription order.
func (r *GormSubscriberRepo) ListActiveEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := r.db.WithContext(ctx).
		Model(&SubscriberModel{}).
		Where("status = ?", domain.SubscriberStatusActive).
		Order("created_at ASC").
		Order("id ASC").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}
