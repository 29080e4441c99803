package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"go.uber.org/zap"
)

type CreateCampaignInput struct {
	Title       string
	Subject     string
	HTML        string
	Status      string
	ScheduledAt *time.Time
}

type CampaignService struct {
	campaigns repository.CampaignRepository
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

func NewCampaignService(campaigns repository.CampaignRepository, logger *zap.Logger) *CampaignService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CampaignService{
		campaigns: campaigns,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create stores a new campaign with an empty ledger. Status defaults to
// SCHEDULED and scheduledAt to now; only DRAFT and SCHEDULED are accepted.
func (s *CampaignService) Create(ctx context.Context, input CreateCampaignInput) (*domain.Campaign, error) {
	status := domain.CampaignStatusScheduled
	if raw := strings.TrimSpace(input.Status); raw != "" {
		parsed, err := domain.ParseCampaignStatusFromString(raw)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	if status != domain.CampaignStatusDraft && status != domain.CampaignStatusScheduled {
		return nil, fmt.Errorf("%w: campaigns can only be created as DRAFT or SCHEDULED", domain.ErrValidation)
	}

	scheduledAt := s.now().UTC()
	if input.ScheduledAt != nil {
		scheduledAt = input.ScheduledAt.UTC()
	}

	campaign := &domain.Campaign{
		ID:          s.newID(),
		Title:       strings.TrimSpace(input.Title),
		Subject:     strings.TrimSpace(input.Subject),
		HTML:        input.HTML,
		Status:      status,
		ScheduledAt: scheduledAt,
		Recipients:  []domain.Recipient{},
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	s.logger.Info("campaign created",
		zap.String("campaignId", campaign.ID),
		zap.String("status", campaign.Status.String()),
		zap.Time("scheduledAt", campaign.ScheduledAt),
	)
	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invalid campaign id", domain.ErrValidation)
	}
	return s.campaigns.GetByID(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, params repository.ListParams) ([]domain.Campaign, int64, error) {
	if params.Status != nil {
		status, err := domain.ParseCampaignStatusFromString(*params.Status)
		if err != nil {
			return nil, 0, err
		}
		normalized := status.String()
		params.Status = &normalized
	}
	return s.campaigns.List(ctx, params)
}
