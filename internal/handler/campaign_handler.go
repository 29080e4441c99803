package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"github.com/kursadbilgin/newsletter-engine/internal/service"
)

type CampaignService interface {
	Create(ctx context.Context, input service.CreateCampaignInput) (*domain.Campaign, error)
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Campaign, int64, error)
}

type CampaignHandler struct {
	service CampaignService
}

func NewCampaignHandler(service CampaignService) (*CampaignHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	return &CampaignHandler{service: service}, nil
}

func RegisterCampaignRoutes(router fiber.Router, service CampaignService) error {
	h, err := NewCampaignHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/campaigns", h.CreateCampaign)
	v1.Get("/campaigns", h.ListCampaigns)
	v1.Get("/campaigns/:id", h.GetCampaign)

	return nil
}

type createCampaignRequest struct {
	Title       string     `json:"title"`
	Subject     string     `json:"subject"`
	HTML        string     `json:"html"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type campaignResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Subject     string             `json:"subject"`
	HTML        string             `json:"html"`
	Status      string             `json:"status"`
	ScheduledAt time.Time          `json:"scheduledAt"`
	Counts      recipientCounts    `json:"counts"`
	Recipients  []domain.Recipient `json:"recipients,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type recipientCounts struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

type listCampaignsResponse struct {
	Data []campaignResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req createCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	created, err := h.service.Create(c.UserContext(), service.CreateCampaignInput{
		Title:       req.Title,
		Subject:     req.Subject,
		HTML:        req.HTML,
		Status:      req.Status,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toCampaignResponse(created, false))
}

// GetCampaign returns the campaign with its full recipient ledger.
func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	campaign, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(toCampaignResponse(campaign, true))
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	campaigns, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		data = append(data, toCampaignResponse(&campaigns[i], false))
	}

	return c.JSON(listCampaignsResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func toCampaignResponse(c *domain.Campaign, withLedger bool) campaignResponse {
	counts := c.RecipientCounts()
	resp := campaignResponse{
		ID:          c.ID,
		Title:       c.Title,
		Subject:     c.Subject,
		HTML:        c.HTML,
		Status:      c.Status.String(),
		ScheduledAt: c.ScheduledAt,
		Counts: recipientCounts{
			Total:   len(c.Recipients),
			Pending: counts[domain.RecipientStatusPending],
			Sent:    counts[domain.RecipientStatusSent],
			Failed:  counts[domain.RecipientStatusFailed],
		},
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if withLedger {
		resp.Recipients = domain.CloneRecipients(c.Recipients)
	}
	return resp
}
