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

type SubscriptionService interface {
	Subscribe(ctx context.Context, email string) (*domain.Subscriber, error)
	Unsubscribe(ctx context.Context, email string) (*domain.Subscriber, error)
	Get(ctx context.Context, id string) (*domain.Subscriber, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Subscriber, int64, error)
	Update(ctx context.Context, id string, input service.UpdateSubscriptionInput) (*domain.Subscriber, error)
	Remove(ctx context.Context, id string) (*domain.Subscriber, error)
}

type SubscriptionHandler struct {
	service SubscriptionService
}

func NewSubscriptionHandler(service SubscriptionService) (*SubscriptionHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("subscription service is required")
	}
	return &SubscriptionHandler{service: service}, nil
}

func RegisterSubscriptionRoutes(router fiber.Router, service SubscriptionService) error {
	h, err := NewSubscriptionHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/subscriptions", h.Subscribe)
	v1.Post("/subscriptions/unsubscribe", h.Unsubscribe)
	v1.Get("/subscriptions", h.ListSubscriptions)
	v1.Get("/subscriptions/:id", h.GetSubscription)
	v1.Patch("/subscriptions/:id", h.UpdateSubscription)
	v1.Delete("/subscriptions/:id", h.RemoveSubscription)

	return nil
}

type emailRequest struct {
	Email string `json:"email"`
}

type updateSubscriptionRequest struct {
	Email  *string `json:"email"`
	Status *string `json:"status"`
}

type subscriptionResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type listSubscriptionsResponse struct {
	Data []subscriptionResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

func (h *SubscriptionHandler) Subscribe(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	subscriber, err := h.service.Subscribe(c.UserContext(), req.Email)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toSubscriptionResponse(subscriber))
}

func (h *SubscriptionHandler) Unsubscribe(c *fiber.Ctx) error {
	var req emailRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	subscriber, err := h.service.Unsubscribe(c.UserContext(), req.Email)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(toSubscriptionResponse(subscriber))
}

func (h *SubscriptionHandler) GetSubscription(c *fiber.Ctx) error {
	subscriber, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(toSubscriptionResponse(subscriber))
}

func (h *SubscriptionHandler) UpdateSubscription(c *fiber.Ctx) error {
	var req updateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	subscriber, err := h.service.Update(c.UserContext(), c.Params("id"), service.UpdateSubscriptionInput{
		Email:  req.Email,
		Status: req.Status,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(toSubscriptionResponse(subscriber))
}

func (h *SubscriptionHandler) RemoveSubscription(c *fiber.Ctx) error {
	subscriber, err := h.service.Remove(c.UserContext(), c.Params("id"))
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(toSubscriptionResponse(subscriber))
}

func (h *SubscriptionHandler) ListSubscriptions(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	subscribers, total, err := h.service.List(c.UserContext(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]subscriptionResponse, 0, len(subscribers))
	for i := range subscribers {
		data = append(data, toSubscriptionResponse(&subscribers[i]))
	}

	return c.JSON(listSubscriptionsResponse{
		Data: data,
		Meta: listMeta{Page: params.Page, PageSize: params.PageSize, Total: total},
	})
}

func toSubscriptionResponse(s *domain.Subscriber) subscriptionResponse {
	return subscriptionResponse{
		ID:        s.ID,
		Email:     s.Email,
		Status:    s.Status.String(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
