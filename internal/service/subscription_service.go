package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/provider"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	confirmationSubject = "Thanks for subscribing!"
	confirmationTimeout = 10 * time.Second
)

// UpdateSubscriptionInput carries the admin edits; nil fields are left as they are.
type UpdateSubscriptionInput struct {
	Email  *string
	Status *string
}

type SubscriptionService struct {
	subscribers repository.SubscriberRepository
	mailer      provider.Provider
	logger      *zap.Logger
	newID       func() string
}

// NewSubscriptionService accepts a nil mailer, in which case no confirmation is sent.
func NewSubscriptionService(subscribers repository.SubscriberRepository, mailer provider.Provider, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{
		subscribers: subscribers,
		mailer:      mailer,
		logger:      logger,
		newID:       uuid.NewString,
	}
}

// Subscribe adds the address or reactivates it when it was unsubscribed.
// An address that is already ACTIVE is a conflict.
func (s *SubscriptionService) Subscribe(ctx context.Context, rawEmail string) (*domain.Subscriber, error) {
	email, err := domain.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	existing, err := s.subscribers.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.Status == domain.SubscriberStatusActive:
		return nil, fmt.Errorf("%w: %s is already subscribed", domain.ErrConflict, email)
	case err == nil:
		if err := s.subscribers.UpdateStatus(ctx, existing.ID, domain.SubscriberStatusActive); err != nil {
			return nil, fmt.Errorf("failed to reactivate subscription: %w", err)
		}
		existing.Status = domain.SubscriberStatusActive
		s.logger.Info("subscription reactivated", zap.String("subscriberId", existing.ID))
		s.sendConfirmation(ctx, existing.Email)
		return existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("failed to look up subscription: %w", err)
	}

	subscriber := &domain.Subscriber{
		ID:     s.newID(),
		Email:  email,
		Status: domain.SubscriberStatusActive,
	}
	if err := s.subscribers.Create(ctx, subscriber); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: %s is already subscribed", domain.ErrConflict, email)
		}
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.logger.Info("subscription created", zap.String("subscriberId", subscriber.ID))
	s.sendConfirmation(ctx, subscriber.Email)
	return subscriber, nil
}

// Unsubscribe is idempotent for known addresses and ErrNotFound otherwise.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, rawEmail string) (*domain.Subscriber, error) {
	email, err := domain.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}

	existing, err := s.subscribers.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing.Status == domain.SubscriberStatusUnsubscribed {
		return existing, nil
	}

	if err := s.subscribers.UpdateStatus(ctx, existing.ID, domain.SubscriberStatusUnsubscribed); err != nil {
		return nil, fmt.Errorf("failed to unsubscribe: %w", err)
	}
	existing.Status = domain.SubscriberStatusUnsubscribed
	s.logger.Info("subscription cancelled", zap.String("subscriberId", existing.ID))
	return existing, nil
}

func (s *SubscriptionService) Get(ctx context.Context, id string) (*domain.Subscriber, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: invalid subscription id", domain.ErrValidation)
	}
	return s.subscribers.GetByID(ctx, id)
}

func (s *SubscriptionService) List(ctx context.Context, params repository.ListParams) ([]domain.Subscriber, int64, error) {
	if params.Status != nil {
		status, err := domain.ParseSubscriberStatusFromString(*params.Status)
		if err != nil {
			return nil, 0, err
		}
		normalized := status.String()
		params.Status = &normalized
	}
	return s.subscribers.List(ctx, params)
}

// Update applies the admin edits to an existing subscription. The address is
// normalized like on subscribe; moving it onto another subscriber's address is
// a conflict. An input with no fields returns the subscription unchanged.
func (s *SubscriptionService) Update(ctx context.Context, id string, input UpdateSubscriptionInput) (*domain.Subscriber, error) {
	subscriber, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Email == nil && input.Status == nil {
		return subscriber, nil
	}

	if input.Email != nil {
		email, err := domain.NormalizeEmail(*input.Email)
		if err != nil {
			return nil, err
		}
		subscriber.Email = email
	}
	if input.Status != nil {
		status, err := domain.ParseSubscriberStatusFromString(*input.Status)
		if err != nil {
			return nil, err
		}
		subscriber.Status = status
	}

	if err := s.subscribers.Update(ctx, subscriber); err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			return nil, fmt.Errorf("%w: %s is already subscribed", domain.ErrConflict, subscriber.Email)
		case errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	s.logger.Info("subscription updated",
		zap.String("subscriberId", subscriber.ID),
		zap.String("status", subscriber.Status.String()),
	)
	return subscriber, nil
}

// Remove deletes the subscription and returns it as it was before deletion.
func (s *SubscriptionService) Remove(ctx context.Context, id string) (*domain.Subscriber, error) {
	subscriber, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.subscribers.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to remove subscription: %w", err)
	}

	s.logger.Info("subscription removed", zap.String("subscriberId", subscriber.ID))
	return subscriber, nil
}

// sendConfirmation is best effort: the subscription stands even if the mail fails.
func (s *SubscriptionService) sendConfirmation(ctx context.Context, email string) {
	if s.mailer == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, confirmationTimeout)
	defer cancel()

	_, err := s.mailer.Send(ctx, domain.MailMessage{
		To:      email,
		Subject: confirmationSubject,
		HTML:    confirmationHTML(email),
	})
	if err != nil {
		s.logger.Warn("failed to send subscription confirmation", zap.String("email", email), zap.Error(err))
	}
}

func confirmationHTML(email string) string {
	return "<h1>Welcome!</h1>" +
		"<p>You have successfully subscribed to our newsletter with the email: <b>" + html.EscapeString(email) + "</b>.</p>" +
		"<p>Stay tuned for our updates!</p>"
}
