package provider

import (
	"context"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
)

// Provider is the outbound mail gateway: one message, one attempt, no batching.
type Provider interface {
	Send(ctx context.Context, msg domain.MailMessage) (*ProviderResponse, error)
}

// ProviderResponse stores gateway call metadata for logs.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
