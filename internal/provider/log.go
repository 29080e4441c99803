package provider

import (
	"context"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"go.uber.org/zap"
)

// LogProvider writes messages to the log instead of delivering them. Local and staging use.
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Send(ctx context.Context, msg domain.MailMessage) (*ProviderResponse, error) {
	if err := msg.Validate(); err != nil {
		return nil, &ProviderError{Message: "invalid message", Cause: err}
	}

	p.logger.Info("mail delivered to log",
		zap.String("email", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("htmlBytes", len(msg.HTML)),
	)
	return &ProviderResponse{StatusCode: 200}, nil
}
