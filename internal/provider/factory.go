package provider

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/newsletter-engine/internal/config"
	"github.com/kursadbilgin/newsletter-engine/internal/ratelimit"
	"go.uber.org/zap"
)

// New builds the gateway selected by cfg.MailDriver. A non-nil limiter wraps it
// in RateLimited keyed by the driver name.
func New(ctx context.Context, cfg *config.Config, limiter ratelimit.RateLimiter, logger *zap.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)

	switch cfg.MailDriver {
	case config.MailDriverSMTP:
		p, err = NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	case config.MailDriverWebhook:
		p, err = NewWebhookProvider(cfg.MailWebhookURL, cfg.MailFrom)
	case config.MailDriverSES:
		p, err = NewSESProvider(ctx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, cfg.MailFrom)
	case config.MailDriverSendGrid:
		p, err = NewSendGridProvider(cfg.SendGridAPIKey, cfg.MailFrom)
	case config.MailDriverLog:
		p = NewLogProvider(logger)
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.MailDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s provider: %w", cfg.MailDriver, err)
	}

	if limiter != nil {
		p = NewRateLimited(p, limiter, cfg.MailDriver)
	}
	return p, nil
}
