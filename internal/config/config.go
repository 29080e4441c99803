package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/robfig/cron/v3"
)

const (
	MailDriverSMTP     = "smtp"
	MailDriverWebhook  = "webhook"
	MailDriverSES      = "ses"
	MailDriverSendGrid = "sendgrid"
	MailDriverLog      = "log"
)

type Config struct {
	DatabaseDSN   string `env:"DATABASE_DSN,required=true"`
	RedisURL      string `env:"REDIS_URL"`
	APIPort       int    `env:"API_PORT,default=8080"`
	SchedulerPort int    `env:"SCHEDULER_PORT,default=9090"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`

	CronExpression       string `env:"CRON_EXPRESSION,default=*/5 * * * *"`
	BatchSize            int    `env:"BATCH_SIZE,default=100"`
	MaxRetries           int    `env:"MAX_RETRIES,default=3"`
	BatchDelayMillis     int    `env:"BATCH_DELAY_MS,default=2000"`
	SendingStaleAfterMin int    `env:"SENDING_STALE_AFTER_MIN,default=0"`

	MailDriver          string `env:"MAIL_DRIVER,default=smtp"`
	MailFrom            string `env:"MAIL_FROM,default=Newsletter <noreply@example.com>"`
	MailRateLimitPerSec int    `env:"MAIL_RATE_LIMIT_PER_SEC,default=0"`
	SMTPHost            string `env:"SMTP_HOST"`
	SMTPPort            int    `env:"SMTP_PORT,default=587"`
	SMTPUser            string `env:"SMTP_USER"`
	SMTPPass            string `env:"SMTP_PASS"`
	MailWebhookURL      string `env:"MAIL_WEBHOOK_URL"`
	AWSRegion           string `env:"AWS_REGION,default=us-east-1"`
	AWSAccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	SendGridAPIKey      string `env:"SENDGRID_API_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.MailDriver = strings.ToLower(strings.TrimSpace(cfg.MailDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks dispatch knobs and the fields the selected mail driver needs.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.CronExpression); err != nil {
		return fmt.Errorf("invalid CRON_EXPRESSION %q: %w", c.CronExpression, err)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be positive, got %d", c.MaxRetries)
	}
	if c.BatchDelayMillis < 0 {
		return fmt.Errorf("BATCH_DELAY_MS must not be negative, got %d", c.BatchDelayMillis)
	}
	if c.SendingStaleAfterMin < 0 {
		return fmt.Errorf("SENDING_STALE_AFTER_MIN must not be negative, got %d", c.SendingStaleAfterMin)
	}
	if c.MailRateLimitPerSec > 0 && strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("MAIL_RATE_LIMIT_PER_SEC requires REDIS_URL")
	}

	switch c.MailDriver {
	case MailDriverSMTP:
		if strings.TrimSpace(c.SMTPHost) == "" {
			return fmt.Errorf("SMTP_HOST is required for mail driver %q", c.MailDriver)
		}
	case MailDriverWebhook:
		if strings.TrimSpace(c.MailWebhookURL) == "" {
			return fmt.Errorf("MAIL_WEBHOOK_URL is required for mail driver %q", c.MailDriver)
		}
	case MailDriverSES:
		if strings.TrimSpace(c.AWSRegion) == "" {
			return fmt.Errorf("AWS_REGION is required for mail driver %q", c.MailDriver)
		}
	case MailDriverSendGrid:
		if strings.TrimSpace(c.SendGridAPIKey) == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required for mail driver %q", c.MailDriver)
		}
	case MailDriverLog:
	default:
		return fmt.Errorf("unsupported MAIL_DRIVER %q", c.MailDriver)
	}

	return nil
}

func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMillis) * time.Millisecond
}

// SendingStaleAfter is zero when stale SENDING reclaim is disabled.
func (c *Config) SendingStaleAfter() time.Duration {
	return time.Duration(c.SendingStaleAfterMin) * time.Minute
}
