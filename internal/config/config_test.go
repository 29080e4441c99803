package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
	t.Setenv("SMTP_HOST", "smtp.example.com")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.SchedulerPort != 9090 {
		t.Errorf("SchedulerPort = %d, want 9090", cfg.SchedulerPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.CronExpression != "*/5 * * * *" {
		t.Errorf("CronExpression = %q, want */5 * * * *", cfg.CronExpression)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("BatchSize = %d, want 100", cfg.BatchSize)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BatchDelay() != 2*time.Second {
		t.Errorf("BatchDelay = %s, want 2s", cfg.BatchDelay())
	}
	if cfg.SendingStaleAfter() != 0 {
		t.Errorf("SendingStaleAfter = %s, want 0", cfg.SendingStaleAfter())
	}
	if cfg.MailDriver != MailDriverSMTP {
		t.Errorf("MailDriver = %s, want smtp", cfg.MailDriver)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, want 587", cfg.SMTPPort)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CRON_EXPRESSION", "0 6 * * *")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("BATCH_DELAY_MS", "500")
	t.Setenv("SENDING_STALE_AFTER_MIN", "30")
	t.Setenv("MAIL_DRIVER", " Webhook ")
	t.Setenv("MAIL_WEBHOOK_URL", "https://mail.example.com/send")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.CronExpression != "0 6 * * *" {
		t.Errorf("CronExpression = %q, want 0 6 * * *", cfg.CronExpression)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("BatchSize = %d, want 25", cfg.BatchSize)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.BatchDelay() != 500*time.Millisecond {
		t.Errorf("BatchDelay = %s, want 500ms", cfg.BatchDelay())
	}
	if cfg.SendingStaleAfter() != 30*time.Minute {
		t.Errorf("SendingStaleAfter = %s, want 30m", cfg.SendingStaleAfter())
	}
	if cfg.MailDriver != MailDriverWebhook {
		t.Errorf("MailDriver = %s, want webhook", cfg.MailDriver)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	os.Unsetenv("DATABASE_DSN")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_DSN, got nil")
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		DatabaseDSN:    "dsn",
		CronExpression: "*/5 * * * *",
		BatchSize:      100,
		MaxRetries:     3,
		MailDriver:     MailDriverLog,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad cron", mutate: func(c *Config) { c.CronExpression = "every five minutes" }, wantErr: true},
		{name: "zero batch size", mutate: func(c *Config) { c.BatchSize = 0 }, wantErr: true},
		{name: "zero retries", mutate: func(c *Config) { c.MaxRetries = 0 }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.BatchDelayMillis = -1 }, wantErr: true},
		{name: "negative stale window", mutate: func(c *Config) { c.SendingStaleAfterMin = -5 }, wantErr: true},
		{name: "rate limit without redis", mutate: func(c *Config) { c.MailRateLimitPerSec = 10 }, wantErr: true},
		{name: "smtp without host", mutate: func(c *Config) { c.MailDriver = MailDriverSMTP }, wantErr: true},
		{name: "webhook without url", mutate: func(c *Config) { c.MailDriver = MailDriverWebhook }, wantErr: true},
		{name: "sendgrid without key", mutate: func(c *Config) { c.MailDriver = MailDriverSendGrid }, wantErr: true},
		{name: "ses with region", mutate: func(c *Config) { c.MailDriver = MailDriverSES; c.AWSRegion = "eu-west-1" }},
		{name: "unknown driver", mutate: func(c *Config) { c.MailDriver = "pigeon" }, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
