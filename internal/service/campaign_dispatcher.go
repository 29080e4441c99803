package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/observability"
	"github.com/kursadbilgin/newsletter-engine/internal/provider"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultBatchSize  = 100
	defaultMaxRetries = 3
	defaultBatchDelay = 2 * time.Second

	interruptSaveTimeout = 5 * time.Second
)

type DispatcherConfig struct {
	BatchSize  int
	MaxRetries int
	BatchDelay time.Duration
}

// CampaignDispatcher delivers one campaign: it merges active subscribers into
// the ledger, sends in batches with per-recipient retries and checkpoints the
// full ledger after every batch.
type CampaignDispatcher struct {
	campaigns   repository.CampaignRepository
	subscribers repository.SubscriberRepository
	provider    provider.Provider
	metrics     *observability.Metrics
	logger      *zap.Logger

	batchSize  int
	maxRetries int
	batchDelay time.Duration

	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

func NewCampaignDispatcher(
	campaigns repository.CampaignRepository,
	subscribers repository.SubscriberRepository,
	mailer provider.Provider,
	cfg DispatcherConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*CampaignDispatcher, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if subscribers == nil {
		return nil, fmt.Errorf("subscriber repository is required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mail provider is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = defaultBatchDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignDispatcher{
		campaigns:   campaigns,
		subscribers: subscribers,
		provider:    mailer,
		metrics:     metrics,
		logger:      logger,
		batchSize:   cfg.BatchSize,
		maxRetries:  cfg.MaxRetries,
		batchDelay:  cfg.BatchDelay,
		now:         time.Now,
		sleep:       sleepWithContext,
		randFloat:   rand.Float64,
	}, nil
}

// Dispatch runs the campaign to the end of its ledger. Send failures stay in
// the ledger; store errors, rate limiter outages and context cancellation
// before the last checkpoint are returned.
func (d *CampaignDispatcher) Dispatch(ctx context.Context, campaign domain.Campaign) error {
	ctx = observability.WithCampaignID(ctx, campaign.ID)
	logger := observability.WithContextLogger(d.logger, ctx)

	emails, err := d.subscribers.ListActiveEmails(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active subscribers: %w", err)
	}

	ledger, added := domain.MergeRecipients(campaign.Recipients, emails)
	if err := d.campaigns.SaveLedger(ctx, campaign.ID, ledger); err != nil {
		return fmt.Errorf("failed to persist merged ledger: %w", err)
	}
	logger.Info("campaign ledger prepared",
		zap.Int("activeSubscribers", len(emails)),
		zap.Int("added", added),
		zap.Int("recipients", len(ledger)),
	)

	msg := domain.MailMessage{Subject: campaign.Subject, HTML: campaign.HTML}

	for start, batch := 0, 1; start < len(ledger); start, batch = start+d.batchSize, batch+1 {
		end := min(start+d.batchSize, len(ledger))
		batchLogger := logger.With(zap.Int("batch", batch))
		batchLogger.Debug("sending batch", zap.Int("from", start), zap.Int("to", end))

		for i := start; i < end; i++ {
			if ledger[i].Status == domain.RecipientStatusSent {
				continue
			}
			if err := d.sendWithRetry(ctx, &ledger[i], msg, batchLogger); err != nil {
				d.saveInterrupted(campaign.ID, ledger, batchLogger)
				return err
			}
		}

		if err := d.campaigns.SaveLedger(ctx, campaign.ID, ledger); err != nil {
			return fmt.Errorf("failed to checkpoint ledger after batch %d: %w", batch, err)
		}
		d.metrics.IncLedgerCheckpoint()

		if err := d.sleep(ctx, d.batchDelay); err != nil {
			if end < len(ledger) {
				return err
			}
			// Every recipient is settled and checkpointed; the delay after the
			// last batch only paces the next campaign.
			logger.Debug("trailing batch delay cut short", zap.Error(err))
		}
	}

	counts := (&domain.Campaign{Recipients: ledger}).RecipientCounts()
	logger.Info("campaign dispatch finished",
		zap.Int("sent", counts[domain.RecipientStatusSent]),
		zap.Int("failed", counts[domain.RecipientStatusFailed]),
		zap.Int("pending", counts[domain.RecipientStatusPending]),
	)

	return nil
}

// sendWithRetry continues from the recipient's recorded attempt count and
// mutates the ledger entry in place. It only returns an error when ctx ends or
// the shared rate limiter is unavailable.
func (d *CampaignDispatcher) sendWithRetry(ctx context.Context, r *domain.Recipient, msg domain.MailMessage, logger *zap.Logger) error {
	msg.To = r.Email

	if r.AttemptCount >= d.maxRetries {
		if r.Status != domain.RecipientStatusFailed {
			r.Status = domain.RecipientStatusFailed
			if r.Error == "" {
				r.Error = "retry limit reached"
			}
			d.metrics.IncRecipient(string(domain.RecipientStatusFailed))
		}
		return nil
	}

	for attempt := r.AttemptCount + 1; attempt <= d.maxRetries; attempt++ {
		started := d.now()
		_, err := d.provider.Send(ctx, msg)
		d.metrics.ObserveSendDuration(d.now().Sub(started))

		if err == nil {
			sentAt := d.now().UTC()
			r.Status = domain.RecipientStatusSent
			r.SentAt = &sentAt
			r.AttemptCount = attempt
			d.metrics.IncSendAttempt("success", "")
			d.metrics.IncRecipient(string(domain.RecipientStatusSent))
			logger.Debug("mail sent", zap.String("email", r.Email), zap.Int("attempt", attempt))
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, provider.ErrRateLimiterUnavailable) {
			// Not a delivery attempt; the recipient keeps its count.
			return fmt.Errorf("failed to send to %s: %w", r.Email, err)
		}

		r.AttemptCount = attempt
		r.Error = err.Error()
		d.metrics.IncSendAttempt("failure", failureReason(err))

		if attempt < d.maxRetries {
			delay := backoffDelay(attempt, d.randFloat)
			logger.Warn("mail send failed, retrying",
				zap.String("email", r.Email),
				zap.Int("attempt", attempt),
				zap.Duration("retryIn", delay),
				zap.Error(err),
			)
			if err := d.sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		r.Status = domain.RecipientStatusFailed
		d.metrics.IncRecipient(string(domain.RecipientStatusFailed))
		logger.Error("giving up on recipient",
			zap.String("email", r.Email),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
	}

	return nil
}

// saveInterrupted keeps progress made inside the current batch when dispatch
// stops early. It uses its own context because the dispatch context is done.
func (d *CampaignDispatcher) saveInterrupted(campaignID string, ledger []domain.Recipient, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), interruptSaveTimeout)
	defer cancel()

	if err := d.campaigns.SaveLedger(ctx, campaignID, ledger); err != nil {
		logger.Error("failed to persist ledger after interruption", zap.Error(err))
	}
}

func failureReason(err error) string {
	var providerErr *provider.ProviderError
	switch {
	case provider.IsTransient(err):
		return "transient"
	case errors.As(err, &providerErr):
		return "permanent"
	default:
		return "unknown"
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
