package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/lock"
	"github.com/kursadbilgin/newsletter-engine/internal/observability"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	defaultCronExpression = "*/5 * * * *"
	statusUpdateTimeout   = 5 * time.Second
)

// TickLocker guards a tick across replicas.
type TickLocker = lock.Locker

// ErrTickLockLost stops a tick whose lock expired or was taken over, so no
// further campaign is claimed without it.
var ErrTickLockLost = errors.New("tick lock lost")

type CampaignRunner interface {
	Dispatch(ctx context.Context, campaign domain.Campaign) error
}

type SchedulerConfig struct {
	CronExpression string
	// StaleAfter > 0 returns SENDING campaigns with no ledger write for that
	// long to SCHEDULED at the start of each tick.
	StaleAfter time.Duration
}

// CampaignScheduler fires on a cron schedule and hands every due campaign to
// the runner, one at a time. A tick that outlasts the next fire time delays it.
type CampaignScheduler struct {
	campaigns repository.CampaignRepository
	runner    CampaignRunner
	locker    TickLocker
	schedule  cron.Schedule
	staleFor  time.Duration
	metrics   *observability.Metrics
	logger    *zap.Logger

	now       func() time.Time
	newTickID func() string

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewCampaignScheduler(
	campaigns repository.CampaignRepository,
	runner CampaignRunner,
	locker TickLocker,
	cfg SchedulerConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*CampaignScheduler, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("campaign runner is required")
	}
	if cfg.CronExpression == "" {
		cfg.CronExpression = defaultCronExpression
	}
	schedule, err := cron.ParseStandard(cfg.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.CronExpression, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignScheduler{
		campaigns: campaigns,
		runner:    runner,
		locker:    locker,
		schedule:  schedule,
		staleFor:  max(cfg.StaleAfter, 0),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		newTickID: uuid.NewString,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start runs one tick immediately and then one per cron fire until ctx is
// cancelled or Stop is called.
func (s *CampaignScheduler) Start(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduler initial tick failed", zap.Error(err))
	}

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("scheduler tick failed", zap.Error(err))
			}
		}
	}
}

// Stop ends the Start loop after the running tick, if any, completes.
func (s *CampaignScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// RunOnce executes a single tick. Campaign failures are recorded on the
// campaign; only lock and discovery errors are returned.
func (s *CampaignScheduler) RunOnce(ctx context.Context) error {
	started := s.now()
	ctx = observability.WithTickID(ctx, s.newTickID())
	logger := observability.WithContextLogger(s.logger, ctx)

	var lockLost <-chan struct{}
	if s.locker != nil {
		lease, acquired, err := s.locker.TryLock(ctx)
		if err != nil {
			s.metrics.IncTick("error")
			return fmt.Errorf("failed to acquire tick lock: %w", err)
		}
		if !acquired {
			s.metrics.IncTick("skipped")
			logger.Debug("tick lock held elsewhere, skipping tick")
			return nil
		}
		defer lease.Release()
		lockLost = lease.Lost()
	}
	defer func() { s.metrics.ObserveTickDuration(s.now().Sub(started)) }()

	if s.staleFor > 0 {
		reclaimed, err := s.campaigns.ReclaimStaleSending(ctx, started.Add(-s.staleFor))
		if err != nil {
			logger.Error("failed to reclaim stale campaigns", zap.Error(err))
		} else if reclaimed > 0 {
			s.metrics.AddCampaignsReclaimed(int(reclaimed))
			logger.Warn("reclaimed stale sending campaigns", zap.Int64("count", reclaimed))
		}
	}

	due, err := s.campaigns.FindDue(ctx, started)
	if err != nil {
		s.metrics.IncTick("error")
		return fmt.Errorf("failed to find due campaigns: %w", err)
	}
	if len(due) == 0 {
		s.metrics.IncTick("idle")
		logger.Debug("no scheduled campaigns due")
		return nil
	}

	logger.Info("processing due campaigns", zap.Int("count", len(due)))
	for i := range due {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-lockLost:
			s.metrics.IncTick("lock_lost")
			logger.Warn("tick lock lost, leaving remaining campaigns for the next tick",
				zap.Int("processed", i),
				zap.Int("remaining", len(due)-i),
			)
			return fmt.Errorf("%w after %d of %d campaigns", ErrTickLockLost, i, len(due))
		default:
		}
		s.processCampaign(ctx, due[i], logger)
	}

	s.metrics.IncTick("processed")
	return nil
}

func (s *CampaignScheduler) processCampaign(ctx context.Context, campaign domain.Campaign, logger *zap.Logger) {
	logger = logger.With(zap.String("campaignId", campaign.ID), zap.String("title", campaign.Title))

	claimed, err := s.campaigns.TransitionStatus(ctx, campaign.ID, domain.CampaignStatusScheduled, domain.CampaignStatusSending)
	if err != nil {
		logger.Error("failed to claim campaign", zap.Error(err))
		return
	}
	if !claimed {
		logger.Info("campaign no longer scheduled, skipping")
		return
	}
	campaign.Status = domain.CampaignStatusSending

	s.metrics.IncCampaignInFlight()
	defer s.metrics.DecCampaignInFlight()

	logger.Info("campaign sending started")
	err = s.runner.Dispatch(ctx, campaign)

	switch {
	case err == nil:
		s.finish(campaign.ID, domain.CampaignStatusCompleted, logger)
		logger.Info("campaign completed")
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// Interrupted by shutdown; the next tick resumes from the saved ledger.
		s.finish(campaign.ID, domain.CampaignStatusScheduled, logger)
		logger.Warn("campaign interrupted, returned to scheduled", zap.Error(err))
	default:
		s.finish(campaign.ID, domain.CampaignStatusFailed, logger)
		logger.Error("campaign failed", zap.Error(err))
	}
}

func (s *CampaignScheduler) finish(id string, status domain.CampaignStatus, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), statusUpdateTimeout)
	defer cancel()

	if err := s.campaigns.SetStatus(ctx, id, status); err != nil {
		logger.Error("failed to update campaign status",
			zap.String("status", status.String()),
			zap.Error(err),
		)
		return
	}
	if status != domain.CampaignStatusScheduled {
		s.metrics.IncCampaignFinished(status.String())
	}
}
