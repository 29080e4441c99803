package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kursadbilgin/newsletter-engine/internal/domain"
	"github.com/kursadbilgin/newsletter-engine/internal/lock"
	"github.com/kursadbilgin/newsletter-engine/internal/provider"
	"github.com/kursadbilgin/newsletter-engine/internal/repository"
)

type fakeCampaignRepo struct {
	createFn              func(ctx context.Context, c *domain.Campaign) error
	getByIDFn             func(ctx context.Context, id string) (*domain.Campaign, error)
	listFn                func(ctx context.Context, params repository.ListParams) ([]domain.Campaign, int64, error)
	findDueFn             func(ctx context.Context, now time.Time) ([]domain.Campaign, error)
	setStatusFn           func(ctx context.Context, id string, status domain.CampaignStatus) error
	transitionStatusFn    func(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error)
	saveLedgerFn          func(ctx context.Context, id string, recipients []domain.Recipient) error
	reclaimStaleSendingFn func(ctx context.Context, olderThan time.Time) (int64, error)
}

func (f *fakeCampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if f.createFn != nil {
		return f.createFn(ctx, c)
	}
	return nil
}

func (f *fakeCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCampaignRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Campaign, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeCampaignRepo) FindDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	if f.findDueFn != nil {
		return f.findDueFn(ctx, now)
	}
	return nil, nil
}

func (f *fakeCampaignRepo) SetStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	if f.setStatusFn != nil {
		return f.setStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakeCampaignRepo) TransitionStatus(ctx context.Context, id string, from, to domain.CampaignStatus) (bool, error) {
	if f.transitionStatusFn != nil {
		return f.transitionStatusFn(ctx, id, from, to)
	}
	return true, nil
}

func (f *fakeCampaignRepo) SaveLedger(ctx context.Context, id string, recipients []domain.Recipient) error {
	if f.saveLedgerFn != nil {
		return f.saveLedgerFn(ctx, id, recipients)
	}
	return nil
}

func (f *fakeCampaignRepo) ReclaimStaleSending(ctx context.Context, olderThan time.Time) (int64, error) {
	if f.reclaimStaleSendingFn != nil {
		return f.reclaimStaleSendingFn(ctx, olderThan)
	}
	return 0, nil
}

type fakeSubscriberRepo struct {
	createFn           func(ctx context.Context, s *domain.Subscriber) error
	getByIDFn          func(ctx context.Context, id string) (*domain.Subscriber, error)
	getByEmailFn       func(ctx context.Context, email string) (*domain.Subscriber, error)
	updateStatusFn     func(ctx context.Context, id string, status domain.SubscriberStatus) error
	updateFn           func(ctx context.Context, s *domain.Subscriber) error
	deleteFn           func(ctx context.Context, id string) error
	listFn             func(ctx context.Context, params repository.ListParams) ([]domain.Subscriber, int64, error)
	listActiveEmailsFn func(ctx context.Context) ([]string, error)
}

func (f *fakeSubscriberRepo) Create(ctx context.Context, s *domain.Subscriber) error {
	if f.createFn != nil {
		return f.createFn(ctx, s)
	}
	return nil
}

func (f *fakeSubscriberRepo) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	if f.getByEmailFn != nil {
		return f.getByEmailFn(ctx, email)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeSubscriberRepo) UpdateStatus(ctx context.Context, id string, status domain.SubscriberStatus) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakeSubscriberRepo) Update(ctx context.Context, s *domain.Subscriber) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, s)
	}
	return nil
}

func (f *fakeSubscriberRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}
	return nil
}

func (f *fakeSubscriberRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Subscriber, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeSubscriberRepo) ListActiveEmails(ctx context.Context) ([]string, error) {
	if f.listActiveEmailsFn != nil {
		return f.listActiveEmailsFn(ctx)
	}
	return nil, nil
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  []string
	sendFn func(ctx context.Context, msg domain.MailMessage) (*provider.ProviderResponse, error)
}

func (f *fakeProvider) Send(ctx context.Context, msg domain.MailMessage) (*provider.ProviderResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg.To)
	f.mu.Unlock()

	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.ProviderResponse{StatusCode: 200}, nil
}

func (f *fakeProvider) callCount(email string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, to := range f.calls {
		if to == email {
			n++
		}
	}
	return n
}

type fakeRunner struct {
	dispatchFn func(ctx context.Context, campaign domain.Campaign) error
}

func (f *fakeRunner) Dispatch(ctx context.Context, campaign domain.Campaign) error {
	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, campaign)
	}
	return nil
}

type fakeLocker struct {
	tryLockFn func(ctx context.Context) (lock.Lease, bool, error)
}

func (f *fakeLocker) TryLock(ctx context.Context) (lock.Lease, bool, error) {
	return f.tryLockFn(ctx)
}

type fakeLease struct {
	lost     chan struct{}
	released atomic.Int32
}

func newFakeLease() *fakeLease {
	return &fakeLease{lost: make(chan struct{})}
}

func (l *fakeLease) Lost() <-chan struct{} { return l.lost }

func (l *fakeLease) Release() { l.released.Add(1) }

// memCampaignStore is an in-memory CampaignRepository for end-to-end tick tests.
type memCampaignStore struct {
	fakeCampaignRepo

	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	saveErr   map[string]error
	saves     map[string]int
}

func newMemCampaignStore(campaigns ...domain.Campaign) *memCampaignStore {
	s := &memCampaignStore{
		campaigns: make(map[string]*domain.Campaign, len(campaigns)),
		saveErr:   make(map[string]error),
		saves:     make(map[string]int),
	}
	for i := range campaigns {
		c := campaigns[i]
		c.Recipients = domain.CloneRecipients(c.Recipients)
		s.campaigns[c.ID] = &c
	}
	return s
}

func (s *memCampaignStore) FindDue(_ context.Context, now time.Time) ([]domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]domain.Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		if c.IsDue(now) {
			copied := *c
			copied.Recipients = domain.CloneRecipients(c.Recipients)
			due = append(due, copied)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].ScheduledAt.Before(due[j].ScheduledAt)
		}
		return due[i].ID < due[j].ID
	})
	return due, nil
}

func (s *memCampaignStore) SetStatus(_ context.Context, id string, status domain.CampaignStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	return nil
}

func (s *memCampaignStore) TransitionStatus(_ context.Context, id string, from, to domain.CampaignStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	return true, nil
}

func (s *memCampaignStore) SaveLedger(_ context.Context, id string, recipients []domain.Recipient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveErr[id]; err != nil {
		return err
	}
	c, ok := s.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Recipients = domain.CloneRecipients(recipients)
	s.saves[id]++
	return nil
}

func (s *memCampaignStore) get(id string) domain.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *s.campaigns[id]
	c.Recipients = domain.CloneRecipients(c.Recipients)
	return c
}

func noSleep(context.Context, time.Duration) error { return nil }

func fixedRand() float64 { return 0.5 }
