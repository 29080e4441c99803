package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/newsletter-engine/internal/lock"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	TickLockKey        = "lock:newsletter:tick"
	DefaultTickLockTTL = 2 * time.Minute
)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// TickLock keeps scheduler ticks from overlapping across replicas. The holder
// refreshes the TTL while the tick runs, so a crashed replica frees the lock
// after one TTL.
type TickLock struct {
	client   *goredis.Client
	key      string
	ttl      time.Duration
	newToken func() string
	logger   *zap.Logger
}

func NewTickLock(client *goredis.Client, ttl time.Duration, logger *zap.Logger) *TickLock {
	if ttl <= 0 {
		ttl = DefaultTickLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TickLock{
		client:   client,
		key:      TickLockKey,
		ttl:      ttl,
		newToken: uuid.NewString,
		logger:   logger,
	}
}

// TryLock returns acquired=false without error when another replica holds the lock.
// The returned lease must be released once the tick finishes.
func (l *TickLock) TryLock(ctx context.Context) (lock.Lease, bool, error) {
	token := l.newToken()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire tick lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	lease := &tickLease{
		lock:  l,
		token: token,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
		lost:  make(chan struct{}),
	}
	go lease.keepAlive()

	return lease, true, nil
}

type tickLease struct {
	lock  *TickLock
	token string

	stop        chan struct{}
	done        chan struct{}
	lost        chan struct{}
	releaseOnce sync.Once
}

func (t *tickLease) Lost() <-chan struct{} {
	return t.lost
}

func (t *tickLease) Release() {
	t.releaseOnce.Do(func() {
		close(t.stop)
		<-t.done

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, t.lock.client, []string{t.lock.key}, t.token).Err(); err != nil {
			t.lock.logger.Warn("failed to release tick lock", zap.Error(err))
		}
	})
}

// keepAlive refreshes the TTL every ttl/3. The lease counts as lost when the
// key no longer holds our token or no refresh succeeded for a full TTL.
func (t *tickLease) keepAlive() {
	defer close(t.done)

	l := t.lock
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	lastExtended := time.Now()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			extended, err := extendScript.Run(ctx, l.client, []string{l.key}, t.token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				l.logger.Warn("failed to extend tick lock", zap.Error(err))
				if time.Since(lastExtended) < l.ttl {
					continue
				}
			} else if extended != 0 {
				lastExtended = time.Now()
				continue
			}
			l.logger.Warn("tick lock lost before tick finished")
			close(t.lost)
			return
		}
	}
}
