package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func TestTickLockExclusive(t *testing.T) {
	t.Parallel()

	mr := newTestMiniredis(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	first := NewTickLock(rdb, time.Minute, nil)
	second := NewTickLock(rdb, time.Minute, nil)

	lease, acquired, err := first.TryLock(context.Background())
	if err != nil {
		t.Fatalf("TryLock() error = %v", err)
	}
	if !acquired {
		t.Fatal("first replica should acquire the lock")
	}
	if ttl := mr.TTL(TickLockKey); ttl != time.Minute {
		t.Fatalf("lock ttl = %v, want %v", ttl, time.Minute)
	}

	other, acquired, err := second.TryLock(context.Background())
	if err != nil {
		t.Fatalf("second TryLock() error = %v", err)
	}
	if acquired || other != nil {
		t.Fatal("second replica should not acquire a held lock")
	}
	if !mr.Exists(TickLockKey) {
		t.Fatal("a failed attempt must not touch the holder's key")
	}

	lease.Release()
	lease.Release()
	if mr.Exists(TickLockKey) {
		t.Fatal("lock key should be deleted after release")
	}

	lease, acquired, err = second.TryLock(context.Background())
	if err != nil {
		t.Fatalf("TryLock() after release error = %v", err)
	}
	if !acquired {
		t.Fatal("lock should be free after release")
	}
	lease.Release()
}

func TestTickLockReleaseKeepsForeignToken(t *testing.T) {
	t.Parallel()

	mr := newTestMiniredis(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lock := NewTickLock(rdb, time.Minute, nil)
	lock.newToken = func() string { return "mine" }

	lease, acquired, err := lock.TryLock(context.Background())
	if err != nil || !acquired {
		t.Fatalf("TryLock() = %v, %v", acquired, err)
	}

	// Simulate expiry followed by another replica taking over.
	if err := mr.Set(TickLockKey, "theirs"); err != nil {
		t.Fatalf("miniredis Set() error = %v", err)
	}

	lease.Release()

	got, err := mr.Get(TickLockKey)
	if err != nil {
		t.Fatalf("miniredis Get() error = %v", err)
	}
	if got != "theirs" {
		t.Fatalf("lock value = %q, want foreign token preserved", got)
	}
}

func TestNewTickLockDefaultsTTL(t *testing.T) {
	t.Parallel()

	lock := NewTickLock(newTestRedisClient(t), 0, nil)
	if lock.ttl != DefaultTickLockTTL {
		t.Fatalf("ttl = %v, want %v", lock.ttl, DefaultTickLockTTL)
	}
}

func TestTickLockLeaseReportsTakeover(t *testing.T) {
	t.Parallel()

	mr := newTestMiniredis(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	lock := NewTickLock(rdb, 300*time.Millisecond, nil)
	lease, acquired, err := lock.TryLock(context.Background())
	if err != nil || !acquired {
		t.Fatalf("TryLock() = %v, %v", acquired, err)
	}
	t.Cleanup(lease.Release)

	select {
	case <-lease.Lost():
		t.Fatal("lease lost while still held")
	case <-time.After(250 * time.Millisecond):
	}

	if err := mr.Set(TickLockKey, "theirs"); err != nil {
		t.Fatalf("miniredis Set() error = %v", err)
	}

	select {
	case <-lease.Lost():
	case <-time.After(2 * time.Second):
		t.Fatal("lease did not report the takeover")
	}
}
