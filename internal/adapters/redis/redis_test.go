package redisad_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "feedback_ingest/internal/adapters/redis"
	"feedback_ingest/internal/domain"
)

func newRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr
}

func TestCache_SetGetDel(t *testing.T) {
	mr := newRedis(t)
	cache := redisad.NewCache(redisad.NewClient(mr.Addr(), "", 0))
	ctx := context.Background()

	var out domain.Totals
	if ok, err := cache.Get(ctx, "k", &out); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, "k", domain.Totals{Pending: 2, Processed: 5}, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ok, err := cache.Get(ctx, "k", &out); !ok || err != nil || out.Pending != 2 || out.Processed != 5 {
		t.Fatalf("unexpected get: ok=%v err=%v out=%+v", ok, err, out)
	}
	if ttl := mr.TTL("k"); ttl != 60*time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	if err := cache.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("k") {
		t.Fatalf("key should be gone")
	}
}

func TestLocker_SingleHolder(t *testing.T) {
	mr := newRedis(t)
	client := redisad.NewClient(mr.Addr(), "", 0)
	a := redisad.NewLocker(client)
	b := redisad.NewLocker(client)
	ctx := context.Background()

	unlock, err := a.TryLock(ctx, "ingest:lock", time.Minute)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := b.TryLock(ctx, "ingest:lock", time.Minute); !errors.Is(err, domain.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if err := unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	unlock2, err := b.TryLock(ctx, "ingest:lock", time.Minute)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	_ = unlock2(ctx)
}

func TestLocker_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	mr := newRedis(t)
	client := redisad.NewClient(mr.Addr(), "", 0)
	l := redisad.NewLocker(client)
	ctx := context.Background()

	unlockOld, err := l.TryLock(ctx, "ingest:lock", time.Second)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	mr.FastForward(2 * time.Second)

	unlockNew, err := l.TryLock(ctx, "ingest:lock", time.Minute)
	if err != nil {
		t.Fatalf("lock after expiry: %v", err)
	}
	_ = unlockOld(ctx)
	if !mr.Exists("ingest:lock") {
		t.Fatalf("old owner must not release the new owner's lock")
	}
	_ = unlockNew(ctx)
}
