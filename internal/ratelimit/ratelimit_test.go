package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func exerciseCounter(t *testing.T, c FailureCounter, threshold int) {
	t.Helper()
	ctx := context.Background()
	k := Key{UserID: "u1", OrganizationID: "org1"}
	other := Key{UserID: "u1", OrganizationID: "org2"}
	for i := 1; i <= threshold; i++ {
		blocked, err := c.Blocked(ctx, k)
		if err != nil || blocked {
			t.Fatalf("blocked too early at %d: %v", i, err)
		}
		n, err := c.RecordFailure(ctx, k)
		if err != nil || n != i {
			t.Fatalf("record %d: n=%d err=%v", i, n, err)
		}
	}
	if blocked, _ := c.Blocked(ctx, k); !blocked {
		t.Fatalf("expected block after %d failures", threshold)
	}
	if blocked, _ := c.Blocked(ctx, other); blocked {
		t.Fatalf("counters must be per organization")
	}
	if err := c.Reset(ctx, k); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if blocked, _ := c.Blocked(ctx, k); blocked {
		t.Fatalf("reset did not clear the counter")
	}
}

func TestMemoryCounter(t *testing.T) {
	exerciseCounter(t, NewMemory(3, time.Minute), 3)
}

func TestMemoryCounterWindowExpires(t *testing.T) {
	m := NewMemory(2, time.Minute)
	now := time.Unix(1000, 0)
	m.now = func() time.Time { return now }
	k := Key{UserID: "u", OrganizationID: "o"}
	_, _ = m.RecordFailure(context.Background(), k)
	_, _ = m.RecordFailure(context.Background(), k)
	if blocked, _ := m.Blocked(context.Background(), k); !blocked {
		t.Fatalf("expected block")
	}
	now = now.Add(2 * time.Minute)
	if blocked, _ := m.Blocked(context.Background(), k); blocked {
		t.Fatalf("window should have expired")
	}
	if n, _ := m.RecordFailure(context.Background(), k); n != 1 {
		t.Fatalf("counter should restart, got %d", n)
	}
}

func TestRedisCounter(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	exerciseCounter(t, NewRedis(rdb, 3, time.Minute), 3)

	r := NewRedis(rdb, 2, time.Minute)
	k := Key{UserID: "u9", OrganizationID: "org9"}
	_, _ = r.RecordFailure(context.Background(), k)
	_, _ = r.RecordFailure(context.Background(), k)
	if ttl := mr.TTL(r.key(k)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if blocked, _ := r.Blocked(context.Background(), k); blocked {
		t.Fatalf("key should have expired")
	}

	// A counter left without a TTL picks one up on the next failure.
	stuck := Key{UserID: "u10", OrganizationID: "org9"}
	if err := mr.Set(r.key(stuck), "5"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	n, err := r.RecordFailure(context.Background(), stuck)
	if err != nil || n != 6 {
		t.Fatalf("record = %d %v", n, err)
	}
	if ttl := mr.TTL(r.key(stuck)); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("stuck key ttl = %v", ttl)
	}
}
