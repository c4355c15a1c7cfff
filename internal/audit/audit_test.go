package audit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "u1", OrganizationID: "o1"})
	if got := ActorFrom(ctx); got.UserID != "u1" || got.OrganizationID != "o1" {
		t.Fatalf("actor = %+v", got)
	}
	if got := ActorFrom(context.Background()); got != (Actor{}) {
		t.Fatalf("expected empty actor, got %+v", got)
	}
}

func exerciseSink(t *testing.T, s Sink) {
	t.Helper()
	ctx := context.Background()
	for i, code := range []string{"A", "B", "C"} {
		ev := Event{Code: code, OrganizationID: "o1", Timestamp: time.Unix(int64(i), 0).UTC()}
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := s.Record(ctx, Event{Code: "X", OrganizationID: "o2"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := s.Recent(ctx, "o1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 || got[0].Code != "C" || got[1].Code != "B" {
		t.Fatalf("recent = %+v", got)
	}
	all, _ := s.Recent(ctx, "o1", 0)
	if len(all) != 3 {
		t.Fatalf("retention: got %d events", len(all))
	}
}

func TestMemorySink(t *testing.T) {
	exerciseSink(t, NewMemory(3))
	m := NewMemory(1)
	_ = m.Record(context.Background(), Event{Code: "A", OrganizationID: "o"})
	_ = m.Record(context.Background(), Event{Code: "B", OrganizationID: "o"})
	got, _ := m.Recent(context.Background(), "o", 0)
	if len(got) != 1 || got[0].Code != "B" {
		t.Fatalf("cap not applied: %+v", got)
	}
}

func TestRedisSink(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	exerciseSink(t, NewRedisSink(rdb, 3))

	s := NewRedisSink(rdb, 2)
	for i := 0; i < 5; i++ {
		_ = s.Record(context.Background(), Event{Code: "T", OrganizationID: "capped"})
	}
	n, err := rdb.LLen(context.Background(), "langop:audit:capped").Result()
	if err != nil || n != 2 {
		t.Fatalf("list length = %d err=%v", n, err)
	}
}
