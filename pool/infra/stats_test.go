package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"pool-gatekeeper/pool/domain"
)

func TestMemoryStatsStore_CountsByOutcomeAndResource(t *testing.T) {
	s := NewMemoryStatsStore()
	ctx := context.Background()

	events := []domain.DecisionEvent{
		{ResourceID: 4, Outcome: domain.OutcomeAdmitted},
		{ResourceID: 4, Outcome: domain.OutcomeAdmitted},
		{ResourceID: 4, Outcome: domain.OutcomeDowngraded},
		{ResourceID: 7, Outcome: domain.OutcomeDenied},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	total := s.Total()
	if total.Admitted != 2 || total.Downgraded != 1 || total.Denied != 1 {
		t.Fatalf("unexpected totals: %+v", total)
	}

	byResource := s.ByResource()
	if got := byResource["4"]; got.Admitted != 2 || got.Downgraded != 1 || got.Denied != 0 {
		t.Fatalf("unexpected counters for resource 4: %+v", got)
	}
	if got := byResource["7"]; got.Denied != 1 {
		t.Fatalf("unexpected counters for resource 7: %+v", got)
	}
}

func TestRedisStatsStore_RecordIncrementsCounters(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	at := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("test:stats"), WithStatsTTL(time.Hour))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Record(ctx, domain.DecisionEvent{ResourceID: 4, Outcome: domain.OutcomeAdmitted, At: at}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := s.Record(ctx, domain.DecisionEvent{ResourceID: 4, Outcome: domain.OutcomeDenied, At: at}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if got := mr.HGet("test:stats:total", "admitted"); got != "3" {
		t.Fatalf("total admitted = %q, want 3", got)
	}
	if got := mr.HGet("test:stats:resource:4", "denied"); got != "1" {
		t.Fatalf("resource denied = %q, want 1", got)
	}

	bucketKey := "test:stats:minute:202603101430"
	if got := mr.HGet(bucketKey, "admitted"); got != "3" {
		t.Fatalf("bucket admitted = %q, want 3", got)
	}
	if ttl := mr.TTL(bucketKey); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("bucket ttl = %v, want within (0, 1h]", ttl)
	}
}

func TestRedisStatsStore_BucketNoneSkipsTimeSeries(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisStatsStore(rdb, WithStatsPrefix("test:stats"), WithStatsBucket("none"))
	if err := s.Record(context.Background(), domain.DecisionEvent{ResourceID: 4, Outcome: domain.OutcomeAdmitted, At: time.Now()}); err != nil {
		t.Fatalf("record: %v", err)
	}

	for _, k := range mr.Keys() {
		if len(k) > len("test:stats:minute") && k[:len("test:stats:minute")] == "test:stats:minute" {
			t.Fatalf("unexpected time-series key %q with bucket=none", k)
		}
	}
}
