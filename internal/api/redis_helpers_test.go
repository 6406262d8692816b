package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type stubCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func (s *stubCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if s.err != nil {
		cmd.SetErr(s.err)
		return cmd
	}
	s.counts[key]++
	cmd.SetVal(s.counts[key])
	return cmd
}

func (s *stubCounter) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	s.expires[key] = ttl
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(true)
	return cmd
}

func newStubCounter() *stubCounter {
	return &stubCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	c := newStubCounter()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		n, err := incrWithTTL(ctx, c, "k", time.Minute)
		if err != nil || n != int64(i) {
			t.Fatalf("attempt %d: got %d, %v", i, n, err)
		}
	}
	if c.expires["k"] != time.Minute {
		t.Fatalf("expected ttl to be set, got %v", c.expires["k"])
	}
}

func TestOverHourlyLimit(t *testing.T) {
	c := newStubCounter()
	ctx := context.Background()
	key := hourlyKey(time.Date(2024, 5, 1, 15, 4, 0, 0, time.UTC), "login", "1.2.3.4", "ada@example.com")
	if key != "rate:login:1.2.3.4:ada@example.com:2024050115" {
		t.Fatalf("unexpected key %q", key)
	}

	for i := 0; i < 2; i++ {
		if overHourlyLimit(ctx, c, key, 2) {
			t.Fatalf("attempt %d should pass", i+1)
		}
	}
	if !overHourlyLimit(ctx, c, key, 2) {
		t.Fatal("third attempt should be limited")
	}

	failing := newStubCounter()
	failing.err = errors.New("redis down")
	if overHourlyLimit(ctx, failing, key, 1) {
		t.Fatal("redis errors must not block requests")
	}
}
