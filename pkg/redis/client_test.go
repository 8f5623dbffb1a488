package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/benchlot/benchlot-backend/pkg/config"
)

func TestSetNXGuardsFirstWriter(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	k := client.IdempotencyKey("stripe_webhook", "evt_123")

	first, err := client.SetNX(ctx, k, "1", time.Hour)
	if err != nil || !first {
		t.Fatalf("expected first SetNX to win, ok=%v err=%v", first, err)
	}
	if second, err := client.SetNX(ctx, k, "1", time.Hour); err != nil || second {
		t.Fatalf("expected duplicate SetNX to lose, ok=%v err=%v", second, err)
	}

	if err := client.Del(ctx, k); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, k); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestDelIfValueOnlyRemovesMatchingHolder(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newFakeStore()}
	k := client.LockKey("cron-worker:prod")

	_, _ = client.SetNX(ctx, k, "owner-a", time.Minute)
	if ok, err := client.DelIfValue(ctx, k, "owner-b"); err != nil || ok {
		t.Fatalf("foreign owner must not delete, ok=%v err=%v", ok, err)
	}
	if ok, err := client.DelIfValue(ctx, k, "owner-a"); err != nil || !ok {
		t.Fatalf("owner should delete, ok=%v err=%v", ok, err)
	}
}

func TestZeroClientErrors(t *testing.T) {
	client := &Client{}
	if _, err := client.CountWindow(context.Background(), "k", time.Second); err != errNotInitialized {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := client.Ping(context.Background()); err != errNotInitialized {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without a connection should be a no-op: %v", err)
	}
}

func TestKeys(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("stripe_webhook", "evt_1"): "benchlot:idempotency:stripe_webhook:evt_1",
		client.IdempotencyKey("", "evt_1"):               "benchlot:idempotency:evt_1",
		client.LockKey("cron-worker:prod"):               "benchlot:lock:cron-worker:prod",
		client.RateLimitKey(" ip:redeem:1.2.3.4 "):       "benchlot:rate_limit:ip:redeem:1.2.3.4",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("got %q want %q", got, want)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DB: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 {
		t.Fatalf("url db should win and pool should fill, got db=%d pool=%d", opts.DB, opts.PoolSize)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6379", DB: 3, ReadTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 3 || opts.ReadTimeout != time.Second {
		t.Fatalf("unexpected address options %+v", opts)
	}

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

func TestCountWindow(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	client := &Client{store: store}
	k := client.RateLimitKey("ip:redeem:10.0.0.1")

	w, err := client.CountWindow(ctx, k, time.Minute)
	if err != nil || w.Count != 1 || w.ResetIn != time.Minute {
		t.Fatalf("first hit should open the window, got %+v err=%v", w, err)
	}

	store.ttl[k] = 20 * time.Second
	w, err = client.CountWindow(ctx, k, time.Minute)
	if err != nil || w.Count != 2 || w.ResetIn != 20*time.Second {
		t.Fatalf("second hit should report remaining ttl, got %+v err=%v", w, err)
	}
	if store.expires[k] != 1 {
		t.Fatalf("expiry should be set once, got %d", store.expires[k])
	}

	// a counter without expiry would never reset
	store.ttl[k] = -1
	w, err = client.CountWindow(ctx, k, time.Minute)
	if err != nil || w.Count != 3 || w.ResetIn != time.Minute || store.expires[k] != 2 {
		t.Fatalf("lost expiry should be restored, got %+v expires=%d err=%v", w, store.expires[k], err)
	}
}

type fakeStore struct {
	data    map[string]string
	counts  map[string]int64
	ttl     map[string]time.Duration
	expires map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:    map[string]string{},
		counts:  map[string]int64{},
		ttl:     map[string]time.Duration{},
		expires: map[string]int{},
	}
}

func (f *fakeStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeStore) Get(_ context.Context, k string) *redis.StringCmd {
	v, ok := f.data[k]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) SetNX(_ context.Context, k string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := f.data[k]; exists {
		return redis.NewBoolResult(false, nil)
	}
	f.data[k] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Incr(_ context.Context, k string) *redis.IntCmd {
	f.counts[k]++
	return redis.NewIntResult(f.counts[k], nil)
}

func (f *fakeStore) Expire(_ context.Context, k string, ttl time.Duration) *redis.BoolCmd {
	f.expires[k]++
	f.ttl[k] = ttl
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) PTTL(_ context.Context, k string) *redis.DurationCmd {
	return redis.NewDurationResult(f.ttl[k], nil)
}

func (f *fakeStore) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	if v, ok := f.data[keys[0]]; ok && v == fmt.Sprint(args[0]) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
