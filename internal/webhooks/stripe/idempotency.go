package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benchlot/benchlot-backend/pkg/redis"
)

// IdempotencyGuard records which Stripe event ids have been handled. Stripe
// redelivers until it sees a 2xx, so a claimed id is acknowledged without
// running the handlers again.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
	now   func() time.Time
}

// NewIdempotencyGuard returns a guard whose claims expire after ttl. A zero
// ttl keeps claims until Redis evicts them.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case strings.TrimSpace(scope) == "":
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope, now: time.Now}, nil
}

// CheckAndMark claims eventID. It returns true when an earlier delivery
// already holds the claim.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	key, err := g.key(eventID)
	if err != nil {
		return false, err
	}
	claimedAt := g.now().UTC().Format(time.RFC3339)
	won, err := g.store.SetNX(ctx, key, claimedAt, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim stripe event %s: %w", eventID, err)
	}
	return !won, nil
}

// Delete drops the claim after a failed handler so the next redelivery runs.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	key, err := g.key(eventID)
	if err != nil {
		return err
	}
	if err := g.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release stripe event %s: %w", eventID, err)
	}
	return nil
}

func (g *IdempotencyGuard) key(eventID string) (string, error) {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return "", errors.New("event id is required")
	}
	return g.store.IdempotencyKey(g.scope, id), nil
}
