package square

import (
	"context"
	"time"

	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/redis"
)

const idempotencyScope = "webhooks:square"

// Guard deduplicates webhook deliveries with a short-lived SetNX marker.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewGuard builds a webhook dedupe guard.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{store: store, ttl: ttl}
}

// CheckAndMark claims the event id. It reports true when this delivery is the
// first one seen.
func (g *Guard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	key := g.store.IdempotencyKey(idempotencyScope, eventID)
	first, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event")
	}
	return first, nil
}

// Release frees the event id so the gateway's redelivery can be reprocessed
// after a handler failure.
func (g *Guard) Release(ctx context.Context, eventID string) error {
	key := g.store.IdempotencyKey(idempotencyScope, eventID)
	if err := g.store.Del(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release webhook event")
	}
	return nil
}
