package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipcast/clipcast/internal/domain"
	"github.com/clipcast/clipcast/internal/usecase"
)

// EdgeCounts is a redis read-through over edge cardinalities (subscriber
// counts, like totals). The toggle engine invalidates entries when an edge
// flips; stale reads are bounded by the TTL either way.
type EdgeCounts struct {
	rdb   *redis.Client
	store usecase.DocumentStore
	ttl   time.Duration
}

func NewEdgeCounts(rdb *redis.Client, store usecase.DocumentStore, ttl time.Duration) *EdgeCounts {
	return &EdgeCounts{rdb: rdb, store: store, ttl: ttl}
}

func countKey(kind, object string) string {
	return "edgecount:" + kind + ":" + object
}

// Get returns the number of edges of the kind pointing at object.
func (c *EdgeCounts) Get(ctx context.Context, kind, object string) (int64, error) {
	key := countKey(kind, object)

	n, err := c.rdb.Get(ctx, key).Int64()
	if err == nil {
		return n, nil
	}

	filter := domain.Filter{}.
		Eq(domain.EdgeFieldKind, kind).
		Eq(domain.EdgeFieldObject, object)
	n, storeErr := c.store.Count(ctx, domain.CollectionEdges, filter)
	if storeErr != nil {
		return 0, storeErr
	}

	if errors.Is(err, redis.Nil) {
		// best effort; a failed write just means the next read recomputes
		c.rdb.Set(ctx, key, n, c.ttl)
	}
	return n, nil
}

// Invalidate drops the cached count for the tuple's object.
func (c *EdgeCounts) Invalidate(ctx context.Context, kind, object string) error {
	return c.rdb.Del(ctx, countKey(kind, object)).Err()
}
