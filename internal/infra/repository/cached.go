package repository

import (
	"context"
	"encoding/json"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/clipcast/clipcast/internal/domain"
	"github.com/clipcast/clipcast/internal/usecase"
)

// LookupCache decorates a document store with a memcached read-through on
// batched lookups against designated collections. Profile-style collections
// (channel owner cards) are read on nearly every composed page and change
// rarely; everything else passes through untouched. A cache failure is never
// an error, just a cold lookup.
type LookupCache struct {
	inner       usecase.DocumentStore
	mc          *memcache.Client
	collections map[string]bool
	ttlSeconds  int32
}

func NewLookupCache(inner usecase.DocumentStore, mc *memcache.Client, collections []string, ttlSeconds int32) *LookupCache {
	set := make(map[string]bool, len(collections))
	for _, c := range collections {
		set[c] = true
	}
	return &LookupCache{
		inner:       inner,
		mc:          mc,
		collections: set,
		ttlSeconds:  ttlSeconds,
	}
}

func (c *LookupCache) Get(ctx context.Context, collection, id string) (domain.Record, error) {
	return c.inner.Get(ctx, collection, id)
}

func (c *LookupCache) Find(ctx context.Context, collection string, filter domain.Filter, sort domain.Sort, window domain.Window) ([]domain.Record, error) {
	return c.inner.Find(ctx, collection, filter, sort, window)
}

func (c *LookupCache) Count(ctx context.Context, collection string, filter domain.Filter) (int64, error) {
	return c.inner.Count(ctx, collection, filter)
}

func (c *LookupCache) CountGroup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string]int64, error) {
	return c.inner.CountGroup(ctx, collection, field, values, extra)
}

func (c *LookupCache) BatchLookup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string][]domain.Record, error) {
	if !c.collections[collection] || !extra.Empty() {
		return c.inner.BatchLookup(ctx, collection, field, values, extra)
	}

	keys := make([]string, 0, len(values))
	keyFor := make(map[string]string, len(values))
	for _, v := range values {
		k := "bl/" + collection + "/" + field + "/" + v
		keys = append(keys, k)
		keyFor[v] = k
	}

	groups := make(map[string][]domain.Record, len(values))
	var missing []string

	items, err := c.mc.GetMulti(keys)
	if err != nil {
		missing = values
	} else {
		for _, v := range values {
			item, ok := items[keyFor[v]]
			if !ok {
				missing = append(missing, v)
				continue
			}
			var records []domain.Record
			if err := json.Unmarshal(item.Value, &records); err != nil {
				missing = append(missing, v)
				continue
			}
			if len(records) > 0 {
				groups[v] = records
			}
		}
	}

	if len(missing) == 0 {
		return groups, nil
	}

	fetched, err := c.inner.BatchLookup(ctx, collection, field, missing, extra)
	if err != nil {
		return nil, err
	}
	for _, v := range missing {
		records := fetched[v]
		if len(records) > 0 {
			groups[v] = records
		}
		// empty groups are cached too, so absent references do not hammer
		// the store
		if body, err := json.Marshal(records); err == nil {
			_ = c.mc.Set(&memcache.Item{Key: keyFor[v], Value: body, Expiration: c.ttlSeconds})
		}
	}
	return groups, nil
}
