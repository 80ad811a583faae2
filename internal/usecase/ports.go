package usecase

import (
	"context"

	"github.com/clipcast/clipcast"
	"github.com/clipcast/clipcast/internal/domain"
)

// DocumentStore is the read capability the view engine needs from a backing
// store. Any store offering point lookup, filtered scan, grouped lookup and
// cardinality queries satisfies it.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (domain.Record, error)
	Find(ctx context.Context, collection string, filter domain.Filter, sort domain.Sort, window domain.Window) ([]domain.Record, error)
	// BatchLookup resolves field=value for every value in one call and
	// returns the related records grouped by matched value.
	BatchLookup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string][]domain.Record, error)
	Count(ctx context.Context, collection string, filter domain.Filter) (int64, error)
	// CountGroup is Count fanned over field=value groups; it answers Count
	// and membership derived fields without materializing the related set.
	CountGroup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string]int64, error)
}

// EdgeStore is the single-edge atomicity the toggle engine requires.
type EdgeStore interface {
	// InsertIfAbsent atomically inserts the edge unless its
	// (subject, object, kind) tuple already exists. Reports false on
	// conflict; the store must distinguish conflict from other failures.
	InsertIfAbsent(ctx context.Context, edge domain.Edge) (bool, error)
	// Delete removes the tuple's edge and returns it, or nil when no edge
	// existed.
	Delete(ctx context.Context, subject, object, kind string) (*domain.Edge, error)
}

// SignalPublisher broadcasts edge events. Best-effort from the toggle
// engine's point of view.
type SignalPublisher interface {
	Publish(ctx context.Context, channel string, event clipcast.Event) error
}

// CountCache invalidates cached edge counts when an edge flips.
type CountCache interface {
	Invalidate(ctx context.Context, kind, object string) error
}
