package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clipcast/clipcast"
	"github.com/clipcast/clipcast/internal/domain"
)

// ToggleUsecase flips relation edges: create when absent, remove when
// present, exactly once per logical request regardless of concurrent
// identical callers. There is no check-then-act window: the insert itself
// carries the uniqueness constraint, and a conflict answer is the "present"
// observation.
type ToggleUsecase struct {
	store  DocumentStore
	edges  EdgeStore
	signal SignalPublisher // optional
	counts CountCache      // optional
}

func NewToggleUsecase(store DocumentStore, edges EdgeStore, signal SignalPublisher, counts CountCache) *ToggleUsecase {
	return &ToggleUsecase{
		store:  store,
		edges:  edges,
		signal: signal,
		counts: counts,
	}
}

// Toggle transitions the (subject, object, kind) tuple between Absent and
// Present. A delete that finds no row after an insert conflict means a
// concurrent toggle won the removal; the insert is retried once, then the
// race is reported as a Conflict.
func (uc *ToggleUsecase) Toggle(ctx context.Context, subject, object string, kind domain.EdgeKind) (domain.ToggleResult, error) {
	if subject == "" || object == "" {
		return domain.ToggleResult{}, domain.InvalidInputError{Reason: "subject and object are required"}
	}

	if err := uc.checkReference(ctx, kind.SubjectCollection, subject); err != nil {
		return domain.ToggleResult{}, err
	}
	if err := uc.checkReference(ctx, kind.ObjectCollection, object); err != nil {
		return domain.ToggleResult{}, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		edge := domain.Edge{
			ID:      uuid.NewString(),
			Subject: subject,
			Object:  object,
			Kind:    kind.Name,
			CDate:   time.Now().UTC(),
		}

		created, err := uc.edges.InsertIfAbsent(ctx, edge)
		if err != nil {
			return domain.ToggleResult{}, err
		}
		if created {
			uc.notify(ctx, domain.ToggleCreated, edge)
			return domain.ToggleResult{State: domain.ToggleCreated, EdgeID: edge.ID}, nil
		}

		removed, err := uc.edges.Delete(ctx, subject, object, kind.Name)
		if err != nil {
			return domain.ToggleResult{}, err
		}
		if removed != nil {
			uc.notify(ctx, domain.ToggleRemoved, *removed)
			return domain.ToggleResult{State: domain.ToggleRemoved, EdgeID: removed.ID}, nil
		}
	}

	return domain.ToggleResult{}, domain.ConflictError{Detail: "edge " + kind.Name + " raced with concurrent toggles"}
}

func (uc *ToggleUsecase) checkReference(ctx context.Context, collection, id string) error {
	_, err := uc.store.Get(ctx, collection, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.InvalidInputError{Reason: id + " does not resolve in " + collection}
	}
	return err
}

// notify publishes the flip and drops the cached count. Both are
// best-effort: the edge write already happened and must not be unwound by a
// side-channel failure.
func (uc *ToggleUsecase) notify(ctx context.Context, state domain.ToggleState, edge domain.Edge) {
	if uc.counts != nil {
		if err := uc.counts.Invalidate(ctx, edge.Kind, edge.Object); err != nil {
			slog.WarnContext(ctx, "count cache invalidation failed",
				slog.String("error", err.Error()),
				slog.String("kind", edge.Kind),
				slog.String("module", "toggle"),
			)
		}
	}
	if uc.signal != nil {
		event := clipcast.Event{
			Type:      string(state),
			Kind:      edge.Kind,
			Subject:   edge.Subject,
			Object:    edge.Object,
			EdgeID:    edge.ID,
			Timestamp: time.Now().UTC(),
		}
		if err := uc.signal.Publish(ctx, clipcast.SignalChannel(edge.Object), event); err != nil {
			slog.WarnContext(ctx, "signal publish failed",
				slog.String("error", err.Error()),
				slog.String("kind", edge.Kind),
				slog.String("module", "toggle"),
			)
		}
	}
}
