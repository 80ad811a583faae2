package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/clipcast/clipcast"
	"github.com/clipcast/clipcast/internal/domain"
)

// memEdges mimics the store-level uniqueness constraint: one edge per
// (subject, object, kind) tuple, insert conflicts reported rather than
// errored.
type memEdges struct {
	mu    sync.Mutex
	edges map[string]domain.Edge
	// forceAbsent makes every operation observe the other state once, to
	// reproduce the interleaving where concurrent toggles trade the row
	// back and forth.
	raceRounds int
}

func newMemEdges() *memEdges {
	return &memEdges{edges: map[string]domain.Edge{}}
}

func edgeKey(subject, object, kind string) string {
	return subject + "/" + object + "/" + kind
}

func (m *memEdges) InsertIfAbsent(ctx context.Context, edge domain.Edge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceRounds > 0 {
		return false, nil
	}
	key := edgeKey(edge.Subject, edge.Object, edge.Kind)
	if _, exists := m.edges[key]; exists {
		return false, nil
	}
	m.edges[key] = edge
	return true, nil
}

func (m *memEdges) Delete(ctx context.Context, subject, object, kind string) (*domain.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceRounds > 0 {
		m.raceRounds--
		return nil, nil
	}
	key := edgeKey(subject, object, kind)
	edge, exists := m.edges[key]
	if !exists {
		return nil, nil
	}
	delete(m.edges, key)
	return &edge, nil
}

type mockSignal struct {
	mu     sync.Mutex
	events []clipcast.Event
	fail   bool
}

func (m *mockSignal) Publish(ctx context.Context, channel string, event clipcast.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("broker down")
	}
	m.events = append(m.events, event)
	return nil
}

type mockCounts struct {
	mu          sync.Mutex
	invalidated []string
}

func (m *mockCounts) Invalidate(ctx context.Context, kind, object string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, kind+"/"+object)
	return nil
}

func toggleFixture() *memStore {
	store := newMemStore()
	store.add(domain.CollectionUsers, domain.Record{ID: "alice"})
	store.add(domain.CollectionVideos, domain.Record{ID: "v1", Owner: "bob"})
	return store
}

func TestToggleCycle(t *testing.T) {
	edges := newMemEdges()
	signal := &mockSignal{}
	counts := &mockCounts{}
	uc := NewToggleUsecase(toggleFixture(), edges, signal, counts)

	ctx := context.Background()

	first, err := uc.Toggle(ctx, "alice", "v1", domain.KindVideoLike)
	if err != nil {
		t.Fatalf("first toggle failed: %v", err)
	}
	if first.State != domain.ToggleCreated || first.EdgeID == "" {
		t.Fatalf("expected created with edge id got %+v", first)
	}

	second, err := uc.Toggle(ctx, "alice", "v1", domain.KindVideoLike)
	if err != nil {
		t.Fatalf("second toggle failed: %v", err)
	}
	if second.State != domain.ToggleRemoved {
		t.Fatalf("expected removed got %+v", second)
	}
	if second.EdgeID != first.EdgeID {
		t.Fatalf("removal should report the removed edge, got %s want %s", second.EdgeID, first.EdgeID)
	}

	third, err := uc.Toggle(ctx, "alice", "v1", domain.KindVideoLike)
	if err != nil {
		t.Fatalf("third toggle failed: %v", err)
	}
	if third.State != domain.ToggleCreated {
		t.Fatalf("expected created got %+v", third)
	}
	if third.EdgeID == first.EdgeID {
		t.Fatalf("recreated edge must carry a fresh id")
	}

	if len(signal.events) != 3 {
		t.Fatalf("expected 3 published events got %d", len(signal.events))
	}
	if len(counts.invalidated) != 3 {
		t.Fatalf("expected 3 cache invalidations got %d", len(counts.invalidated))
	}
}

func TestToggleConcurrentParity(t *testing.T) {
	edges := newMemEdges()
	uc := NewToggleUsecase(toggleFixture(), edges, nil, nil)

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, removed int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := uc.Toggle(context.Background(), "alice", "v1", domain.KindVideoLike)
			if err != nil {
				// conflict is a legitimate outcome under contention
				if !errors.Is(err, domain.ErrConflict) {
					t.Errorf("unexpected toggle error: %v", err)
				}
				return
			}
			mu.Lock()
			if result.State == domain.ToggleCreated {
				created++
			} else {
				removed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	edges.mu.Lock()
	remaining := len(edges.edges)
	edges.mu.Unlock()

	// every successful create pairs with a remove except possibly the last
	if created-removed != remaining {
		t.Fatalf("state diverged: %d created, %d removed, %d remaining", created, removed, remaining)
	}
	if remaining != 0 && remaining != 1 {
		t.Fatalf("at most one edge may remain, got %d", remaining)
	}
}

func TestToggleRejectsDanglingReference(t *testing.T) {
	uc := NewToggleUsecase(toggleFixture(), newMemEdges(), nil, nil)

	_, err := uc.Toggle(context.Background(), "alice", "missing", domain.KindVideoLike)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input got %v", err)
	}

	_, err = uc.Toggle(context.Background(), "ghost", "v1", domain.KindVideoLike)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input got %v", err)
	}

	_, err = uc.Toggle(context.Background(), "", "v1", domain.KindVideoLike)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty subject got %v", err)
	}
}

func TestToggleExhaustedRetryReportsConflict(t *testing.T) {
	edges := newMemEdges()
	// two rounds of insert-conflict followed by zero-row delete exhaust the
	// single retry
	edges.raceRounds = 2
	uc := NewToggleUsecase(toggleFixture(), edges, nil, nil)

	_, err := uc.Toggle(context.Background(), "alice", "v1", domain.KindVideoLike)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict got %v", err)
	}
}

func TestToggleSignalFailureIsBestEffort(t *testing.T) {
	edges := newMemEdges()
	signal := &mockSignal{fail: true}
	uc := NewToggleUsecase(toggleFixture(), edges, signal, nil)

	result, err := uc.Toggle(context.Background(), "alice", "v1", domain.KindVideoLike)
	if err != nil {
		t.Fatalf("toggle must survive a publish failure: %v", err)
	}
	if result.State != domain.ToggleCreated {
		t.Fatalf("expected created got %+v", result)
	}
}
