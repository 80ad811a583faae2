package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clipcast/clipcast/internal/domain"
	"github.com/clipcast/clipcast/internal/service"
	"github.com/clipcast/clipcast/internal/usecase"
)

// --- mocks ---

type mockStore struct {
	records map[string][]domain.Record
}

func newMockStore() *mockStore {
	return &mockStore{records: map[string][]domain.Record{}}
}

func (m *mockStore) add(collection string, rec domain.Record) {
	m.records[collection] = append(m.records[collection], rec)
}

func (m *mockStore) Get(ctx context.Context, collection, id string) (domain.Record, error) {
	for _, rec := range m.records[collection] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return domain.Record{}, domain.NotFoundError{Resource: collection + "/" + id}
}

func (m *mockStore) Find(ctx context.Context, collection string, filter domain.Filter, srt domain.Sort, window domain.Window) ([]domain.Record, error) {
	var out []domain.Record
	for _, rec := range m.records[collection] {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		av, _ := out[a].Field(srt.Field)
		bv, _ := out[b].Field(srt.Field)
		if c := domain.CompareValues(av, bv); c != 0 {
			if srt.Dir == domain.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return out[a].ID < out[b].ID
	})
	if window.Offset > 0 {
		if window.Offset >= len(out) {
			return nil, nil
		}
		out = out[window.Offset:]
	}
	if window.Limit > 0 && len(out) > window.Limit {
		out = out[:window.Limit]
	}
	return out, nil
}

func (m *mockStore) BatchLookup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string][]domain.Record, error) {
	groups := map[string][]domain.Record{}
	for _, rec := range m.records[collection] {
		if !extra.Matches(rec) {
			continue
		}
		key := rec.StringField(field)
		for _, v := range values {
			if key == v {
				groups[v] = append(groups[v], rec)
			}
		}
	}
	return groups, nil
}

func (m *mockStore) Count(ctx context.Context, collection string, filter domain.Filter) (int64, error) {
	var n int64
	for _, rec := range m.records[collection] {
		if filter.Matches(rec) {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) CountGroup(ctx context.Context, collection, field string, values []string, extra domain.Filter) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, rec := range m.records[collection] {
		if !extra.Matches(rec) {
			continue
		}
		key := rec.StringField(field)
		for _, v := range values {
			if key == v {
				counts[v]++
			}
		}
	}
	return counts, nil
}

func (m *mockStore) SumField(ctx context.Context, collection, field string, filter domain.Filter) (int64, error) {
	var total int64
	for _, rec := range m.records[collection] {
		if !filter.Matches(rec) {
			continue
		}
		if v, ok := rec.Field(field); ok {
			if n, ok := v.(int); ok {
				total += int64(n)
			}
		}
	}
	return total, nil
}

type mockEdgeStore struct {
	mu    sync.Mutex
	edges map[string]domain.Edge
}

func newMockEdgeStore() *mockEdgeStore {
	return &mockEdgeStore{edges: map[string]domain.Edge{}}
}

func (m *mockEdgeStore) InsertIfAbsent(ctx context.Context, edge domain.Edge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := edge.Subject + "/" + edge.Object + "/" + edge.Kind
	if _, exists := m.edges[key]; exists {
		return false, nil
	}
	m.edges[key] = edge
	return true, nil
}

func (m *mockEdgeStore) Delete(ctx context.Context, subject, object, kind string) (*domain.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subject + "/" + object + "/" + kind
	edge, exists := m.edges[key]
	if !exists {
		return nil, nil
	}
	delete(m.edges, key)
	return &edge, nil
}

type mockCounter struct{}

func (m *mockCounter) Get(ctx context.Context, kind, object string) (int64, error) { return 7, nil }

func fixtureStore() *mockStore {
	store := newMockStore()
	store.add(domain.CollectionUsers, domain.Record{ID: "alice", Fields: map[string]any{
		"username": "alice", "displayName": "Alice", "avatar": "a.png",
	}})
	store.add(domain.CollectionUsers, domain.Record{ID: "viewer", Fields: map[string]any{
		"username": "viewer",
	}})
	store.add(domain.CollectionVideos, domain.Record{ID: "v1", Owner: "alice", Fields: map[string]any{
		"title": "first clip", "views": 120,
	}})
	store.add(domain.CollectionVideos, domain.Record{ID: "v2", Owner: "alice", Fields: map[string]any{
		"title": "second clip", "views": 30,
	}})
	store.add(domain.CollectionEdges, domain.Edge{
		ID: "e1", Subject: "viewer", Object: "v1", Kind: domain.KindVideoLike.Name,
	}.Record())
	return store
}

func newTestServer(store *mockStore) (*echo.Echo, *mockEdgeStore) {
	edges := newMockEdgeStore()
	view := usecase.NewViewUsecase(store, 0, "test-secret")
	toggle := usecase.NewToggleUsecase(store, edges, nil, nil)
	stats := service.NewChannelStatsService(store, &mockCounter{})

	h := NewHandler(view, toggle, stats, nil)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, edges
}

// --- tests ---

func TestHandleVideoByID(t *testing.T) {
	e, _ := newTestServer(fixtureStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/v1", nil)
	req.Header.Set(domain.ViewerIdHeader, "viewer")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var row map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &row); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if row["title"] != "first clip" {
		t.Fatalf("expected title got %v", row["title"])
	}
	owner, ok := row["owner"].(map[string]any)
	if !ok || owner["username"] != "alice" {
		t.Fatalf("expected embedded owner got %v", row["owner"])
	}
	if row["likeCount"] != float64(1) {
		t.Fatalf("expected likeCount 1 got %v", row["likeCount"])
	}
	if row["isLiked"] != true {
		t.Fatalf("expected isLiked true got %v", row["isLiked"])
	}
}

func TestHandleVideoByIDNotFound(t *testing.T) {
	e, _ := newTestServer(fixtureStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/missing", nil)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", res.Code)
	}
}

func TestHandleVideosSearch(t *testing.T) {
	e, _ := newTestServer(fixtureStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos?q=second", nil)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var page domain.Page
	if err := json.Unmarshal(res.Body.Bytes(), &page); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0]["id"] != "v2" {
		t.Fatalf("expected [v2] got %v", page.Items)
	}
}

func TestHandleToggleRequiresViewer(t *testing.T) {
	e, _ := newTestServer(fixtureStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/likes/videos/v1/toggle", nil)
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestHandleToggleVideoLikeCycle(t *testing.T) {
	e, edges := newTestServer(fixtureStore())

	do := func() domain.ToggleResult {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/likes/videos/v2/toggle", nil)
		req.Header.Set(domain.ViewerIdHeader, "viewer")
		res := httptest.NewRecorder()
		e.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
		}
		var result domain.ToggleResult
		if err := json.Unmarshal(res.Body.Bytes(), &result); err != nil {
			t.Fatalf("bad response body: %v", err)
		}
		return result
	}

	if result := do(); result.State != domain.ToggleCreated {
		t.Fatalf("expected created got %+v", result)
	}
	if len(edges.edges) != 1 {
		t.Fatalf("expected one stored edge got %d", len(edges.edges))
	}
	if result := do(); result.State != domain.ToggleRemoved {
		t.Fatalf("expected removed got %+v", result)
	}
	if len(edges.edges) != 0 {
		t.Fatalf("expected edge removed, %d remain", len(edges.edges))
	}
}

func TestHandleToggleDanglingVideo(t *testing.T) {
	e, _ := newTestServer(fixtureStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/likes/videos/missing/toggle", nil)
	req.Header.Set(domain.ViewerIdHeader, "viewer")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.Code)
	}
}

func TestHandleChannelProfile(t *testing.T) {
	store := fixtureStore()
	store.add(domain.CollectionEdges, domain.Edge{
		ID: "s1", Subject: "viewer", Object: "alice", Kind: domain.KindSubscription.Name,
	}.Record())

	e, _ := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/alice", nil)
	req.Header.Set(domain.ViewerIdHeader, "viewer")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var row map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &row); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if row["subscriberCount"] != float64(1) {
		t.Fatalf("expected subscriberCount 1 got %v", row["subscriberCount"])
	}
	if row["isSubscribed"] != true {
		t.Fatalf("expected isSubscribed got %v", row["isSubscribed"])
	}
}

func TestHandleDashboardStats(t *testing.T) {
	e, _ := newTestServer(fixtureStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
	req.Header.Set(domain.ViewerIdHeader, "alice")
	res := httptest.NewRecorder()
	e.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", res.Code, res.Body.String())
	}

	var stats domain.ChannelStats
	if err := json.Unmarshal(res.Body.Bytes(), &stats); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if stats.TotalVideos != 2 {
		t.Fatalf("expected 2 videos got %d", stats.TotalVideos)
	}
	if stats.TotalViews != 150 {
		t.Fatalf("expected 150 views got %d", stats.TotalViews)
	}
	if stats.TotalSubscribers != 7 {
		t.Fatalf("expected cached subscriber count got %d", stats.TotalSubscribers)
	}
	if stats.TotalLikes != 1 {
		t.Fatalf("expected 1 like got %d", stats.TotalLikes)
	}
}
