package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/domain"
	"github.com/drivehit/gallery-sync/internal/port"
	"github.com/drivehit/gallery-sync/internal/service/catalog"
	"github.com/drivehit/gallery-sync/internal/service/reconciler"
)

// mockItemRepo implements port.ItemRepository for testing
type mockItemRepo struct {
	items      map[string]*domain.Item
	lastFilter port.ItemFilter
}

func newMockItemRepo() *mockItemRepo {
	return &mockItemRepo{items: make(map[string]*domain.Item)}
}

func (m *mockItemRepo) Get(id string) (*domain.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (m *mockItemRepo) FindByHash(hash string) (*domain.Item, error) { return nil, nil }

func (m *mockItemRepo) List(filter port.ItemFilter) ([]*domain.Item, int, error) {
	m.lastFilter = filter
	var out []*domain.Item
	for _, item := range m.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (m *mockItemRepo) ListIDs() (map[string]*domain.Item, error) { return nil, nil }

func (m *mockItemRepo) Upsert(item *domain.Item) error {
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *mockItemRepo) Archive(item *domain.Item) error { return m.Upsert(item) }
func (m *mockItemRepo) Restore(item *domain.Item) error { return m.Upsert(item) }
func (m *mockItemRepo) Delete(id string) error {
	delete(m.items, id)
	return nil
}

// mockEngagementRepo implements port.EngagementRepository for testing
type mockEngagementRepo struct{}

func (m *mockEngagementRepo) ToggleLike(itemID, user string) (bool, error) { return true, nil }
func (m *mockEngagementRepo) Record(event *domain.EngagementEvent) error   { return nil }
func (m *mockEngagementRepo) Counts(itemID string) (int64, int64, int64, error) {
	return 1, 0, 0, nil
}
func (m *mockEngagementRepo) DeleteForItem(itemID string) error { return nil }

// mockDeadLetterRepo implements port.DeadLetterRepository for testing
type mockDeadLetterRepo struct{}

func (m *mockDeadLetterRepo) Append(entry *domain.DeadLetterEntry) error { return nil }
func (m *mockDeadLetterRepo) List(limit int) ([]*domain.DeadLetterEntry, error) {
	return []*domain.DeadLetterEntry{{ID: "dl-1", Path: "/items/x", Error: "boom"}}, nil
}
func (m *mockDeadLetterRepo) DeleteOlderThan(cutoff time.Time) (int, error) { return 0, nil }

// mockStoreClient implements port.StoreClient for testing
type mockStoreClient struct{}

func (m *mockStoreClient) Walk(ctx context.Context, subtree string, fn port.WalkFunc) error {
	return nil
}
func (m *mockStoreClient) Stat(ctx context.Context, id string) (*port.FileDescriptor, error) {
	return nil, domain.ErrNotFound
}
func (m *mockStoreClient) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}
func (m *mockStoreClient) MoveToCategory(ctx context.Context, id, category string) (string, error) {
	return category, nil
}
func (m *mockStoreClient) MoveToArchive(ctx context.Context, id string) error { return nil }
func (m *mockStoreClient) Rename(ctx context.Context, id, name string) error  { return nil }
func (m *mockStoreClient) Delete(ctx context.Context, id string) error        { return nil }

// mockNotifier implements port.Notifier for testing
type mockNotifier struct{}

func (m *mockNotifier) Enqueue(path string) {}

// mockBundle implements port.Store for testing
type mockBundle struct {
	items   *mockItemRepo
	pingErr error
}

func (m *mockBundle) Items() port.ItemRepository             { return m.items }
func (m *mockBundle) DeadLetters() port.DeadLetterRepository { return &mockDeadLetterRepo{} }
func (m *mockBundle) Engagement() port.EngagementRepository  { return &mockEngagementRepo{} }
func (m *mockBundle) Ping() error                            { return m.pingErr }
func (m *mockBundle) Close() error                           { return nil }

// mockSweeper implements Sweeper for testing
type mockSweeper struct {
	result reconciler.Result
	runs   int
}

func (m *mockSweeper) RunOnce(ctx context.Context) (*reconciler.Result, error) {
	m.runs++
	r := m.result
	return &r, nil
}

const adminEmail = "admin@example.com"

func newTestServer(items *mockItemRepo) (*Server, *mockSweeper) {
	cfg := DefaultConfig()
	cfg.Secret = testSecret
	cfg.AdminEmails = []string{adminEmail}

	cat := catalog.New(items, &mockEngagementRepo{}, &mockDeadLetterRepo{}, &mockStoreClient{}, &mockNotifier{}, zap.NewNop())
	sweeper := &mockSweeper{}
	return New(cfg, cat, sweeper, &mockBundle{items: items}, zap.NewNop()), sweeper
}

func signAndSend(t *testing.T, s *Server, method, target string, body []byte, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if email != "" {
		req.Header.Set(HeaderUserEmail, email)
	}
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature,
		Signature(Canonical(method, req.URL.Path, req.URL.Query().Encode(), body, ts), testSecret))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	return out
}

func TestPublicListingOpen(t *testing.T) {
	items := newMockItemRepo()
	items.items["a"] = &domain.Item{ID: "a", Status: domain.StatusPublished}
	items.items["b"] = &domain.Item{ID: "b", Status: domain.StatusHidden}
	s, _ := newTestServer(items)

	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["ok"] != true {
		t.Errorf("ok = %v", body["ok"])
	}
	if body["total"] != float64(1) {
		t.Errorf("total = %v, hidden items must not appear publicly", body["total"])
	}
}

func TestMutationRequiresSignature(t *testing.T) {
	items := newMockItemRepo()
	items.items["a"] = &domain.Item{ID: "a", Status: domain.StatusPublished}
	s, _ := newTestServer(items)

	req := httptest.NewRequest("POST", "/api/v1/items/a/status", bytes.NewReader([]byte(`{"status":"hidden"}`)))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "auth" {
		t.Errorf("error kind = %v, want auth", decodeBody(t, rec)["error"])
	}
}

func TestSignedStatusChange(t *testing.T) {
	items := newMockItemRepo()
	items.items["a"] = &domain.Item{ID: "a", Status: domain.StatusPublished, Category: "Nature"}
	s, _ := newTestServer(items)

	rec := signAndSend(t, s, "POST", "/api/v1/items/a/status", []byte(`{"status":"hidden"}`), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if items.items["a"].Status != domain.StatusHidden {
		t.Errorf("item status = %q, want hidden", items.items["a"].Status)
	}
}

func TestExpiredSignatureRejected(t *testing.T) {
	items := newMockItemRepo()
	items.items["a"] = &domain.Item{ID: "a", Status: domain.StatusPublished}
	s, _ := newTestServer(items)

	body := []byte(`{"status":"hidden"}`)
	req := httptest.NewRequest("POST", "/api/v1/items/a/status", bytes.NewReader(body))
	ts := strconv.FormatInt(time.Now().Add(-10*time.Minute).UnixMilli(), 10)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderSignature,
		Signature(Canonical("POST", req.URL.Path, "", body, ts), testSecret))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for stale timestamp", rec.Code)
	}
}

func TestAdminRequiresAllowListedEmail(t *testing.T) {
	items := newMockItemRepo()
	s, _ := newTestServer(items)

	rec := signAndSend(t, s, "GET", "/api/v1/admin/items", nil, "intruder@example.com")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for non-admin identity", rec.Code)
	}

	rec = signAndSend(t, s, "GET", "/api/v1/admin/items", nil, adminEmail)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for admin, body %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSweepTrigger(t *testing.T) {
	items := newMockItemRepo()
	s, sweeper := newTestServer(items)
	sweeper.result = reconciler.Result{Inserted: 2}

	rec := signAndSend(t, s, "POST", "/api/v1/admin/sweep", nil, adminEmail)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if sweeper.runs != 1 {
		t.Errorf("sweeper runs = %d, want 1", sweeper.runs)
	}
	body := decodeBody(t, rec)
	if body["skipped"] != false {
		t.Errorf("skipped = %v, want false", body["skipped"])
	}
}

func TestAdminDeadLetterListing(t *testing.T) {
	s, _ := newTestServer(newMockItemRepo())

	rec := signAndSend(t, s, "GET", "/api/v1/admin/dead-letters", nil, adminEmail)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	entries, ok := body["deadLetters"].([]any)
	if !ok || len(entries) != 1 {
		t.Errorf("deadLetters = %v, want one entry", body["deadLetters"])
	}
}

func TestRateLimitEnforced(t *testing.T) {
	items := newMockItemRepo()
	cfg := DefaultConfig()
	cfg.Secret = testSecret
	cfg.RateMax = 3
	cfg.RateWindow = time.Hour

	cat := catalog.New(items, &mockEngagementRepo{}, &mockDeadLetterRepo{}, &mockStoreClient{}, &mockNotifier{}, zap.NewNop())
	s := New(cfg, cat, &mockSweeper{}, &mockBundle{items: items}, zap.NewNop())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/v1/items", nil)
		req.Header.Set(HeaderUserEmail, "alice@example.com")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	req.Header.Set(HeaderUserEmail, "alice@example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 over quota", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "rate_limited" {
		t.Errorf("error kind = %v, want rate_limited", decodeBody(t, rec)["error"])
	}

	// A different identity keeps its own quota
	req = httptest.NewRequest("GET", "/api/v1/items", nil)
	req.Header.Set(HeaderUserEmail, "bob@example.com")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, other identities should not be limited", rec.Code)
	}
}

func TestConfiguredPageSizeBounds(t *testing.T) {
	items := newMockItemRepo()
	cfg := DefaultConfig()
	cfg.Secret = testSecret
	cfg.PageSizeDefault = 2
	cfg.PageSizeMax = 5

	cat := catalog.New(items, &mockEngagementRepo{}, &mockDeadLetterRepo{}, &mockStoreClient{}, &mockNotifier{}, zap.NewNop())
	s := New(cfg, cat, &mockSweeper{}, &mockBundle{items: items}, zap.NewNop())

	req := httptest.NewRequest("GET", "/api/v1/items", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if items.lastFilter.Limit != 2 {
		t.Errorf("default page size = %d, want configured 2", items.lastFilter.Limit)
	}

	req = httptest.NewRequest("GET", "/api/v1/items?size=50", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if items.lastFilter.Limit != 5 {
		t.Errorf("oversized page request = %d, want clamped to configured 5", items.lastFilter.Limit)
	}
}

func TestNotFoundItem(t *testing.T) {
	s, _ := newTestServer(newMockItemRepo())

	rec := signAndSend(t, s, "POST", "/api/v1/items/missing/status", []byte(`{"status":"hidden"}`), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if decodeBody(t, rec)["error"] != "not_found" {
		t.Errorf("error kind = %v, want not_found", decodeBody(t, rec)["error"])
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(newMockItemRepo())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
