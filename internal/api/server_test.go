package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Koalla18/TakeSmart/internal/cache"
	"github.com/Koalla18/TakeSmart/internal/cacheaside"
	"github.com/Koalla18/TakeSmart/internal/cachekey"
	"github.com/Koalla18/TakeSmart/internal/domain"
	"github.com/Koalla18/TakeSmart/internal/logging"
	"github.com/Koalla18/TakeSmart/internal/ratelimit"
	"github.com/Koalla18/TakeSmart/internal/search"
	"github.com/Koalla18/TakeSmart/internal/store"
)

const firstPageKey = "catalog:products:0:20:-:-"

type testEnv struct {
	handler http.Handler
	store   *fakeStore
	cache   *cache.InMemoryCache
	access  *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, nil)
}

func newTestEnvWith(t *testing.T, mutate func(*ServerConfig)) *testEnv {
	t.Helper()
	fs := newFakeStore()
	mem := cache.NewInMemoryCache(0)
	t.Cleanup(func() { _ = mem.Close() })

	coord := cacheaside.NewCoordinator(mem, 0)
	cs := store.NewCachedStore(fs,
		cacheaside.New(mem, cacheaside.Options{}),
		coord,
		search.NewStoreRouter(fs, search.Config{EmbeddingDim: 3}),
	)
	var access bytes.Buffer
	cfg := ServerConfig{
		Store:       cs,
		Cache:       mem,
		Coordinator: coord,
		AccessLog:   logging.New(&access),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h := NewHandler(cfg)
	return &testEnv{handler: h, store: fs, cache: mem, access: &access}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestProductReadsAreCachedUntilWrite(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/products", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("GET /api/products = %d: %s", rec.Code, rec.Body)
		}
	}
	if got := env.store.listCalls.Load(); got != 1 {
		t.Fatalf("list calls = %d, want 1", got)
	}
	if ok, _ := env.cache.Exists(context.Background(), firstPageKey); !ok {
		t.Fatalf("first page not cached under %s", firstPageKey)
	}

	rec := env.do(t, http.MethodPatch, "/api/products/1", `{"name":"Apple iPhone 15 Pro"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH = %d: %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/api/products", "")
	products := decode[[]domain.Product](t, rec)
	if len(products) != 2 || products[0].Name != "Apple iPhone 15 Pro" {
		t.Fatalf("stale page after update: %+v", products)
	}
	if got := env.store.listCalls.Load(); got != 2 {
		t.Fatalf("list calls = %d, want 2", got)
	}
}

func TestDeactivatedProductLeavesListing(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodGet, "/api/products", "")
	rec := env.do(t, http.MethodPatch, "/api/products/2", `{"is_active":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH = %d", rec.Code)
	}
	products := decode[[]domain.Product](t, env.do(t, http.MethodGet, "/api/products", ""))
	if len(products) != 1 || products[0].ID != 1 {
		t.Fatalf("deactivated product still listed: %+v", products)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing product", http.MethodGet, "/api/products/99", "", http.StatusNotFound},
		{"missing slug", http.MethodGet, "/api/products/slug/nope", "", http.StatusNotFound},
		{"bad id", http.MethodGet, "/api/products/abc", "", http.StatusBadRequest},
		{"negative limit", http.MethodGet, "/api/products?limit=-1", "", http.StatusBadRequest},
		{"huge limit", http.MethodGet, "/api/categories?limit=100000", "", http.StatusBadRequest},
		{"bad filter", http.MethodGet, "/api/products?category_id=x", "", http.StatusBadRequest},
		{"duplicate slug", http.MethodPost, "/api/products", `{"name":"Copy","slug":"iphone-15","price":1}`, http.StatusConflict},
		{"blank name", http.MethodPost, "/api/products", `{"name":"","slug":"blank","price":1}`, http.StatusBadRequest},
		{"bad slug", http.MethodPost, "/api/brands", `{"name":"Sony","slug":"Sony Corp"}`, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/products", `{bad`, http.StatusBadRequest},
		{"unknown field", http.MethodPatch, "/api/categories/1", `{"colour":"red"}`, http.StatusBadRequest},
		{"blank query", http.MethodGet, "/api/products/search?q=%20", "", http.StatusBadRequest},
		{"search limit", http.MethodGet, "/api/products/search?q=phone&limit=101", "", http.StatusBadRequest},
		{"vector dim", http.MethodPost, "/api/products/search/vector", `{"vector":[1,0],"limit":3}`, http.StatusBadRequest},
		{"missing brand", http.MethodDelete, "/api/brands/99", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("%s %s = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body)
			}
			body := decode[map[string]string](t, rec)
			if body["error"] == "" {
				t.Fatalf("error body missing message: %s", rec.Body)
			}
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	env := newTestEnv(t)
	env.store.getErr = errBoom

	rec := env.do(t, http.MethodGet, "/api/products/1", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("GET = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), errBoom.Error()) {
		t.Fatalf("internal error leaked: %s", rec.Body)
	}
	if !strings.Contains(env.access.String(), "error: "+errBoom.Error()) {
		t.Fatalf("access log missing error detail:\n%s", env.access)
	}
}

func TestReadinessFailsWithoutStore(t *testing.T) {
	env := newTestEnv(t)
	env.store.pingErr = errBoom

	rec := env.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready = %d, want 503", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, errBoom.Error()) {
		t.Fatalf("readiness body leaks the ping error: %s", body)
	}
	if !strings.Contains(body, `"postgres":"unavailable"`) {
		t.Fatalf("readiness body = %s", body)
	}
}

func TestCreateProductDefaults(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/products", `{"name":"Google Pixel 8","slug":"pixel-8","price":59990}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST = %d: %s", rec.Code, rec.Body)
	}
	p := decode[domain.Product](t, rec)
	if p.Currency != domain.DefaultCurrency || !p.IsActive {
		t.Fatalf("defaults not applied: %+v", p)
	}

	rec = env.do(t, http.MethodGet, "/api/products/slug/pixel-8", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("created product not readable by slug: %d", rec.Code)
	}
}

func TestSearchEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/products/search?q=iPhone", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("lexical = %d: %s", rec.Code, rec.Body)
		}
		results := decode[[]domain.SearchResult](t, rec)
		if len(results) != 2 || results[0].ProductID != 1 {
			t.Fatalf("lexical order wrong: %+v", results)
		}
	}
	if got := env.store.lexicalCalls.Load(); got != 1 {
		t.Fatalf("lexical calls = %d, want 1", got)
	}

	// A vector search is a POST but must not sweep the product families.
	env.do(t, http.MethodGet, "/api/products", "")
	rec := env.do(t, http.MethodPost, "/api/products/search/vector", `{"vector":[1,0,0],"limit":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("vector = %d: %s", rec.Code, rec.Body)
	}
	results := decode[[]domain.SearchResult](t, rec)
	if len(results) != 1 || results[0].ProductID != 1 {
		t.Fatalf("vector results = %+v, want product 1 only", results)
	}
	if ok, _ := env.cache.Exists(context.Background(), firstPageKey); !ok {
		t.Fatal("vector search swept the product cache")
	}
}

func TestSearchRateLimit(t *testing.T) {
	env := newTestEnvWith(t, func(cfg *ServerConfig) {
		cfg.Limiter = ratelimit.New(ratelimit.NewLocalBackend(), ratelimit.Config{RequestsPerSecond: 0.01, Burst: 1})
	})

	if rec := env.do(t, http.MethodGet, "/api/products/search?q=iPhone", ""); rec.Code != http.StatusOK {
		t.Fatalf("first search = %d", rec.Code)
	}
	rec := env.do(t, http.MethodPost, "/api/products/search/vector", `{"vector":[1,0,0]}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second search = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if !strings.Contains(env.access.String(), "error: "+ratelimit.ErrLimited.Error()) {
		t.Fatalf("access log missing limit:\n%s", env.access)
	}
	for i := 0; i < 3; i++ {
		if rec := env.do(t, http.MethodGet, "/api/products", ""); rec.Code != http.StatusOK {
			t.Fatalf("listing limited: %d", rec.Code)
		}
	}
}

func TestNamespacesHaveMutationRoutes(t *testing.T) {
	for ns := range cachekey.Namespaces {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodDelete, ns+"/1", "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("DELETE %s/1 = %d, want 204", ns, rec.Code)
		}
		if !strings.Contains(env.access.String(), "[purged:") {
			t.Fatalf("DELETE %s/1 did not sweep: %s", ns, env.access)
		}
	}
}

// purgeCheckingWriter fails the test if the response reaches the client
// while the cache still holds the swept key.
type purgeCheckingWriter struct {
	*httptest.ResponseRecorder
	t     *testing.T
	cache cache.Cache
}

func (w *purgeCheckingWriter) WriteHeader(code int) {
	if ok, _ := w.cache.Exists(context.Background(), firstPageKey); ok {
		w.t.Errorf("response %d written before the sweep", code)
	}
	w.ResponseRecorder.WriteHeader(code)
}

func TestInvalidateOnMutation(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewInMemoryCache(0)
	defer mem.Close()
	coord := cacheaside.NewCoordinator(mem, 0)

	status := http.StatusBadRequest
	h := InvalidateOnMutation(coord, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Handler", "yes")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{}`))
	}))

	_ = mem.Set(ctx, firstPageKey, []byte(`[]`), 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if ok, _ := mem.Exists(ctx, firstPageKey); !ok {
		t.Fatal("failed mutation swept the cache")
	}

	status = http.StatusCreated
	w := &purgeCheckingWriter{ResponseRecorder: httptest.NewRecorder(), t: t, cache: mem}
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/products", nil))
	if w.Code != http.StatusCreated || w.Body.String() != `{}` || w.Header().Get("X-Handler") != "yes" {
		t.Fatalf("response not passed through: %d %q %v", w.Code, w.Body, w.Header())
	}
	if ok, _ := mem.Exists(ctx, firstPageKey); ok {
		t.Fatal("successful mutation did not sweep")
	}

	_ = mem.Set(ctx, firstPageKey, []byte(`[]`), 0)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if ok, _ := mem.Exists(ctx, firstPageKey); !ok {
		t.Fatal("read swept the cache")
	}
}

func TestHealthReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ready = %d", rec.Code)
	}
	if got := decode[map[string]any](t, rec)["status"]; got != "ready" {
		t.Fatalf("status = %v, want ready", got)
	}

	_ = env.cache.Close()
	rec = env.do(t, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cache outage failed readiness: %d", rec.Code)
	}
	if got := decode[map[string]any](t, rec)["status"]; got != "degraded" {
		t.Fatalf("status = %v, want degraded", got)
	}

	// Reads keep working through the outage.
	if rec := env.do(t, http.MethodGet, "/api/products/1", ""); rec.Code != http.StatusOK {
		t.Fatalf("read during cache outage = %d", rec.Code)
	}
}

func TestRequestIDAndAccessLog(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
		t.Fatalf("request id = %q, want req-42", got)
	}

	rec = env.do(t, http.MethodPatch, "/api/products/1", `{"price":100}`)
	id := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("generated request id %q is not a uuid: %v", id, err)
	}

	line := "[request] " + id + " PATCH /api/products/1 200"
	if !strings.Contains(env.access.String(), line) {
		t.Fatalf("access log missing %q:\n%s", line, env.access)
	}
	if !strings.Contains(env.access.String(), "[purged:4]") {
		t.Fatalf("access log missing purge count:\n%s", env.access)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/brands", "")

	rec := env.do(t, http.MethodGet, "/api/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d", rec.Code)
	}
	stats := decode[map[string]any](t, rec)
	if _, ok := stats["lookups"]; !ok {
		t.Fatalf("stats missing lookups: %v", stats)
	}
}
