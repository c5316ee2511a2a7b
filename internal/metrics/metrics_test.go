package metrics

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_RecordLookupPerFamily(t *testing.T) {
	m := &Metrics{startTime: time.Now()}

	m.RecordLookup("products", OutcomeMiss)
	m.RecordLookup("products", OutcomeHit)
	m.RecordLookup("products", OutcomeHit)
	m.RecordLookup("search_tsv", OutcomeError)

	if got := m.Hits.Load(); got != 2 {
		t.Fatalf("hits = %d, want 2", got)
	}
	if got := m.Misses.Load(); got != 1 {
		t.Fatalf("misses = %d, want 1", got)
	}
	if got := m.Errors.Load(); got != 1 {
		t.Fatalf("errors = %d, want 1", got)
	}
	fm := m.familyMetrics("products")
	if fm.Hits.Load() != 2 || fm.Misses.Load() != 1 || fm.Errors.Load() != 0 {
		t.Fatalf("unexpected products family counters: %d/%d/%d",
			fm.Hits.Load(), fm.Misses.Load(), fm.Errors.Load())
	}
}

func TestMetrics_RecordInvalidation(t *testing.T) {
	m := &Metrics{startTime: time.Now()}

	m.RecordInvalidation("catalog:products:", 3, nil)
	m.RecordInvalidation("catalog:product:", 0, errors.New("down"))

	if m.Invalidations.Load() != 2 {
		t.Fatalf("invalidations = %d, want 2", m.Invalidations.Load())
	}
	if m.InvalidationErrors.Load() != 1 {
		t.Fatalf("failed = %d, want 1", m.InvalidationErrors.Load())
	}
	if m.KeysPurged.Load() != 3 {
		t.Fatalf("keys purged = %d, want 3", m.KeysPurged.Load())
	}
}

func TestMetrics_JSONHandler(t *testing.T) {
	m := &Metrics{startTime: time.Now()}
	m.RecordLookup("brands", OutcomeHit)
	m.RecordLookup("brands", OutcomeMiss)

	rec := httptest.NewRecorder()
	m.JSONHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/cache/stats", nil))

	var body struct {
		Lookups struct {
			Hits    int64   `json:"hits"`
			Misses  int64   `json:"misses"`
			HitRate float64 `json:"hit_rate"`
		} `json:"lookups"`
		Families map[string]map[string]float64 `json:"families"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Lookups.Hits != 1 || body.Lookups.Misses != 1 || body.Lookups.HitRate != 50 {
		t.Fatalf("unexpected lookups: %+v", body.Lookups)
	}
	if body.Families["brands"]["hits"] != 1 {
		t.Fatalf("missing brands family: %+v", body.Families)
	}
}

func TestPrometheusHandler(t *testing.T) {
	promMetrics = nil
	rec := httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("uninitialized handler code = %d, want 503", rec.Code)
	}

	InitPrometheus("takesmart", nil)
	defer func() { promMetrics = nil }()

	RecordCacheLookup("products", OutcomeHit)
	RecordCacheError("get")
	RecordInvalidation("catalog:products:", 2, nil)
	RecordSearch("lexical", 3*time.Millisecond, 2)
	RecordHTTPRequest("GET", "/api/products", 200, time.Millisecond)

	rec = httptest.NewRecorder()
	PrometheusHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	out := rec.Body.String()
	for _, want := range []string{
		`takesmart_cache_lookups_total{family="products",outcome="hit"} 1`,
		`takesmart_cache_store_errors_total{op="get"} 1`,
		`takesmart_cache_invalidations_total{prefix="catalog:products:",result="ok"} 1`,
		`takesmart_cache_keys_purged_total{prefix="catalog:products:"} 2`,
		`takesmart_search_duration_seconds_count{kind="lexical"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
