package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Lookup outcomes as reported by the cache-aside read path.
const (
	OutcomeHit   = "hit"
	OutcomeMiss  = "miss"
	OutcomeError = "error"
)

// Metrics keeps in-process cache counters for the JSON stats endpoint.
// Prometheus carries the same data for scraping.
type Metrics struct {
	Hits   atomic.Int64
	Misses atomic.Int64
	Errors atomic.Int64

	Invalidations      atomic.Int64
	InvalidationErrors atomic.Int64
	KeysPurged         atomic.Int64

	// Per-family metrics
	families sync.Map // family name -> *FamilyMetrics

	startTime time.Time
}

// FamilyMetrics tracks lookups for a single key family
type FamilyMetrics struct {
	Hits   atomic.Int64
	Misses atomic.Int64
	Errors atomic.Int64
}

var global = &Metrics{startTime: time.Now()}

// Global returns the global metrics instance
func Global() *Metrics {
	return global
}

// RecordLookup records a lookup outcome and forwards it to Prometheus.
func (m *Metrics) RecordLookup(family, outcome string) {
	fm := m.familyMetrics(family)
	switch outcome {
	case OutcomeHit:
		m.Hits.Add(1)
		fm.Hits.Add(1)
	case OutcomeMiss:
		m.Misses.Add(1)
		fm.Misses.Add(1)
	default:
		m.Errors.Add(1)
		fm.Errors.Add(1)
	}
	RecordCacheLookup(family, outcome)
}

// RecordInvalidation records a prefix purge and forwards it to Prometheus.
func (m *Metrics) RecordInvalidation(prefix string, purged int, err error) {
	m.Invalidations.Add(1)
	if err != nil {
		m.InvalidationErrors.Add(1)
	}
	m.KeysPurged.Add(int64(purged))
	RecordInvalidation(prefix, purged, err)
}

func (m *Metrics) familyMetrics(family string) *FamilyMetrics {
	if v, ok := m.families.Load(family); ok {
		return v.(*FamilyMetrics)
	}
	actual, _ := m.families.LoadOrStore(family, &FamilyMetrics{})
	return actual.(*FamilyMetrics)
}

// Snapshot returns a point-in-time snapshot of all counters
func (m *Metrics) Snapshot() map[string]interface{} {
	hits := m.Hits.Load()
	misses := m.Misses.Load()
	errs := m.Errors.Load()

	families := make(map[string]interface{})
	m.families.Range(func(key, value interface{}) bool {
		fm := value.(*FamilyMetrics)
		h, ms, e := fm.Hits.Load(), fm.Misses.Load(), fm.Errors.Load()
		families[key.(string)] = map[string]interface{}{
			"hits":     h,
			"misses":   ms,
			"errors":   e,
			"hit_rate": hitRate(h, h+ms+e),
		}
		return true
	})

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"lookups": map[string]interface{}{
			"hits":     hits,
			"misses":   misses,
			"errors":   errs,
			"hit_rate": hitRate(hits, hits+misses+errs),
		},
		"invalidations": map[string]interface{}{
			"total":       m.Invalidations.Load(),
			"failed":      m.InvalidationErrors.Load(),
			"keys_purged": m.KeysPurged.Load(),
		},
		"families": families,
	}
}

// JSONHandler returns an HTTP handler that exposes the snapshot as JSON
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Snapshot())
	})
}

func hitRate(hits, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}
