package search

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Koalla18/TakeSmart/internal/domain"
)

type item struct {
	id          int64
	name        string
	description string
	embedding   []float32
}

// memSearcher mirrors the store's ranking on an in-memory slice: name
// matches outweigh description matches, vector score is cosine distance.
type memSearcher struct {
	items   []item
	lexical atomic.Int64
	limits  []int
}

func (m *memSearcher) LexicalSearch(_ context.Context, text string, limit int) ([]domain.SearchResult, error) {
	m.lexical.Add(1)
	m.limits = append(m.limits, limit)
	q := strings.ToLower(strings.TrimSpace(text))
	var out []domain.SearchResult
	for _, it := range m.items {
		var score float64
		if strings.Contains(strings.ToLower(it.name), q) {
			score += 1.0
		}
		if strings.Contains(strings.ToLower(it.description), q) {
			score += 0.4
		}
		if score > 0 {
			out = append(out, domain.SearchResult{ProductID: it.id, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memSearcher) VectorSearch(_ context.Context, q []float32, limit int) ([]domain.SearchResult, error) {
	m.limits = append(m.limits, limit)
	var out []domain.SearchResult
	for _, it := range m.items {
		if it.embedding == nil {
			continue
		}
		out = append(out, domain.SearchResult{ProductID: it.id, Score: cosineDistance(q, it.embedding)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score < out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	d := 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	if d < 0 && d > -1e-9 {
		d = 0
	}
	return d
}

func phones() *memSearcher {
	return &memSearcher{items: []item{
		{id: 1, name: "Apple iPhone 15", description: "Smartphone with A16 chip"},
		{id: 2, name: "Samsung Galaxy S24", description: "Android smartphone, an iPhone alternative"},
		{id: 3, name: "USB-C cable", description: "Braided cable"},
	}}
}

func TestRouter_LexicalRanking(t *testing.T) {
	r := NewStoreRouter(phones(), Config{EmbeddingDim: 3})

	got, err := r.Search(context.Background(), Lexical{Text: "iphone", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ProductID != 1 || got[1].ProductID != 2 {
		t.Fatalf("iphone ranking = %+v, want [1 2]", got)
	}
	if got[0].Score <= got[1].Score {
		t.Fatalf("scores not descending: %+v", got)
	}

	got, err = r.Search(context.Background(), Lexical{Text: "Samsung", Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ProductID != 2 {
		t.Fatalf("samsung ranking = %+v, want [2]", got)
	}
}

func TestRouter_VectorOrderingAndBound(t *testing.T) {
	ms := &memSearcher{}
	for i := 1; i <= 10; i++ {
		angle := float64(i) * math.Pi / 20
		ms.items = append(ms.items, item{
			id:        int64(i),
			name:      "item",
			embedding: []float32{float32(math.Cos(angle)), float32(math.Sin(angle)), 0},
		})
	}
	r := NewStoreRouter(ms, Config{EmbeddingDim: 3})
	query := append([]float32(nil), ms.items[6].embedding...)

	got, err := r.Search(context.Background(), Vector{Embedding: query, Limit: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if got[0].ProductID != 7 || got[0].Score > 1e-6 {
		t.Fatalf("identical vector not first at distance 0: %+v", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score < got[i-1].Score {
			t.Fatalf("distances not ascending: %+v", got)
		}
	}
	// the nearest neighbours of 7 on the arc are 6 and 8
	pair := map[int64]bool{got[1].ProductID: true, got[2].ProductID: true}
	if !pair[6] || !pair[8] {
		t.Fatalf("neighbours = %d,%d, want 6 and 8", got[1].ProductID, got[2].ProductID)
	}
}

func TestRouter_Validation(t *testing.T) {
	r := NewStoreRouter(phones(), Config{EmbeddingDim: 3})
	nan := float32(math.NaN())

	tests := []struct {
		name string
		spec Spec
	}{
		{"blank text", Lexical{Text: "   ", Limit: 5}},
		{"empty text", Lexical{}},
		{"limit above max", Lexical{Text: "iphone", Limit: 101}},
		{"negative limit", Lexical{Text: "iphone", Limit: -1}},
		{"short embedding", Vector{Embedding: []float32{1, 0}, Limit: 5}},
		{"long embedding", Vector{Embedding: []float32{1, 0, 0, 0}, Limit: 5}},
		{"nan component", Vector{Embedding: []float32{1, nan, 0}, Limit: 5}},
		{"nil spec", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Search(context.Background(), tt.spec)
			if !errors.Is(err, domain.ErrSearchInputInvalid) {
				t.Fatalf("err = %v, want ErrSearchInputInvalid", err)
			}
		})
	}
}

func TestRouter_DefaultLimit(t *testing.T) {
	ms := phones()
	r := NewStoreRouter(ms, Config{EmbeddingDim: 3})

	if _, err := r.Search(context.Background(), Lexical{Text: "cable"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if _, err := r.Search(context.Background(), Lexical{Text: "cable", Limit: 100}); err != nil {
		t.Fatalf("Search at max limit: %v", err)
	}
	if len(ms.limits) != 2 || ms.limits[0] != DefaultLimit || ms.limits[1] != 100 {
		t.Fatalf("strategy saw limits %v, want [20 100]", ms.limits)
	}

	spec, err := r.Normalize(Lexical{Text: "cable"})
	if err != nil {
		t.Fatal(err)
	}
	if spec.(Lexical).Limit != DefaultLimit {
		t.Fatalf("normalized limit = %d", spec.(Lexical).Limit)
	}
}

func TestRouter_DeterministicTieBreakAndTruncation(t *testing.T) {
	r := NewRouter(Config{EmbeddingDim: 3})
	r.Register(domain.SearchLexical, StrategyFunc(func(context.Context, Spec) ([]domain.SearchResult, error) {
		return []domain.SearchResult{
			{ProductID: 9, Score: 0.5},
			{ProductID: 4, Score: 0.5},
			{ProductID: 7, Score: 0.9},
			{ProductID: 1, Score: 0.1},
		}, nil
	}))

	got, err := r.Search(context.Background(), Lexical{Text: "x", Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{7, 4, 9}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ProductID != id {
			t.Fatalf("order = %+v, want ids %v", got, want)
		}
	}
}

func TestRouter_FewerCandidatesThanLimit(t *testing.T) {
	r := NewStoreRouter(&memSearcher{}, Config{EmbeddingDim: 3})
	got, err := r.Search(context.Background(), Vector{Embedding: []float32{1, 0, 0}, Limit: 50})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got %#v, want empty non-nil slice", got)
	}
}

func TestRouter_StrategyErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	r := NewRouter(Config{EmbeddingDim: 3})
	r.Register(domain.SearchVector, StrategyFunc(func(context.Context, Spec) ([]domain.SearchResult, error) {
		return nil, boom
	}))

	if _, err := r.Search(context.Background(), Vector{Embedding: []float32{0, 1, 0}}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, err := r.Search(context.Background(), Lexical{Text: "x"}); err == nil {
		t.Fatal("expected error for unregistered strategy")
	}
}
