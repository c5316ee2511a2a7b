package main

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/Koalla18/TakeSmart/internal/cachekey"
	"github.com/Koalla18/TakeSmart/internal/config"
)

func TestPurgeTargets(t *testing.T) {
	got, err := purgeTargets([]string{"brand", "products"}, []string{"catalog:brands:", "catalog:search:vec:"})
	if err != nil {
		t.Fatalf("purgeTargets: %v", err)
	}
	want := append([]string{}, cachekey.PrefixesFor(cachekey.EntityBrand)...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("purgeTargets = %v, want %v", got, want)
	}
}

func TestPurgeTargetsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		entities []string
		prefixes []string
	}{
		{"nothing", nil, nil},
		{"unknown entity", []string{"orders"}, nil},
		{"foreign prefix", nil, []string{"session:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := purgeTargets(tt.entities, tt.prefixes); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBackendLimiter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Backend = config.BackendMemory
	b, err := openCache(cfg)
	if err != nil {
		t.Fatalf("openCache: %v", err)
	}
	defer b.Close()

	if b.limiter(cfg) == nil {
		t.Fatal("default config should enable the limiter")
	}
	cfg.HTTP.RateLimit.RequestsPerSecond = 0
	if b.limiter(cfg) != nil {
		t.Fatal("zero rate should disable the limiter")
	}
}

type mapCounter map[string]int

func (m mapCounter) CountPrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for k, v := range m {
		if strings.HasPrefix(k, prefix) {
			n += v
		}
	}
	return n, nil
}

func TestFamilyCounts(t *testing.T) {
	rows, err := familyCounts(context.Background(), mapCounter{
		"catalog:product:1":         1,
		"catalog:product:slug:x":    1,
		"catalog:products:0:20:-:-": 1,
	})
	if err != nil {
		t.Fatalf("familyCounts: %v", err)
	}
	if len(rows) != len(cachekey.Families) {
		t.Fatalf("got %d rows, want one per family", len(rows))
	}
	got := map[string]int{}
	for _, r := range rows {
		got[r.Prefix] = r.Keys
	}
	if got[string(cachekey.FamilyProduct)] != 2 || got[string(cachekey.FamilyProducts)] != 1 {
		t.Fatalf("counts = %v", got)
	}
}
