package domain

import "sort"

// SearchKind selects a search strategy.
type SearchKind string

const (
	SearchLexical SearchKind = "lexical"
	SearchVector  SearchKind = "vector"
)

// SearchResult is a single ranked hit. Score is the ts_rank_cd relevance for
// lexical search (higher is better) and the cosine distance for vector search
// (lower is better).
type SearchResult struct {
	ProductID int64    `json:"product_id"`
	Score     float64  `json:"score"`
	Product   *Product `json:"product,omitempty"`
}

// SortResults orders results for kind, breaking score ties by ascending
// product id so equal scores are deterministic.
func SortResults(kind SearchKind, results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			if kind == SearchVector {
				return a.Score < b.Score
			}
			return a.Score > b.Score
		}
		return a.ProductID < b.ProductID
	})
}
