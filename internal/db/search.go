package db

import "github.com/kailas-cloud/talentdex/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery matches any of Terms against one TEXT field.
type TextQuery struct {
	IndexName string
	Field     string
	Terms     []string
	// Fuzzy wraps every term in %..% (Levenshtein distance 1) and drops BM25 scoring.
	Fuzzy        bool
	Filters      filter.Expression
	TopK         int
	ReturnFields []string
}

// FilterQuery selects documents by structured filters only.
type FilterQuery struct {
	IndexName    string
	Filters      filter.Expression
	Limit        int
	SortBy       string
	SortDesc     bool
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
