// Package search implements C11, the query planner: it turns a text query
// into a retrieval request against the hybrid index, embedding the query
// once and falling back to progressively looser similarity thresholds when
// the first attempt comes back empty.
package search

import (
	"time"

	"github.com/ragctl/ragcore/internal/store"
)

// fallbackThresholds are tried in order when a search at the caller's
// threshold returns nothing. Only thresholds strictly below the caller's
// original value are tried.
var fallbackThresholds = []float64{0.6, 0.5, 0.4, 0.3}

// minFallbackThreshold is the floor below which adaptive fallback never
// retries: a caller-supplied threshold at or below this already matches the
// loosest fallback step, so there is nothing looser left to try.
const minFallbackThreshold = 0.3

// Query describes one query_codebase call.
type Query struct {
	Text     string
	Project  *string
	Limit    int
	MinScore float64
	Hybrid   bool
	RootPath *string

	// Optional post-filters, applied via store.HybridIndexEngine.SearchFiltered.
	FileExtensions []string
	Languages      []string
	PathPatterns   []string
}

// Response is what query_codebase returns: the matched rows plus the
// bookkeeping a caller needs to know whether (and how) fallback fired.
type Response struct {
	Results         []store.SearchResult
	Duration        time.Duration
	ThresholdUsed   float64
	ThresholdLowered bool
}
