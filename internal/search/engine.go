package search

import (
	"context"
	"strings"
	"time"

	ragerrors "github.com/ragctl/ragcore/internal/errors"
	"github.com/ragctl/ragcore/internal/embed"
	"github.com/ragctl/ragcore/internal/store"
)

// Engine is C11: it embeds a query once and dispatches it against C8's
// hybrid index, widening the similarity threshold when the first attempt
// finds nothing.
type Engine struct {
	embedder embed.Embedder
	index    store.HybridIndexEngine
}

// NewEngine wires an embedder and a hybrid index into a query planner.
func NewEngine(embedder embed.Embedder, index store.HybridIndexEngine) *Engine {
	return &Engine{embedder: embedder, index: index}
}

// QueryCodebase implements query_codebase: validate, embed once, search,
// then retry at looser thresholds if nothing came back.
func (e *Engine) QueryCodebase(ctx context.Context, q Query) (Response, error) {
	if err := validate(q); err != nil {
		return Response{}, err
	}

	start := time.Now()

	vector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return Response{}, ragerrors.IO("embed query", err)
	}

	opts := store.SearchOptions{
		QueryVector: vector,
		QueryText:   q.Text,
		Limit:       q.Limit,
		MinScore:    q.MinScore,
		Project:     q.Project,
		RootPath:    q.RootPath,
		Hybrid:      q.Hybrid,
	}

	results, err := e.runSearch(ctx, opts, q)
	if err != nil {
		return Response{}, ragerrors.IO("search hybrid index", err)
	}

	thresholdUsed := q.MinScore
	thresholdLowered := false

	if len(results) == 0 && q.MinScore > minFallbackThreshold {
		for _, candidate := range fallbackThresholds {
			if candidate >= q.MinScore {
				continue
			}
			opts.MinScore = candidate
			retried, err := e.runSearch(ctx, opts, q)
			if err != nil {
				return Response{}, ragerrors.IO("search hybrid index", err)
			}
			if len(retried) > 0 {
				results = retried
				thresholdUsed = candidate
				thresholdLowered = true
				break
			}
		}
	}

	return Response{
		Results:          results,
		Duration:         time.Since(start),
		ThresholdUsed:    thresholdUsed,
		ThresholdLowered: thresholdLowered,
	}, nil
}

func (e *Engine) runSearch(ctx context.Context, opts store.SearchOptions, q Query) ([]store.SearchResult, error) {
	if len(q.FileExtensions) == 0 && len(q.Languages) == 0 && len(q.PathPatterns) == 0 {
		return e.index.Search(ctx, opts)
	}
	return e.index.SearchFiltered(ctx, opts, q.FileExtensions, q.Languages, q.PathPatterns)
}

func validate(q Query) error {
	if strings.TrimSpace(q.Text) == "" {
		return ragerrors.Validation("query must not be empty")
	}
	if q.Limit <= 0 {
		return ragerrors.Validation("limit must be greater than zero")
	}
	if q.MinScore < 0 || q.MinScore > 1 {
		return ragerrors.Validation("min_score must be between 0 and 1")
	}
	return nil
}
