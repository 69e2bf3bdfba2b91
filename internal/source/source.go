// Package source implements the storefront workers: given a product name,
// each source queries one external site and classifies the answer. Workers
// go through a fetcher.Executor, so pacing and retries are not their
// concern; extraction and query-to-listing matching are.
package source

import (
	"context"

	"github.com/sells-group/price-scout/internal/config"
	"github.com/sells-group/price-scout/internal/fetcher"
	"github.com/sells-group/price-scout/internal/model"
)

// Source answers price queries against one external site. Search must be
// safe for concurrent use up to the executor's configured concurrency and
// must not panic; lookup failures surface as an error, which the engine
// records as a StatusError outcome.
type Source interface {
	Name() string
	Search(ctx context.Context, query string) (model.SourceResult, error)
}

// Deps carries everything a worker needs at construction time.
type Deps struct {
	Exec    *fetcher.Executor
	BaseURL string
	Search  config.SearchConfig
}

// minSimilarity returns the configured similarity floor, defaulting to 0.5.
func (d Deps) minSimilarity() float64 {
	if d.Search.MinSimilarity > 0 {
		return d.Search.MinSimilarity
	}
	return 0.5
}

// maxResults returns how many search hits a worker inspects, default 5.
func (d Deps) maxResults() int {
	if d.Search.MaxResults > 0 {
		return d.Search.MaxResults
	}
	return 5
}
