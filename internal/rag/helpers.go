package rag

import (
	"context"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/metrics"
	"github.com/akolanti/docchat/internal/rag/compose"
	"github.com/akolanti/docchat/internal/rag/search"
)

// searchLimit applies the search default; a positive caller limit is used as given.
func searchLimit(limit int) int {
	if limit <= 0 {
		return config.SearchResultLimit
	}
	return limit
}

func (s *service) executeSearchStep(ctx context.Context, query string, limit int) []search.Result {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("search", time.Since(start)) }()

	return s.searcher.Search(ctx, query, limit)
}

func (s *service) executeComposeStep(ctx context.Context, query string, results []search.Result) (compose.Reply, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("compose", time.Since(start)) }()

	return s.composer.Compose(ctx, query, results)
}
