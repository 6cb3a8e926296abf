package search

import (
	"context"

	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/pkg/logger_i"
)

type Service struct {
	store  docModel.DocumentStore
	scorer Scorer
	logger *logger_i.Logger
}

func NewService(store docModel.DocumentStore) *Service {
	return &Service{
		store:  store,
		logger: logger_i.NewLogger("Search"),
	}
}

// Search reads the current indexed documents, keeps those containing query and
// ranks them. Documents still processing are not visible.
func (s *Service) Search(ctx context.Context, query string, limit int) []Result {
	indexed := s.store.ListDocumentsByStatus(ctx, docModel.StatusIndexed)

	candidates := make([]docModel.Document, 0, len(indexed))
	for _, d := range indexed {
		if s.scorer.Matches(query, d) {
			candidates = append(candidates, d)
		}
	}
	results := s.scorer.Rank(query, candidates, limit)
	s.logger.WithTrace(ctx).Debug("Search finished", "indexed", len(indexed), "candidates", len(candidates), "returned", len(results))
	return results
}
