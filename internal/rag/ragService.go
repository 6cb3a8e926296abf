package rag

import (
	"context"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/jobModel"
	"github.com/akolanti/docchat/internal/metrics"
	"github.com/akolanti/docchat/internal/rag/compose"
	"github.com/akolanti/docchat/internal/rag/ingest"
	"github.com/akolanti/docchat/internal/rag/search"
	"github.com/akolanti/docchat/pkg/logger_i"
)

/*
Service is the only thing the worker pool, the handlers and the MCP tool see.
The private service struct holds the pipeline, the searcher and the composer,
so callers cannot reach into stores or embedders, and tests can swap the whole
thing for a mock.
*/
type Service interface {
	// IngestDocument runs the pipeline for job and reports the terminal status.
	IngestDocument(ctx context.Context, job jobModel.Job) docModel.DocumentStatus
	// AbandonDocument marks the document behind a job that will never run as failed.
	AbandonDocument(ctx context.Context, job jobModel.Job, reason string) docModel.DocumentStatus
	// Search ranks indexed documents. limit <= 0 uses the search default.
	Search(ctx context.Context, query string, limit int) []search.Result
	// Answer retrieves the top chat results for query and composes a reply.
	Answer(ctx context.Context, query string) (compose.Reply, error)
}

type Ingester interface {
	Run(ctx context.Context, job jobModel.Job) docModel.DocumentStatus
	Abandon(ctx context.Context, job jobModel.Job, reason string) docModel.DocumentStatus
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) []search.Result
}

type service struct {
	ingester Ingester
	searcher Searcher
	composer compose.Composer
	logger   *logger_i.Logger
}

var _ Ingester = (*ingest.Pipeline)(nil)
var _ Searcher = (*search.Service)(nil)

func NewService(ingester Ingester, searcher Searcher, composer compose.Composer) Service {
	return &service{
		ingester: ingester,
		searcher: searcher,
		composer: composer,
		logger:   logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) IngestDocument(ctx context.Context, job jobModel.Job) docModel.DocumentStatus {
	start := time.Now()
	status := s.ingester.Run(ctx, job)
	metrics.CaptureIngestionMetrics(string(status), time.Since(start))
	return status
}

func (s *service) AbandonDocument(ctx context.Context, job jobModel.Job, reason string) docModel.DocumentStatus {
	return s.ingester.Abandon(ctx, job, reason)
}

func (s *service) Search(ctx context.Context, query string, limit int) []search.Result {
	return s.executeSearchStep(ctx, query, searchLimit(limit))
}

func (s *service) Answer(ctx context.Context, query string) (compose.Reply, error) {
	log := s.logger.WithTrace(ctx)
	results := s.executeSearchStep(ctx, query, config.ChatResultLimit)
	reply, err := s.executeComposeStep(ctx, query, results)
	if err != nil {
		log.Error("COMPOSE_FAILURE", "error", err)
		return compose.Reply{}, err
	}
	log.Debug("Answer composed", "sources", len(reply.Sources))
	return reply, nil
}
