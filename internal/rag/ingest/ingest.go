// Package ingest runs one uploaded document through extract, chunk and embed,
// then records the outcome with a single store write.
package ingest

import (
	"context"
	"errors"
	"os"
	"time"
	"unicode/utf8"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/jobModel"
	"github.com/akolanti/docchat/internal/metrics"
	"github.com/akolanti/docchat/internal/rag/chunk"
	"github.com/akolanti/docchat/internal/rag/embedding"
	"github.com/akolanti/docchat/internal/rag/extract"
	"github.com/akolanti/docchat/internal/rag/vectorDB"
	"github.com/akolanti/docchat/pkg/logger_i"
)

type Extractor interface {
	Extract(ctx context.Context, src extract.Source) (extract.Result, error)
}

type Pipeline struct {
	store        docModel.DocumentStore
	extractor    Extractor
	embedder     embedding.Embedder
	sink         vectorDB.IndexSink
	embedTimeout time.Duration
	now          func() time.Time
	logger       *logger_i.Logger
}

type Option func(*Pipeline)

// WithIndexSink mirrors indexed documents into a vector store.
func WithIndexSink(sink vectorDB.IndexSink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

func WithEmbedTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.embedTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(store docModel.DocumentStore, extractor Extractor, embedder embedding.Embedder, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:        store,
		extractor:    extractor,
		embedder:     embedder,
		embedTimeout: config.EmbeddingTimeout,
		now:          time.Now,
		logger:       logger_i.NewLogger("Document Ingestion"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ingests the document behind job and returns the status it ended in.
// The temporary upload is removed whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, job jobModel.Job) docModel.DocumentStatus {
	log := p.logger.WithTrace(ctx).With("documentId", job.DocumentId, "jobId", job.Id)
	defer p.removeTempFile(log, job.FilePath)

	log.Debug("Processing document", "filename", job.OriginalName, "type", job.FileType)

	res, err := p.extractStep(ctx, job)
	if err != nil {
		log.Error("Error extracting document content", "error", err)
		return p.finish(ctx, log, job.DocumentId, docModel.IngestionOutcome{
			Status:   docModel.StatusError,
			Metadata: p.failureMetadata(err),
		})
	}

	content := res.Text
	chunks := chunk.Split(content)
	log.Debug("Chunked document", "chunks", len(chunks))

	vectors, err := p.embedStep(ctx, chunks)
	if err != nil {
		log.Error("Error generating embeddings", "error", err)
		meta := p.failureMetadata(err)
		meta[docModel.MetaChunkCount] = len(chunks)
		meta[docModel.MetaContentLength] = utf8.RuneCountInString(content)
		return p.finish(ctx, log, job.DocumentId, docModel.IngestionOutcome{
			Status:   docModel.StatusError,
			Content:  &content,
			Chunks:   chunks,
			Metadata: meta,
		})
	}

	meta := map[string]any{
		docModel.MetaChunkCount:     len(chunks),
		docModel.MetaContentLength:  utf8.RuneCountInString(content),
		docModel.MetaProcessedAt:    p.now().UTC().Format(time.RFC3339Nano),
		docModel.MetaEmbeddingModel: p.embedder.Model(),
	}
	if res.PageCount > 0 {
		meta[docModel.MetaPageCount] = res.PageCount
	}
	status := p.finish(ctx, log, job.DocumentId, docModel.IngestionOutcome{
		Status:     docModel.StatusIndexed,
		Content:    &content,
		Chunks:     chunks,
		Embeddings: vectors,
		Metadata:   meta,
	})
	if status == docModel.StatusIndexed {
		p.publishStep(ctx, log, job.DocumentId)
	}
	return status
}

// Abandon ends a job that will not run: the document moves to error with
// reason recorded and the temporary upload is removed.
func (p *Pipeline) Abandon(ctx context.Context, job jobModel.Job, reason string) docModel.DocumentStatus {
	log := p.logger.WithTrace(ctx).With("documentId", job.DocumentId, "jobId", job.Id)
	defer p.removeTempFile(log, job.FilePath)

	log.Info("Abandoning queued ingestion", "reason", reason)
	return p.finish(ctx, log, job.DocumentId, docModel.IngestionOutcome{
		Status:   docModel.StatusError,
		Metadata: p.failureMetadata(errors.New(reason)),
	})
}

func (p *Pipeline) extractStep(ctx context.Context, job jobModel.Job) (extract.Result, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("extraction", time.Since(start)) }()

	return p.extractor.Extract(ctx, extract.Source{
		Path:     job.FilePath,
		Name:     job.OriginalName,
		MimeType: job.FileType,
	})
}

// embedStep calls the embedder without touching the store, bounded by embedTimeout.
func (p *Pipeline) embedStep(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("embedding", time.Since(start)) }()

	embedCtx, cancel := context.WithTimeout(ctx, p.embedTimeout)
	defer cancel()

	vectors, err := p.embedder.Embed(embedCtx, chunks)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckAligned(chunks, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (p *Pipeline) publishStep(ctx context.Context, log *logger_i.Logger, id int64) {
	if p.sink == nil {
		return
	}
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_sink", time.Since(start)) }()

	ctx = context.WithoutCancel(ctx)
	doc, ok := p.store.GetDocument(ctx, id)
	if !ok {
		log.Debug("Document gone before publishing to index sink")
		return
	}
	if err := p.sink.Publish(ctx, doc); err != nil {
		log.Error("Error publishing to index sink", "error", err)
	}
}

// finish makes the terminal write. It runs detached from the job deadline so a
// job that ran out of time still leaves its document in a terminal state.
func (p *Pipeline) finish(ctx context.Context, log *logger_i.Logger, id int64, outcome docModel.IngestionOutcome) docModel.DocumentStatus {
	ctx = context.WithoutCancel(ctx)
	err := p.store.CompleteIngestion(ctx, id, outcome)
	switch {
	case err == nil:
		log.Info("Document ingestion finished", "status", outcome.Status)
		return outcome.Status
	case errors.Is(err, docModel.ErrNotFound):
		log.Info("Document deleted during ingestion")
	default:
		log.Error("Error saving ingestion outcome", "status", outcome.Status, "error", err)
	}
	if doc, ok := p.store.GetDocument(ctx, id); ok {
		return doc.Status
	}
	return docModel.StatusError
}

func (p *Pipeline) failureMetadata(err error) map[string]any {
	return map[string]any{
		docModel.MetaError:    err.Error(),
		docModel.MetaFailedAt: p.now().UTC().Format(time.RFC3339Nano),
	}
}

func (p *Pipeline) removeTempFile(log *logger_i.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		log.Debug("Could not remove temporary upload", "path", path, "error", err)
	}
}
