// Package documents is the upload side of the system: it validates a file,
// parks it in the upload directory, records a processing document and queues
// the ingestion job.
package documents

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/jobModel"
	"github.com/akolanti/docchat/internal/rag/vectorDB"
	"github.com/akolanti/docchat/pkg/logger_i"
	"github.com/google/uuid"
)

// bytes handed to the sniffer when the declared type is missing or generic
const sniffLen = 3072

var ErrEmptyFile = errors.New("uploaded file is empty")

type TypeResolver interface {
	Resolve(declared string, head []byte) (string, error)
}

type Queue interface {
	Submit(ctx context.Context, j jobModel.Job) error
}

type UploadRequest struct {
	File         io.Reader
	Filename     string
	DeclaredType string
	UploadedBy   *int64
}

type Service struct {
	store     docModel.DocumentStore
	resolver  TypeResolver
	queue     Queue
	sink      vectorDB.IndexSink
	uploadDir string
	now       func() time.Time
	logger    *logger_i.Logger
}

type Option func(*Service)

// WithIndexSink removes mirrored points when a document is deleted.
func WithIndexSink(sink vectorDB.IndexSink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithUploadDir(dir string) Option {
	return func(s *Service) { s.uploadDir = dir }
}

func NewService(store docModel.DocumentStore, resolver TypeResolver, queue Queue, opts ...Option) *Service {
	s := &Service{
		store:     store,
		resolver:  resolver,
		queue:     queue,
		uploadDir: config.UploadDirectory,
		now:       time.Now,
		logger:    logger_i.NewLogger("Document Service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload validates and stores the file, creates the document in processing
// state and queues it for ingestion. Unsupported types are rejected before
// anything is written.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (docModel.Document, error) {
	log := s.logger.WithTrace(ctx)

	br := bufio.NewReaderSize(req.File, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return docModel.Document{}, fmt.Errorf("reading upload: %w", err)
	}
	if len(head) == 0 {
		return docModel.Document{}, ErrEmptyFile
	}

	mimeType, err := s.resolver.Resolve(req.DeclaredType, head)
	if err != nil {
		log.Warn("Rejected upload", "filename", req.Filename, "mimeType", mimeType)
		return docModel.Document{}, err
	}

	originalName := cleanName(req.Filename)
	path, size, err := s.save(br, originalName)
	if err != nil {
		log.Error("Failed to save upload", "filename", originalName, "error", err)
		return docModel.Document{}, err
	}

	doc := docModel.NewDocument(filepath.Base(path), originalName, mimeType, size, req.UploadedBy)
	if err := s.store.CreateDocument(ctx, &doc); err != nil {
		log.Error("Failed to create document", "filename", originalName, "error", err)
		s.discard(path)
		return docModel.Document{}, err
	}

	j := jobModel.Job{
		Id:           uuid.NewString(),
		JobType:      jobModel.JobTypeIngest,
		TraceId:      config.TraceID(ctx),
		DocumentId:   doc.ID,
		FilePath:     path,
		FileType:     mimeType,
		OriginalName: originalName,
		CreatedTime:  s.now(),
	}
	if err := s.queue.Submit(ctx, j); err != nil {
		log.Error("Failed to queue ingestion", "documentId", doc.ID, "error", err)
		s.abandon(ctx, doc.ID, err)
		s.discard(path)
		return docModel.Document{}, err
	}

	log.Info("Document queued for ingestion", "documentId", doc.ID, "jobId", j.Id, "mimeType", mimeType, "size", size)
	return doc, nil
}

func (s *Service) List(ctx context.Context, userID *int64) []docModel.Document {
	return s.store.ListDocumentsByOwner(ctx, userID)
}

// Get returns the caller's document. Other users' documents are reported as
// not found.
func (s *Service) Get(ctx context.Context, id int64, userID *int64) (docModel.Document, error) {
	doc, ok := s.store.GetDocument(ctx, id)
	if !ok || !doc.OwnedBy(userID) {
		return docModel.Document{}, docModel.ErrNotFound
	}
	return doc, nil
}

func (s *Service) Delete(ctx context.Context, id int64, userID *int64) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if s.sink != nil {
		if err := s.sink.Remove(ctx, id); err != nil {
			s.logger.WithTrace(ctx).Error("Failed to remove mirrored chunks", "documentId", id, "error", err)
		}
	}
	return nil
}

func (s *Service) save(r io.Reader, name string) (string, int64, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(s.uploadDir, fmt.Sprintf("%d-%s", s.now().UnixNano(), name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.discard(path)
		return "", 0, err
	}
	return path, size, nil
}

// abandon finalizes a document whose job never reached the queue.
func (s *Service) abandon(ctx context.Context, id int64, cause error) {
	outcome := docModel.IngestionOutcome{
		Status: docModel.StatusError,
		Metadata: map[string]any{
			docModel.MetaError:    "could not queue ingestion: " + cause.Error(),
			docModel.MetaFailedAt: s.now().UTC().Format(time.RFC3339Nano),
		},
	}
	// the request context may already be cancelled
	if err := s.store.CompleteIngestion(context.WithoutCancel(ctx), id, outcome); err != nil {
		s.logger.WithTrace(ctx).Error("Failed to mark document as failed", "documentId", id, "error", err)
	}
}

func (s *Service) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove upload", "path", path, "error", err)
	}
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}
