package docModel

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusError      DocumentStatus = "error"
)

// metadata keys
const (
	MetaChunkCount     = "chunkCount"
	MetaContentLength  = "contentLength"
	MetaProcessedAt    = "processedAt"
	MetaError          = "error"
	MetaFailedAt       = "failedAt"
	MetaPageCount      = "pageCount"
	MetaEmbeddingModel = "embeddingModel"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrAlreadyFinalized  = errors.New("document ingestion already finalized")
	ErrInvalidTransition = errors.New("invalid document status transition")
)

type Document struct {
	ID           int64          `json:"id"`
	Filename     string         `json:"filename"`
	OriginalName string         `json:"originalName"`
	FileType     string         `json:"fileType"`
	FileSize     int64          `json:"fileSize"`
	UploadedBy   *int64         `json:"uploadedBy"`
	Status       DocumentStatus `json:"status"`
	Content      *string        `json:"content"`
	Chunks       []string       `json:"chunks"`
	Embeddings   [][]float32    `json:"embeddings"`
	Metadata     map[string]any `json:"metadata"`
	UploadedAt   time.Time      `json:"uploadedAt"`
}

// NewDocument returns a document in processing state with every derived field unset.
func NewDocument(filename, originalName, fileType string, size int64, uploadedBy *int64) Document {
	return Document{
		Filename:     filename,
		OriginalName: originalName,
		FileType:     fileType,
		FileSize:     size,
		UploadedBy:   uploadedBy,
		Status:       StatusProcessing,
		UploadedAt:   time.Now().UTC(),
	}
}

// OwnedBy reports whether userID may see the document. Anonymous uploads
// are visible to anonymous callers only.
func (d Document) OwnedBy(userID *int64) bool {
	if d.UploadedBy == nil || userID == nil {
		return d.UploadedBy == nil && userID == nil
	}
	return *d.UploadedBy == *userID
}

// IngestionOutcome is the single terminal write the pipeline makes.
type IngestionOutcome struct {
	Status     DocumentStatus
	Content    *string
	Chunks     []string
	Embeddings [][]float32
	Metadata   map[string]any
}

// Validate checks the outcome against the document invariants.
func (o IngestionOutcome) Validate() error {
	switch o.Status {
	case StatusIndexed:
		if o.Content == nil || o.Chunks == nil || o.Metadata == nil {
			return fmt.Errorf("%w: indexed requires content, chunks and metadata", ErrInvalidTransition)
		}
		if o.Embeddings == nil {
			return fmt.Errorf("%w: indexed requires embeddings", ErrInvalidTransition)
		}
	case StatusError:
		if o.Metadata == nil || o.Metadata[MetaError] == nil {
			return fmt.Errorf("%w: error requires error metadata", ErrInvalidTransition)
		}
	default:
		return fmt.Errorf("%w: %q is not terminal", ErrInvalidTransition, o.Status)
	}
	if o.Chunks != nil && o.Embeddings != nil && len(o.Chunks) != len(o.Embeddings) {
		return fmt.Errorf("%w: %d chunks but %d embeddings", ErrInvalidTransition, len(o.Chunks), len(o.Embeddings))
	}
	return nil
}

// Apply moves doc out of processing. It is the only way a document changes state.
func (o IngestionOutcome) Apply(doc *Document) error {
	if doc.Status != StatusProcessing {
		return ErrAlreadyFinalized
	}
	if err := o.Validate(); err != nil {
		return err
	}
	doc.Status = o.Status
	doc.Content = o.Content
	doc.Chunks = o.Chunks
	doc.Embeddings = o.Embeddings
	doc.Metadata = o.Metadata
	return nil
}

// DocumentStore persists documents. Reads never fail loudly: a backend error
// is logged and reported as not found / empty. Writes return errors.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id int64) (Document, bool)
	ListDocumentsByOwner(ctx context.Context, userID *int64) []Document
	// ListDocumentsByStatus returns documents in ascending id order.
	ListDocumentsByStatus(ctx context.Context, status DocumentStatus) []Document
	CompleteIngestion(ctx context.Context, id int64, outcome IngestionOutcome) error
	DeleteDocument(ctx context.Context, id int64) error
}
