package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/rag/vectorDB"
	"github.com/akolanti/docchat/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// pointsAPI is the part of *qdrant.Client the sink uses.
type pointsAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

type Options struct {
	Host       string
	Port       int
	Collection string
}

type Sink struct {
	client     pointsAPI
	collection string
	logger     *logger_i.Logger

	mu    sync.Mutex
	ready bool
}

var _ vectorDB.IndexSink = (*Sink)(nil)

// NewSink connects to qdrant and closes the connection when ctx is done.
func NewSink(ctx context.Context, opts Options) (*Sink, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     opts.Host,
		Port:     opts.Port,
		UseTLS:   config.QdrantUseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("could not instantiate qdrant client: %w", err)
	}
	s := newSink(client, opts.Collection)
	go s.closeOnDone(ctx)
	return s, nil
}

func newSink(client pointsAPI, collection string) *Sink {
	return &Sink{
		client:     client,
		collection: collection,
		logger:     logger_i.NewLogger("Qdrant").With("collection", collection),
	}
}

func (s *Sink) closeOnDone(ctx context.Context) {
	<-ctx.Done()
	s.logger.Info("Shutting down Qdrant")
	if err := s.client.Close(); err != nil {
		s.logger.Error("could not close Qdrant", "error", err)
	}
}

// PointID is stable per (document, chunk) so republishing overwrites.
func PointID(documentID int64, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "docchat:%d:%d", documentID, chunkIndex)).String()
}

func (s *Sink) Publish(ctx context.Context, doc docModel.Document) error {
	if doc.Status != docModel.StatusIndexed {
		return fmt.Errorf("document %d is %s, not indexed", doc.ID, doc.Status)
	}
	if len(doc.Chunks) != len(doc.Embeddings) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(doc.Chunks), len(doc.Embeddings))
	}
	if len(doc.Chunks) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()
	if err := s.ensureCollection(ctx, uint64(len(doc.Embeddings[0]))); err != nil {
		return err
	}

	indexedAt := time.Now().Unix()
	points := make([]*qdrant.PointStruct, len(doc.Chunks))
	for i, chunk := range doc.Chunks {
		payload := map[string]any{
			"document_id": doc.ID,
			"filename":    doc.OriginalName,
			"chunk_index": int64(i),
			"content":     chunk,
			"indexed_at":  indexedAt,
		}
		if doc.UploadedBy != nil {
			payload["uploaded_by"] = *doc.UploadedBy
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(doc.ID, i)),
			Vectors: qdrant.NewVectors(doc.Embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	s.logger.WithTrace(ctx).Debug("Published document", "documentId", doc.ID, "points", len(points))
	return nil
}

func (s *Sink) Remove(ctx context.Context, documentID int64) error {
	ctx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchInt("document_id", documentID)},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

// ensureCollection creates the collection on first publish, sized to the
// vectors of the configured embedding backend.
func (s *Sink) ensureCollection(ctx context.Context, dimension uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if dimension == 0 {
		return errors.New("empty vectors")
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("could not create collection: %w", err)
		}
		s.logger.Info("Created collection", "dimension", dimension)
	}
	s.ready = true
	return nil
}
