package store

import (
	"context"
	"sort"
	"sync"

	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem Store")

type InMemoryDocumentStore struct {
	docMutex *sync.RWMutex
	docMap   map[int64]docModel.Document
	nextID   int64
}

var _ docModel.DocumentStore = (*InMemoryDocumentStore)(nil)

func InitInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{
		docMutex: new(sync.RWMutex),
		docMap:   make(map[int64]docModel.Document),
	}
}

func (store *InMemoryDocumentStore) CreateDocument(ctx context.Context, doc *docModel.Document) error {
	store.docMutex.Lock()
	defer store.docMutex.Unlock()
	store.nextID++
	doc.ID = store.nextID
	store.docMap[doc.ID] = cloneDocument(*doc)
	inMemLogger.Debug("Saved document to store", "documentId", doc.ID)
	return nil
}

func (store *InMemoryDocumentStore) GetDocument(ctx context.Context, id int64) (docModel.Document, bool) {
	store.docMutex.RLock()
	defer store.docMutex.RUnlock()
	doc, found := store.docMap[id]
	if !found {
		return doc, false
	}
	return cloneDocument(doc), true
}

func (store *InMemoryDocumentStore) ListDocumentsByOwner(ctx context.Context, userID *int64) []docModel.Document {
	return store.filter(func(d docModel.Document) bool { return d.OwnedBy(userID) })
}

func (store *InMemoryDocumentStore) ListDocumentsByStatus(ctx context.Context, status docModel.DocumentStatus) []docModel.Document {
	return store.filter(func(d docModel.Document) bool { return d.Status == status })
}

func (store *InMemoryDocumentStore) filter(keep func(docModel.Document) bool) []docModel.Document {
	store.docMutex.RLock()
	defer store.docMutex.RUnlock()
	result := make([]docModel.Document, 0)
	for _, d := range store.docMap {
		if keep(d) {
			result = append(result, cloneDocument(d))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (store *InMemoryDocumentStore) CompleteIngestion(ctx context.Context, id int64, outcome docModel.IngestionOutcome) error {
	store.docMutex.Lock()
	defer store.docMutex.Unlock()
	doc, found := store.docMap[id]
	if !found {
		return docModel.ErrNotFound
	}
	if err := outcome.Apply(&doc); err != nil {
		return err
	}
	store.docMap[id] = cloneDocument(doc)
	return nil
}

func (store *InMemoryDocumentStore) DeleteDocument(ctx context.Context, id int64) error {
	store.docMutex.Lock()
	defer store.docMutex.Unlock()
	if _, found := store.docMap[id]; !found {
		return docModel.ErrNotFound
	}
	delete(store.docMap, id)
	return nil
}

// cloneDocument detaches slices and maps so callers cannot mutate stored state.
func cloneDocument(d docModel.Document) docModel.Document {
	if d.Content != nil {
		c := *d.Content
		d.Content = &c
	}
	if d.UploadedBy != nil {
		u := *d.UploadedBy
		d.UploadedBy = &u
	}
	if d.Chunks != nil {
		d.Chunks = append([]string{}, d.Chunks...)
	}
	if d.Embeddings != nil {
		e := make([][]float32, len(d.Embeddings))
		for i, v := range d.Embeddings {
			e[i] = append([]float32{}, v...)
		}
		d.Embeddings = e
	}
	if d.Metadata != nil {
		m := make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			m[k] = v
		}
		d.Metadata = m
	}
	return d
}
