package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/akolanti/docchat/internal/data/redisStore"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/pkg/logger_i"
)

const (
	documentSeqKey    = "document:seq"
	documentsAllKey   = "documents:all"
	documentKeyPrefix = "document:"
)

func documentKey(id int64) string {
	return documentKeyPrefix + strconv.FormatInt(id, 10)
}

func ownerIndexKey(userID *int64) string {
	if userID == nil {
		return "documents:owner:anon"
	}
	return "documents:owner:" + strconv.FormatInt(*userID, 10)
}

func statusIndexKey(status docModel.DocumentStatus) string {
	return "documents:status:" + string(status)
}

type RedisDocumentStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

var _ docModel.DocumentStore = (*RedisDocumentStore)(nil)

func NewRedisDocumentStore(store *redisStore.Store) *RedisDocumentStore {
	return &RedisDocumentStore{
		store:  store,
		logger: logger_i.NewLogger("DocumentStore"),
	}
}

func (s *RedisDocumentStore) CreateDocument(ctx context.Context, doc *docModel.Document) error {
	log := s.logger.WithTrace(ctx)
	id, err := s.store.Incr(ctx, documentSeqKey)
	if err != nil {
		return fmt.Errorf("allocate document id: %w", err)
	}
	doc.ID = id

	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	member := strconv.FormatInt(id, 10)
	err = s.store.SetIndexed(ctx, documentKey(id), data, member,
		documentsAllKey, ownerIndexKey(doc.UploadedBy), statusIndexKey(doc.Status))
	if err != nil {
		return fmt.Errorf("save document %d: %w", id, err)
	}
	log.Debug("Saved document", "documentId", id)
	return nil
}

func (s *RedisDocumentStore) GetDocument(ctx context.Context, id int64) (docModel.Document, bool) {
	var doc docModel.Document
	val, err := s.store.Get(ctx, documentKey(id))
	if s.store.IsNil(err) {
		return doc, false
	} else if err != nil {
		s.logger.WithTrace(ctx).Error("Failed to read document", "documentId", id, "error", err)
		return doc, false
	}
	if err := json.Unmarshal([]byte(val), &doc); err != nil {
		s.logger.WithTrace(ctx).Error("Corrupt document record", "documentId", id, "error", err)
		return doc, false
	}
	return doc, true
}

func (s *RedisDocumentStore) ListDocumentsByOwner(ctx context.Context, userID *int64) []docModel.Document {
	return s.listFromIndex(ctx, ownerIndexKey(userID))
}

func (s *RedisDocumentStore) ListDocumentsByStatus(ctx context.Context, status docModel.DocumentStatus) []docModel.Document {
	return s.listFromIndex(ctx, statusIndexKey(status))
}

func (s *RedisDocumentStore) listFromIndex(ctx context.Context, indexKey string) []docModel.Document {
	log := s.logger.WithTrace(ctx)
	members, err := s.store.SetMembers(ctx, indexKey)
	if err != nil {
		log.Error("Failed to read document index", "index", indexKey, "error", err)
		return []docModel.Document{}
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			log.Warn("Skipping malformed index member", "index", indexKey, "member", m)
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = documentKey(id)
	}
	values, err := s.store.MGet(ctx, keys...)
	if err != nil {
		log.Error("Failed to read documents", "index", indexKey, "error", err)
		return []docModel.Document{}
	}

	docs := make([]docModel.Document, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// deleted between SMEMBERS and MGET
			continue
		}
		var doc docModel.Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			log.Error("Corrupt document record", "documentId", ids[i], "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}

func (s *RedisDocumentStore) CompleteIngestion(ctx context.Context, id int64, outcome docModel.IngestionOutcome) error {
	key := documentKey(id)
	err := s.store.Update(ctx, key, func(current string) (string, error) {
		var doc docModel.Document
		if err := json.Unmarshal([]byte(current), &doc); err != nil {
			return "", err
		}
		if err := outcome.Apply(&doc); err != nil {
			return "", err
		}
		data, err := json.Marshal(doc)
		return string(data), err
	})
	if errors.Is(err, redisStore.ErrKeyNotFound) {
		return docModel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("complete ingestion of document %d: %w", id, err)
	}

	member := strconv.FormatInt(id, 10)
	if err := s.store.MoveMember(ctx, statusIndexKey(docModel.StatusProcessing), statusIndexKey(outcome.Status), member); err != nil {
		return fmt.Errorf("reindex document %d: %w", id, err)
	}
	s.logger.WithTrace(ctx).Debug("Document finalized", "documentId", id, "status", outcome.Status)
	return nil
}

func (s *RedisDocumentStore) DeleteDocument(ctx context.Context, id int64) error {
	doc, found := s.GetDocument(ctx, id)
	if !found {
		return docModel.ErrNotFound
	}
	member := strconv.FormatInt(id, 10)
	err := s.store.DelIndexed(ctx, []string{documentKey(id)}, member,
		documentsAllKey, ownerIndexKey(doc.UploadedBy), statusIndexKey(doc.Status))
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	return nil
}
