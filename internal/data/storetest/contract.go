// Package storetest holds behavior suites every store backend must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/sessionModel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctx() context.Context {
	return config.WithTraceID(context.Background(), "store-test")
}

func ptr[T any](v T) *T { return &v }

func newDoc(name string, owner *int64) *docModel.Document {
	d := docModel.NewDocument("1-"+name, name, "text/plain", 42, owner)
	return &d
}

// DocumentStore runs the document store suite against a fresh store per subtest.
func DocumentStore(t *testing.T, newStore func(t *testing.T) docModel.DocumentStore) {
	t.Run("create assigns increasing ids in processing state", func(t *testing.T) {
		s := newStore(t)
		a, b := newDoc("a.txt", nil), newDoc("b.txt", nil)
		require.NoError(t, s.CreateDocument(ctx(), a))
		require.NoError(t, s.CreateDocument(ctx(), b))
		assert.Greater(t, b.ID, a.ID)

		got, found := s.GetDocument(ctx(), a.ID)
		require.True(t, found)
		assert.Equal(t, docModel.StatusProcessing, got.Status)
		assert.Equal(t, "a.txt", got.OriginalName)
		assert.Nil(t, got.Content)
		assert.Nil(t, got.Chunks)
		assert.Nil(t, got.Embeddings)
		assert.Nil(t, got.UploadedBy)
	})

	t.Run("missing document is not found", func(t *testing.T) {
		s := newStore(t)
		_, found := s.GetDocument(ctx(), 999)
		assert.False(t, found)
	})

	t.Run("list by owner", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateDocument(ctx(), newDoc("mine.txt", ptr(int64(1)))))
		require.NoError(t, s.CreateDocument(ctx(), newDoc("theirs.txt", ptr(int64(2)))))
		require.NoError(t, s.CreateDocument(ctx(), newDoc("anon.txt", nil)))

		mine := s.ListDocumentsByOwner(ctx(), ptr(int64(1)))
		require.Len(t, mine, 1)
		assert.Equal(t, "mine.txt", mine[0].OriginalName)

		anon := s.ListDocumentsByOwner(ctx(), nil)
		require.Len(t, anon, 1)
		assert.Equal(t, "anon.txt", anon[0].OriginalName)

		assert.Empty(t, s.ListDocumentsByOwner(ctx(), ptr(int64(3))))
	})

	t.Run("indexed outcome persists all fields together", func(t *testing.T) {
		s := newStore(t)
		d := newDoc("a.txt", nil)
		require.NoError(t, s.CreateDocument(ctx(), d))

		err := s.CompleteIngestion(ctx(), d.ID, docModel.IngestionOutcome{
			Status:     docModel.StatusIndexed,
			Content:    ptr("hello world"),
			Chunks:     []string{"hello world"},
			Embeddings: [][]float32{{0.5, 0.25}},
			Metadata:   map[string]any{docModel.MetaChunkCount: 1},
		})
		require.NoError(t, err)

		got, found := s.GetDocument(ctx(), d.ID)
		require.True(t, found)
		assert.Equal(t, docModel.StatusIndexed, got.Status)
		require.NotNil(t, got.Content)
		assert.Equal(t, "hello world", *got.Content)
		assert.Equal(t, []string{"hello world"}, got.Chunks)
		assert.Equal(t, [][]float32{{0.5, 0.25}}, got.Embeddings)
		assert.EqualValues(t, 1, got.Metadata[docModel.MetaChunkCount])

		indexed := s.ListDocumentsByStatus(ctx(), docModel.StatusIndexed)
		require.Len(t, indexed, 1)
		assert.Equal(t, d.ID, indexed[0].ID)
		assert.Empty(t, s.ListDocumentsByStatus(ctx(), docModel.StatusProcessing))
	})

	t.Run("zero chunk document keeps empty non-nil embeddings", func(t *testing.T) {
		s := newStore(t)
		d := newDoc("short.txt", nil)
		require.NoError(t, s.CreateDocument(ctx(), d))
		require.NoError(t, s.CompleteIngestion(ctx(), d.ID, docModel.IngestionOutcome{
			Status:     docModel.StatusIndexed,
			Content:    ptr("hi"),
			Chunks:     []string{},
			Embeddings: [][]float32{},
			Metadata:   map[string]any{docModel.MetaChunkCount: 0},
		}))
		got, _ := s.GetDocument(ctx(), d.ID)
		assert.NotNil(t, got.Chunks)
		assert.NotNil(t, got.Embeddings)
		assert.Len(t, got.Embeddings, 0)
	})

	t.Run("error outcome keeps content and chunks without embeddings", func(t *testing.T) {
		s := newStore(t)
		d := newDoc("a.txt", nil)
		require.NoError(t, s.CreateDocument(ctx(), d))
		require.NoError(t, s.CompleteIngestion(ctx(), d.ID, docModel.IngestionOutcome{
			Status:   docModel.StatusError,
			Content:  ptr("text"),
			Chunks:   []string{"one", "two"},
			Metadata: map[string]any{docModel.MetaError: "embedding process exited with status 1"},
		}))
		got, _ := s.GetDocument(ctx(), d.ID)
		assert.Equal(t, docModel.StatusError, got.Status)
		assert.NotNil(t, got.Content)
		assert.Len(t, got.Chunks, 2)
		assert.Nil(t, got.Embeddings)
		assert.Equal(t, "embedding process exited with status 1", got.Metadata[docModel.MetaError])
	})

	t.Run("terminal state is written once", func(t *testing.T) {
		s := newStore(t)
		d := newDoc("a.txt", nil)
		require.NoError(t, s.CreateDocument(ctx(), d))
		failed := docModel.IngestionOutcome{Status: docModel.StatusError, Metadata: map[string]any{docModel.MetaError: "x"}}
		require.NoError(t, s.CompleteIngestion(ctx(), d.ID, failed))
		err := s.CompleteIngestion(ctx(), d.ID, failed)
		assert.True(t, errors.Is(err, docModel.ErrAlreadyFinalized), "got %v", err)
	})

	t.Run("complete on missing document", func(t *testing.T) {
		s := newStore(t)
		err := s.CompleteIngestion(ctx(), 404, docModel.IngestionOutcome{Status: docModel.StatusError, Metadata: map[string]any{docModel.MetaError: "x"}})
		assert.True(t, errors.Is(err, docModel.ErrNotFound), "got %v", err)
	})

	t.Run("delete removes from every listing", func(t *testing.T) {
		s := newStore(t)
		d := newDoc("a.txt", ptr(int64(7)))
		require.NoError(t, s.CreateDocument(ctx(), d))
		require.NoError(t, s.DeleteDocument(ctx(), d.ID))

		_, found := s.GetDocument(ctx(), d.ID)
		assert.False(t, found)
		assert.Empty(t, s.ListDocumentsByOwner(ctx(), ptr(int64(7))))
		assert.Empty(t, s.ListDocumentsByStatus(ctx(), docModel.StatusProcessing))
		assert.True(t, errors.Is(s.DeleteDocument(ctx(), d.ID), docModel.ErrNotFound))
	})

	t.Run("status listing is in ascending id order", func(t *testing.T) {
		s := newStore(t)
		var ids []int64
		for i := 0; i < 12; i++ {
			d := newDoc("doc.txt", nil)
			require.NoError(t, s.CreateDocument(ctx(), d))
			ids = append(ids, d.ID)
		}
		listed := s.ListDocumentsByStatus(ctx(), docModel.StatusProcessing)
		require.Len(t, listed, len(ids))
		for i := range ids {
			assert.Equal(t, ids[i], listed[i].ID)
		}
	})

	t.Run("concurrent completion of different documents", func(t *testing.T) {
		s := newStore(t)
		const n = 20
		docs := make([]*docModel.Document, n)
		for i := range docs {
			docs[i] = newDoc("c.txt", nil)
			require.NoError(t, s.CreateDocument(ctx(), docs[i]))
		}
		var wg sync.WaitGroup
		for _, d := range docs {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				assert.NoError(t, s.CompleteIngestion(ctx(), id, docModel.IngestionOutcome{
					Status:     docModel.StatusIndexed,
					Content:    ptr("x"),
					Chunks:     []string{},
					Embeddings: [][]float32{},
					Metadata:   map[string]any{},
				}))
			}(d.ID)
		}
		wg.Wait()
		assert.Len(t, s.ListDocumentsByStatus(ctx(), docModel.StatusIndexed), n)
	})
}

// ConversationStore runs the conversation store suite.
func ConversationStore(t *testing.T, newStore func(t *testing.T) chatModel.ConversationStore) {
	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		c := &chatModel.Conversation{UserID: 1, Title: "first"}
		require.NoError(t, s.CreateConversation(ctx(), c))
		assert.NotZero(t, c.ID)

		got, found := s.GetConversation(ctx(), c.ID)
		require.True(t, found)
		assert.Equal(t, "first", got.Title)
		assert.Equal(t, int64(1), got.UserID)

		_, found = s.GetConversation(ctx(), c.ID+100)
		assert.False(t, found)
	})

	t.Run("messages are ordered and bump updatedAt", func(t *testing.T) {
		s := newStore(t)
		start := time.Now().UTC().Add(-time.Hour)
		c := &chatModel.Conversation{UserID: 1, Title: "t", CreatedAt: start}
		require.NoError(t, s.CreateConversation(ctx(), c))

		user := &chatModel.Message{ConversationID: c.ID, Role: chatModel.RoleUser, Content: "question", CreatedAt: start.Add(time.Minute)}
		require.NoError(t, s.AddMessage(ctx(), user))
		reply := &chatModel.Message{
			ConversationID: c.ID, Role: chatModel.RoleAssistant, Content: "answer", CreatedAt: start.Add(2 * time.Minute),
			Sources: []chatModel.Source{{DocumentID: 3, Filename: "a.txt", Relevance: 4}},
		}
		require.NoError(t, s.AddMessage(ctx(), reply))
		assert.Greater(t, reply.ID, user.ID)

		msgs := s.GetMessages(ctx(), c.ID)
		require.Len(t, msgs, 2)
		assert.Equal(t, chatModel.RoleUser, msgs[0].Role)
		assert.Nil(t, msgs[0].Sources)
		assert.Equal(t, chatModel.RoleAssistant, msgs[1].Role)
		assert.Equal(t, []chatModel.Source{{DocumentID: 3, Filename: "a.txt", Relevance: 4}}, msgs[1].Sources)

		got, _ := s.GetConversation(ctx(), c.ID)
		assert.True(t, got.UpdatedAt.Equal(start.Add(2*time.Minute)), "updatedAt = %v", got.UpdatedAt)
	})

	t.Run("message on missing conversation", func(t *testing.T) {
		s := newStore(t)
		err := s.AddMessage(ctx(), &chatModel.Message{ConversationID: 77, Role: chatModel.RoleUser, Content: "x"})
		assert.True(t, errors.Is(err, chatModel.ErrNotFound), "got %v", err)
	})

	t.Run("list is per user, most recent first", func(t *testing.T) {
		s := newStore(t)
		base := time.Now().UTC().Add(-time.Hour)
		older := &chatModel.Conversation{UserID: 5, Title: "older", CreatedAt: base}
		newer := &chatModel.Conversation{UserID: 5, Title: "newer", CreatedAt: base.Add(time.Minute)}
		other := &chatModel.Conversation{UserID: 6, Title: "other", CreatedAt: base}
		for _, c := range []*chatModel.Conversation{older, newer, other} {
			require.NoError(t, s.CreateConversation(ctx(), c))
		}

		list := s.ListConversations(ctx(), 5)
		require.Len(t, list, 2)
		assert.Equal(t, "newer", list[0].Title)

		require.NoError(t, s.AddMessage(ctx(), &chatModel.Message{ConversationID: older.ID, Role: chatModel.RoleUser, Content: "bump", CreatedAt: base.Add(10 * time.Minute)}))
		list = s.ListConversations(ctx(), 5)
		assert.Equal(t, "older", list[0].Title)
	})

	t.Run("delete cascades messages", func(t *testing.T) {
		s := newStore(t)
		c := &chatModel.Conversation{UserID: 1, Title: "t"}
		require.NoError(t, s.CreateConversation(ctx(), c))
		require.NoError(t, s.AddMessage(ctx(), &chatModel.Message{ConversationID: c.ID, Role: chatModel.RoleUser, Content: "x"}))

		require.NoError(t, s.DeleteConversation(ctx(), c.ID))
		_, found := s.GetConversation(ctx(), c.ID)
		assert.False(t, found)
		assert.Empty(t, s.GetMessages(ctx(), c.ID))
		assert.Empty(t, s.ListConversations(ctx(), 1))
		assert.True(t, errors.Is(s.DeleteConversation(ctx(), c.ID), chatModel.ErrNotFound))
	})
}

// SessionStore runs the session store suite. expire fast-forwards the
// backend's clock past ttl.
func SessionStore(t *testing.T, newStore func(t *testing.T) sessionModel.SessionStore, expire func(t *testing.T, d time.Duration)) {
	t.Run("set get expire", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx(), "tok", 9, time.Hour))
		id, ok := s.Get(ctx(), "tok")
		require.True(t, ok)
		assert.Equal(t, int64(9), id)

		require.NoError(t, s.Expire(ctx(), "tok"))
		_, ok = s.Get(ctx(), "tok")
		assert.False(t, ok)
	})

	t.Run("ttl elapses", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx(), "short", 1, time.Minute))
		expire(t, 2*time.Minute)
		_, ok := s.Get(ctx(), "short")
		assert.False(t, ok)
	})

	t.Run("unknown token", func(t *testing.T) {
		s := newStore(t)
		_, ok := s.Get(ctx(), "nope")
		assert.False(t, ok)
	})
}
