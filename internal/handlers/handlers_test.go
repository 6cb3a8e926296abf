package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/docchat/internal/api"
	"github.com/akolanti/docchat/internal/chat"
	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/documents"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/job"
	"github.com/akolanti/docchat/internal/rag/extract"
	"github.com/akolanti/docchat/internal/rag/search"
	"github.com/akolanti/docchat/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockDocuments struct {
	lastUpload documents.UploadRequest
	body       string
	OnUpload   func(req documents.UploadRequest) (docModel.Document, error)
	OnGet      func(id int64, userID *int64) (docModel.Document, error)
	OnDelete   func(id int64, userID *int64) error
	OnList     func(userID *int64) []docModel.Document
}

func (m *MockDocuments) Upload(_ context.Context, req documents.UploadRequest) (docModel.Document, error) {
	m.lastUpload = req
	data, _ := io.ReadAll(req.File)
	m.body = string(data)
	return m.OnUpload(req)
}

func (m *MockDocuments) List(_ context.Context, userID *int64) []docModel.Document {
	return m.OnList(userID)
}

func (m *MockDocuments) Get(_ context.Context, id int64, userID *int64) (docModel.Document, error) {
	return m.OnGet(id, userID)
}

func (m *MockDocuments) Delete(_ context.Context, id int64, userID *int64) error {
	return m.OnDelete(id, userID)
}

type MockChat struct {
	OnSend    func(userID int64, convID *int64, text string) (chatModel.Message, []chatModel.Source, error)
	OnHistory func(userID, convID int64) ([]chatModel.Message, error)
	OnDelete  func(userID, convID int64) error
}

func (m *MockChat) Send(_ context.Context, userID int64, convID *int64, text string) (chatModel.Message, []chatModel.Source, error) {
	return m.OnSend(userID, convID, text)
}

func (m *MockChat) List(context.Context, int64) []chatModel.Conversation {
	return []chatModel.Conversation{{ID: 1, Title: "t"}}
}

func (m *MockChat) History(_ context.Context, userID, convID int64) ([]chatModel.Message, error) {
	return m.OnHistory(userID, convID)
}

func (m *MockChat) Delete(_ context.Context, userID, convID int64) error {
	return m.OnDelete(userID, convID)
}

type MockSearcher struct {
	query string
	limit int
}

func (m *MockSearcher) Search(_ context.Context, query string, limit int) []search.Result {
	m.query, m.limit = query, limit
	return []search.Result{{Document: docModel.Document{ID: 4, OriginalName: "a.txt", Status: docModel.StatusIndexed}, Relevance: 2}}
}

type MockSessions struct {
	revoked string
}

func (m *MockSessions) Issue(_ context.Context, userID int64) (session.Session, error) {
	if userID <= 0 {
		return session.Session{}, session.ErrInvalidUser
	}
	return session.Session{Token: "tok", UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockSessions) Revoke(_ context.Context, token string) error {
	m.revoked = token
	return nil
}

type fixture struct {
	docs     *MockDocuments
	chat     *MockChat
	search   *MockSearcher
	sessions *MockSessions
	router   *chi.Mux
}

// withUser stands in for the identity middleware.
func withUser(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := config.WithTraceID(r.Context(), "trace-t")
			if userID > 0 {
				ctx = config.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newFixture(userID int64) *fixture {
	f := &fixture{
		docs:     &MockDocuments{},
		chat:     &MockChat{},
		search:   &MockSearcher{},
		sessions: &MockSessions{},
	}
	h := New(f.docs, f.chat, f.search, f.sessions)
	r := chi.NewRouter()
	r.Use(withUser(userID))
	r.Get("/health", h.Health)
	r.Post("/documents", h.UploadDocument)
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{id}", h.GetDocument)
	r.Delete("/documents/{id}", h.DeleteDocument)
	r.Get("/search", h.Search)
	r.Post("/chat", h.Chat)
	r.Get("/conversations", h.ListConversations)
	r.Get("/conversations/{id}/messages", h.ConversationMessages)
	r.Delete("/conversations/{id}", h.DeleteConversation)
	r.Post("/sessions", h.CreateSession)
	r.Delete("/sessions", h.DeleteSession)
	f.router = r
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var e api.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	return e
}

func multipartUpload(t *testing.T, field, filename, contentType, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	rr := newFixture(0).do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestUploadDocument(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newFixture(3)
		f.docs.OnUpload = func(req documents.UploadRequest) (docModel.Document, error) {
			d := docModel.NewDocument("1-notes.txt", req.Filename, "text/plain", 5, req.UploadedBy)
			d.ID = 11
			return d, nil
		}

		rr := f.do(multipartUpload(t, "file", "notes.txt", "text/plain", "hello"))

		require.Equal(t, http.StatusCreated, rr.Code)
		var doc api.Document
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
		assert.Equal(t, int64(11), doc.ID)
		assert.Equal(t, "processing", doc.Status)
		assert.Equal(t, "notes.txt", f.docs.lastUpload.Filename)
		assert.Equal(t, "text/plain", f.docs.lastUpload.DeclaredType)
		require.NotNil(t, f.docs.lastUpload.UploadedBy)
		assert.Equal(t, int64(3), *f.docs.lastUpload.UploadedBy)
		assert.Equal(t, "hello", f.docs.body)
	})

	t.Run("anonymous upload", func(t *testing.T) {
		f := newFixture(0)
		f.docs.OnUpload = func(req documents.UploadRequest) (docModel.Document, error) {
			return docModel.NewDocument("x", req.Filename, "text/plain", 1, nil), nil
		}
		rr := f.do(multipartUpload(t, "file", "a.txt", "text/plain", "x"))
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Nil(t, f.docs.lastUpload.UploadedBy)
	})

	t.Run("unsupported type", func(t *testing.T) {
		f := newFixture(3)
		f.docs.OnUpload = func(documents.UploadRequest) (docModel.Document, error) {
			return docModel.Document{}, &extract.UnsupportedTypeError{MimeType: "image/png"}
		}

		rr := f.do(multipartUpload(t, "file", "a.png", "image/png", "x"))

		assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
		e := decodeError(t, rr)
		assert.Equal(t, http.StatusUnsupportedMediaType, e.Code)
		assert.Equal(t, "trace-t", e.TraceID)
	})

	t.Run("queue full", func(t *testing.T) {
		f := newFixture(3)
		f.docs.OnUpload = func(documents.UploadRequest) (docModel.Document, error) {
			return docModel.Document{}, fmt.Errorf("queueing: %w", job.ErrQueueFull)
		}

		rr := f.do(multipartUpload(t, "file", "a.txt", "text/plain", "x"))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("missing file field", func(t *testing.T) {
		f := newFixture(3)
		rr := f.do(multipartUpload(t, "other", "a.txt", "text/plain", "x"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not multipart", func(t *testing.T) {
		f := newFixture(3)
		req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		assert.Equal(t, http.StatusBadRequest, f.do(req).Code)
	})
}

func TestGetAndDeleteDocument(t *testing.T) {
	f := newFixture(3)
	f.docs.OnGet = func(id int64, _ *int64) (docModel.Document, error) {
		if id != 5 {
			return docModel.Document{}, docModel.ErrNotFound
		}
		d := docModel.Document{ID: 5, Status: docModel.StatusError, Metadata: map[string]any{"error": "embedding failed"}}
		return d, nil
	}
	f.docs.OnDelete = func(id int64, _ *int64) error {
		if id != 5 {
			return docModel.ErrNotFound
		}
		return nil
	}

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "get found", method: http.MethodGet, path: "/documents/5", want: http.StatusOK},
		{name: "get missing", method: http.MethodGet, path: "/documents/6", want: http.StatusNotFound},
		{name: "get bad id", method: http.MethodGet, path: "/documents/abc", want: http.StatusBadRequest},
		{name: "delete found", method: http.MethodDelete, path: "/documents/5", want: http.StatusNoContent},
		{name: "delete missing", method: http.MethodDelete, path: "/documents/6", want: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.want, rr.Code)
		})
	}

	rr := f.do(httptest.NewRequest(http.MethodGet, "/documents/5", nil))
	var doc api.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "error", doc.Status)
	assert.Equal(t, "embedding failed", doc.Metadata["error"])
}

func TestListDocuments(t *testing.T) {
	f := newFixture(0)
	var gotUser *int64
	f.docs.OnList = func(userID *int64) []docModel.Document {
		gotUser = userID
		return []docModel.Document{{ID: 1}, {ID: 2}}
	}

	rr := f.do(httptest.NewRequest(http.MethodGet, "/documents", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, gotUser)
	var list api.DocumentList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Documents, 2)
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		want      int
		wantLimit int
	}{
		{name: "default limit", query: "?q=deploy", want: http.StatusOK, wantLimit: 0},
		{name: "explicit limit", query: "?q=deploy&limit=3", want: http.StatusOK, wantLimit: 3},
		{name: "missing query", query: "?limit=3", want: http.StatusBadRequest},
		{name: "bad limit", query: "?q=x&limit=many", want: http.StatusBadRequest},
		{name: "negative limit", query: "?q=x&limit=-1", want: http.StatusBadRequest},
		{name: "largest limit", query: "?q=x&limit=100", want: http.StatusOK, wantLimit: 100},
		{name: "limit above maximum", query: "?q=x&limit=101", want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(0)
			rr := f.do(httptest.NewRequest(http.MethodGet, "/search"+tc.query, nil))
			require.Equal(t, tc.want, rr.Code)
			if tc.want != http.StatusOK {
				return
			}
			assert.Equal(t, tc.wantLimit, f.search.limit)
			var res api.SearchResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
			require.Len(t, res.Results, 1)
			assert.Equal(t, 2, res.Results[0].Relevance)
			assert.Equal(t, int64(4), res.Results[0].Document.ID)
		})
	}
}

func TestChat(t *testing.T) {
	t.Run("new conversation", func(t *testing.T) {
		f := newFixture(3)
		f.chat.OnSend = func(userID int64, convID *int64, text string) (chatModel.Message, []chatModel.Source, error) {
			assert.Equal(t, int64(3), userID)
			assert.Nil(t, convID)
			assert.Equal(t, "what is up", text)
			sources := []chatModel.Source{{DocumentID: 4, Filename: "a.txt", Relevance: 2}}
			return chatModel.Message{ID: 2, ConversationID: 8, Role: chatModel.RoleAssistant, Content: "reply", Sources: sources}, sources, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"what is up"}`))
		rr := f.do(req)

		require.Equal(t, http.StatusOK, rr.Code)
		var res api.ChatResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.Equal(t, int64(8), res.ConversationID)
		assert.Equal(t, "reply", res.Message.Content)
		require.Len(t, res.Sources, 1)
		assert.Equal(t, "a.txt", res.Sources[0].Filename)
	})

	t.Run("existing conversation", func(t *testing.T) {
		f := newFixture(3)
		f.chat.OnSend = func(_ int64, convID *int64, _ string) (chatModel.Message, []chatModel.Source, error) {
			require.NotNil(t, convID)
			assert.Equal(t, int64(8), *convID)
			return chatModel.Message{ConversationID: 8}, nil, nil
		}
		rr := f.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"again","conversationId":8}`)))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	errs := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "malformed json", body: `{"message":`, want: http.StatusBadRequest},
		{name: "empty message", body: `{"message":""}`, err: chat.ErrEmptyMessage, want: http.StatusBadRequest},
		{name: "other user's conversation", body: `{"message":"x","conversationId":1}`, err: chatModel.ErrForbidden, want: http.StatusNotFound},
		{name: "store failure", body: `{"message":"x"}`, err: errors.New("redis down"), want: http.StatusInternalServerError},
	}
	for _, tc := range errs {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(3)
			f.chat.OnSend = func(int64, *int64, string) (chatModel.Message, []chatModel.Source, error) {
				return chatModel.Message{}, nil, tc.err
			}
			rr := f.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, rr.Code)
			assert.Equal(t, tc.want, decodeError(t, rr).Code)
		})
	}
}

func TestConversations(t *testing.T) {
	f := newFixture(3)
	f.chat.OnHistory = func(userID, convID int64) ([]chatModel.Message, error) {
		if convID != 8 {
			return nil, chatModel.ErrNotFound
		}
		return []chatModel.Message{{ID: 1, Role: chatModel.RoleUser}, {ID: 2, Role: chatModel.RoleAssistant}}, nil
	}
	f.chat.OnDelete = func(userID, convID int64) error { return nil }

	rr := f.do(httptest.NewRequest(http.MethodGet, "/conversations", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var convs api.ConversationList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &convs))
	assert.Len(t, convs.Conversations, 1)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/conversations/8/messages", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var msgs api.MessageList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &msgs))
	assert.Len(t, msgs.Messages, 2)

	rr = f.do(httptest.NewRequest(http.MethodGet, "/conversations/9/messages", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(httptest.NewRequest(http.MethodDelete, "/conversations/8", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestSessions(t *testing.T) {
	f := newFixture(0)

	rr := f.do(httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"user_id":5}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var s api.SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &s))
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, int64(5), s.UserID)

	rr = f.do(httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"user_id":0}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodDelete, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = f.do(req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "tok", f.sessions.revoked)

	rr = f.do(httptest.NewRequest(http.MethodDelete, "/sessions", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
