package handlers

import (
	"context"

	"github.com/akolanti/docchat/internal/documents"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/rag/search"
	"github.com/akolanti/docchat/internal/session"
)

type DocumentService interface {
	Upload(ctx context.Context, req documents.UploadRequest) (docModel.Document, error)
	List(ctx context.Context, userID *int64) []docModel.Document
	Get(ctx context.Context, id int64, userID *int64) (docModel.Document, error)
	Delete(ctx context.Context, id int64, userID *int64) error
}

type ChatService interface {
	Send(ctx context.Context, userID int64, conversationID *int64, text string) (chatModel.Message, []chatModel.Source, error)
	List(ctx context.Context, userID int64) []chatModel.Conversation
	History(ctx context.Context, userID, conversationID int64) ([]chatModel.Message, error)
	Delete(ctx context.Context, userID, conversationID int64) error
}

type Searcher interface {
	Search(ctx context.Context, query string, limit int) []search.Result
}

type SessionService interface {
	Issue(ctx context.Context, userID int64) (session.Session, error)
	Revoke(ctx context.Context, token string) error
}

type Handler struct {
	documents DocumentService
	chat      ChatService
	search    Searcher
	sessions  SessionService
}

func New(documents DocumentService, chat ChatService, search Searcher, sessions SessionService) *Handler {
	return &Handler{
		documents: documents,
		chat:      chat,
		search:    search,
		sessions:  sessions,
	}
}
