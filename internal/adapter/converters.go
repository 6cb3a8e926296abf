package adapter

import (
	"github.com/akolanti/docchat/internal/api"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/rag/search"
	"github.com/akolanti/docchat/internal/session"
)

func ToDocument(d docModel.Document) api.Document {
	return api.Document{
		ID:           d.ID,
		Filename:     d.Filename,
		OriginalName: d.OriginalName,
		FileType:     d.FileType,
		FileSize:     d.FileSize,
		UploadedBy:   d.UploadedBy,
		Status:       string(d.Status),
		Content:      d.Content,
		ChunkCount:   len(d.Chunks),
		Metadata:     d.Metadata,
		UploadedAt:   d.UploadedAt,
	}
}

// ToDocumentSummary drops the extracted text, for list views.
func ToDocumentSummary(d docModel.Document) api.Document {
	res := ToDocument(d)
	res.Content = nil
	return res
}

func ToDocumentList(docs []docModel.Document) api.DocumentList {
	res := api.DocumentList{Documents: make([]api.Document, 0, len(docs))}
	for _, d := range docs {
		res.Documents = append(res.Documents, ToDocumentSummary(d))
	}
	return res
}

func ToSearchResponse(query string, results []search.Result) api.SearchResponse {
	res := api.SearchResponse{Query: query, Results: make([]api.SearchResult, 0, len(results))}
	for _, r := range results {
		res.Results = append(res.Results, api.SearchResult{
			Document:  ToDocumentSummary(r.Document),
			Relevance: r.Relevance,
		})
	}
	return res
}

func ToSources(sources []chatModel.Source) []api.Source {
	if sources == nil {
		return nil
	}
	res := make([]api.Source, 0, len(sources))
	for _, s := range sources {
		res = append(res, api.Source{DocumentID: s.DocumentID, Filename: s.Filename, Relevance: s.Relevance})
	}
	return res
}

func ToMessage(m chatModel.Message) api.Message {
	return api.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		Sources:        ToSources(m.Sources),
		CreatedAt:      m.CreatedAt,
	}
}

func ToMessageList(msgs []chatModel.Message) api.MessageList {
	res := api.MessageList{Messages: make([]api.Message, 0, len(msgs))}
	for _, m := range msgs {
		res.Messages = append(res.Messages, ToMessage(m))
	}
	return res
}

func ToConversationList(convs []chatModel.Conversation) api.ConversationList {
	res := api.ConversationList{Conversations: make([]api.Conversation, 0, len(convs))}
	for _, c := range convs {
		res.Conversations = append(res.Conversations, api.Conversation{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return res
}

func ToChatResponse(m chatModel.Message, sources []chatModel.Source) api.ChatResponse {
	apiSources := ToSources(sources)
	if apiSources == nil {
		apiSources = []api.Source{}
	}
	return api.ChatResponse{
		Message:        ToMessage(m),
		Sources:        apiSources,
		ConversationID: m.ConversationID,
	}
}

func ToSessionResponse(s session.Session) api.SessionResponse {
	return api.SessionResponse{Token: s.Token, UserID: s.UserID, ExpiresAt: s.ExpiresAt}
}

func BadRequest(traceID string, message string, code int) api.ErrorResponse {
	return api.ErrorResponse{Code: code, Message: message, TraceID: traceID}
}
