package api

import "time"

type ErrorResponse struct {
	Code    int    `json:"code" example:"415"`
	Message string `json:"message" example:"unsupported file type"`
	TraceID string `json:"trace_id,omitempty" example:"6f1c2a5e-3f0e-4b7a-9d8e-0c1b2a3d4e5f"`
}

// Document is the public view of a stored document. Embeddings stay internal.
type Document struct {
	ID           int64          `json:"id" example:"12"`
	Filename     string         `json:"filename" example:"1718000000000000000-notes.txt"`
	OriginalName string         `json:"originalName" example:"notes.txt"`
	FileType     string         `json:"fileType" example:"text/plain"`
	FileSize     int64          `json:"fileSize" example:"2048"`
	UploadedBy   *int64         `json:"uploadedBy"`
	Status       string         `json:"status" example:"processing"`
	Content      *string        `json:"content,omitempty"`
	ChunkCount   int            `json:"chunkCount"`
	Metadata     map[string]any `json:"metadata"`
	UploadedAt   time.Time      `json:"uploadedAt"`
}

type DocumentList struct {
	Documents []Document `json:"documents"`
}

type SearchResult struct {
	Document  Document `json:"document"`
	Relevance int      `json:"relevance" example:"3"`
}

type SearchResponse struct {
	Query   string         `json:"query" example:"deployment pipeline"`
	Results []SearchResult `json:"results"`
}

type Source struct {
	DocumentID int64  `json:"documentId" example:"12"`
	Filename   string `json:"filename" example:"notes.txt"`
	Relevance  int    `json:"relevance" example:"3"`
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Role           string    `json:"role" example:"assistant"`
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources"`
	CreatedAt      time.Time `json:"createdAt"`
}

type MessageList struct {
	Messages []Message `json:"messages"`
}

type Conversation struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
}

type ChatResponse struct {
	Message        Message  `json:"message"`
	Sources        []Source `json:"sources"`
	ConversationID int64    `json:"conversationId"`
}

type SessionResponse struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// requests---------------------

type ChatRequest struct {
	Message        string `json:"message" validate:"required" example:"how do we deploy?"`
	ConversationID *int64 `json:"conversationId,omitempty"`
}

type SessionRequest struct {
	UserID int64 `json:"user_id" validate:"required" example:"1"`
}
