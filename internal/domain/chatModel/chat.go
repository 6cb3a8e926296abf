package chatModel

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	ErrNotFound  = errors.New("conversation not found")
	ErrForbidden = errors.New("conversation belongs to another user")
)

type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Source is a citation attached to an assistant message.
type Source struct {
	DocumentID int64  `json:"documentId"`
	Filename   string `json:"filename"`
	Relevance  int    `json:"relevance"`
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Sources        []Source  `json:"sources"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationStore follows the same contract as docModel.DocumentStore:
// soft-fail reads, hard-fail writes.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id int64) (Conversation, bool)
	// ListConversations returns the user's conversations, most recently updated first.
	ListConversations(ctx context.Context, userID int64) []Conversation
	// DeleteConversation removes the conversation and all of its messages.
	DeleteConversation(ctx context.Context, id int64) error
	// AddMessage assigns an id, appends the message and bumps the conversation's UpdatedAt.
	AddMessage(ctx context.Context, msg *Message) error
	// GetMessages returns messages in creation order.
	GetMessages(ctx context.Context, conversationID int64) []Message
}
