// Package chat owns conversations: it records the user's message, asks the
// RAG service for an answer and stores the reply with its citations.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/internal/rag/compose"
	"github.com/akolanti/docchat/pkg/logger_i"
)

var ErrEmptyMessage = errors.New("message must not be empty")

type Answerer interface {
	Answer(ctx context.Context, query string) (compose.Reply, error)
}

type Service struct {
	store    chatModel.ConversationStore
	answerer Answerer
	now      func() time.Time
	logger   *logger_i.Logger
}

func NewService(store chatModel.ConversationStore, answerer Answerer) *Service {
	return &Service{
		store:    store,
		answerer: answerer,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger_i.NewLogger("Chat Service"),
	}
}

// Send appends text to the conversation (a new one when conversationID is nil)
// and returns the stored assistant message with the sources it cites.
func (s *Service) Send(ctx context.Context, userID int64, conversationID *int64, text string) (chatModel.Message, []chatModel.Source, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chatModel.Message{}, nil, ErrEmptyMessage
	}
	log := s.logger.WithTrace(ctx)

	var conv chatModel.Conversation
	if conversationID == nil {
		conv = chatModel.Conversation{UserID: userID, Title: Title(text), CreatedAt: s.now()}
		if err := s.store.CreateConversation(ctx, &conv); err != nil {
			log.Error("Failed to create conversation", "error", err)
			return chatModel.Message{}, nil, err
		}
		log.Debug("Conversation created", "conversationId", conv.ID, "userId", userID)
	} else {
		var err error
		if conv, err = s.owned(ctx, userID, *conversationID); err != nil {
			return chatModel.Message{}, nil, err
		}
	}

	userMsg := chatModel.Message{
		ConversationID: conv.ID,
		Role:           chatModel.RoleUser,
		Content:        text,
		CreatedAt:      s.now(),
	}
	if err := s.store.AddMessage(ctx, &userMsg); err != nil {
		log.Error("Failed to store user message", "conversationId", conv.ID, "error", err)
		return chatModel.Message{}, nil, err
	}

	reply, err := s.answerer.Answer(ctx, text)
	if err != nil {
		log.Error("Failed to compose answer", "conversationId", conv.ID, "error", err)
		return chatModel.Message{}, nil, err
	}

	assistantMsg := chatModel.Message{
		ConversationID: conv.ID,
		Role:           chatModel.RoleAssistant,
		Content:        reply.Text,
		Sources:        reply.Sources,
		CreatedAt:      s.now(),
	}
	if err := s.store.AddMessage(ctx, &assistantMsg); err != nil {
		log.Error("Failed to store assistant message", "conversationId", conv.ID, "error", err)
		return chatModel.Message{}, nil, err
	}
	return assistantMsg, reply.Sources, nil
}

func (s *Service) List(ctx context.Context, userID int64) []chatModel.Conversation {
	return s.store.ListConversations(ctx, userID)
}

func (s *Service) History(ctx context.Context, userID, conversationID int64) ([]chatModel.Message, error) {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.GetMessages(ctx, conversationID), nil
}

func (s *Service) Delete(ctx context.Context, userID, conversationID int64) error {
	if _, err := s.owned(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.store.DeleteConversation(ctx, conversationID)
}

func (s *Service) owned(ctx context.Context, userID, conversationID int64) (chatModel.Conversation, error) {
	conv, ok := s.store.GetConversation(ctx, conversationID)
	if !ok {
		return chatModel.Conversation{}, chatModel.ErrNotFound
	}
	if conv.UserID != userID {
		s.logger.WithTrace(ctx).Warn("Conversation accessed by another user", "conversationId", conversationID, "userId", userID)
		return chatModel.Conversation{}, chatModel.ErrForbidden
	}
	return conv, nil
}

// Title is the first characters of the opening message.
func Title(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > config.ConversationTitleLen {
		r = r[:config.ConversationTitleLen]
	}
	return string(r)
}
