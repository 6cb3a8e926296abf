package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/docchat/internal/domain/chatModel"
)

type InMemoryConversationStore struct {
	chatLock  *sync.RWMutex
	convMap   map[int64]chatModel.Conversation
	chatMap   map[int64][]chatModel.Message
	nextConv  int64
	nextMsgID int64
}

var _ chatModel.ConversationStore = (*InMemoryConversationStore)(nil)

func InitInMemoryConversationStore() *InMemoryConversationStore {
	return &InMemoryConversationStore{
		chatLock: new(sync.RWMutex),
		convMap:  make(map[int64]chatModel.Conversation),
		chatMap:  make(map[int64][]chatModel.Message),
	}
}

func (store *InMemoryConversationStore) CreateConversation(ctx context.Context, conv *chatModel.Conversation) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	store.nextConv++
	conv.ID = store.nextConv
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	conv.UpdatedAt = conv.CreatedAt
	store.convMap[conv.ID] = *conv
	store.chatMap[conv.ID] = make([]chatModel.Message, 0)
	return nil
}

func (store *InMemoryConversationStore) GetConversation(ctx context.Context, id int64) (chatModel.Conversation, bool) {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	conv, ok := store.convMap[id]
	return conv, ok
}

func (store *InMemoryConversationStore) ListConversations(ctx context.Context, userID int64) []chatModel.Conversation {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	result := make([]chatModel.Conversation, 0)
	for _, c := range store.convMap {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	sortConversations(result)
	return result
}

func (store *InMemoryConversationStore) DeleteConversation(ctx context.Context, id int64) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	if _, ok := store.convMap[id]; !ok {
		return chatModel.ErrNotFound
	}
	delete(store.convMap, id)
	delete(store.chatMap, id)
	return nil
}

func (store *InMemoryConversationStore) AddMessage(ctx context.Context, msg *chatModel.Message) error {
	store.chatLock.Lock()
	defer store.chatLock.Unlock()
	conv, ok := store.convMap[msg.ConversationID]
	if !ok {
		return chatModel.ErrNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	store.nextMsgID++
	msg.ID = store.nextMsgID

	saved := *msg
	if msg.Sources != nil {
		saved.Sources = append([]chatModel.Source{}, msg.Sources...)
	}
	store.chatMap[msg.ConversationID] = append(store.chatMap[msg.ConversationID], saved)
	conv.UpdatedAt = msg.CreatedAt
	store.convMap[conv.ID] = conv
	return nil
}

func (store *InMemoryConversationStore) GetMessages(ctx context.Context, conversationID int64) []chatModel.Message {
	store.chatLock.RLock()
	defer store.chatLock.RUnlock()
	result := append([]chatModel.Message{}, store.chatMap[conversationID]...)
	sortMessages(result)
	return result
}
