package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/akolanti/docchat/internal/data/redisStore"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/pkg/logger_i"
)

const (
	conversationSeqKey = "conversation:seq"
	messageSeqKey      = "message:seq"
)

func conversationKey(id int64) string {
	return "conversation:" + strconv.FormatInt(id, 10)
}

func messagesKey(conversationID int64) string {
	return conversationKey(conversationID) + ":messages"
}

func userConversationsKey(userID int64) string {
	return "conversations:user:" + strconv.FormatInt(userID, 10)
}

type RedisConversationStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

var _ chatModel.ConversationStore = (*RedisConversationStore)(nil)

func NewRedisConversationStore(store *redisStore.Store) *RedisConversationStore {
	return &RedisConversationStore{
		store:  store,
		logger: logger_i.NewLogger("ConversationStore"),
	}
}

func (s *RedisConversationStore) CreateConversation(ctx context.Context, conv *chatModel.Conversation) error {
	id, err := s.store.Incr(ctx, conversationSeqKey)
	if err != nil {
		return fmt.Errorf("allocate conversation id: %w", err)
	}
	conv.ID = id
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = conv.CreatedAt

	data, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	if err := s.store.SetIndexed(ctx, conversationKey(id), data, strconv.FormatInt(id, 10), userConversationsKey(conv.UserID)); err != nil {
		return fmt.Errorf("save conversation %d: %w", id, err)
	}
	s.logger.WithTrace(ctx).Debug("Created conversation", "conversationId", id, "userId", conv.UserID)
	return nil
}

func (s *RedisConversationStore) GetConversation(ctx context.Context, id int64) (chatModel.Conversation, bool) {
	var conv chatModel.Conversation
	val, err := s.store.Get(ctx, conversationKey(id))
	if s.store.IsNil(err) {
		return conv, false
	} else if err != nil {
		s.logger.WithTrace(ctx).Error("Failed to read conversation", "conversationId", id, "error", err)
		return conv, false
	}
	if err := json.Unmarshal([]byte(val), &conv); err != nil {
		s.logger.WithTrace(ctx).Error("Corrupt conversation record", "conversationId", id, "error", err)
		return conv, false
	}
	return conv, true
}

func (s *RedisConversationStore) ListConversations(ctx context.Context, userID int64) []chatModel.Conversation {
	log := s.logger.WithTrace(ctx)
	members, err := s.store.SetMembers(ctx, userConversationsKey(userID))
	if err != nil {
		log.Error("Failed to read conversation index", "userId", userID, "error", err)
		return []chatModel.Conversation{}
	}
	keys := make([]string, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			keys = append(keys, conversationKey(id))
		}
	}
	values, err := s.store.MGet(ctx, keys...)
	if err != nil {
		log.Error("Failed to read conversations", "userId", userID, "error", err)
		return []chatModel.Conversation{}
	}

	convs := make([]chatModel.Conversation, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var conv chatModel.Conversation
		if err := json.Unmarshal([]byte(raw), &conv); err != nil {
			log.Error("Corrupt conversation record", "error", err)
			continue
		}
		convs = append(convs, conv)
	}
	sortConversations(convs)
	return convs
}

func (s *RedisConversationStore) DeleteConversation(ctx context.Context, id int64) error {
	conv, found := s.GetConversation(ctx, id)
	if !found {
		return chatModel.ErrNotFound
	}
	err := s.store.DelIndexed(ctx, []string{conversationKey(id), messagesKey(id)}, strconv.FormatInt(id, 10), userConversationsKey(conv.UserID))
	if err != nil {
		return fmt.Errorf("delete conversation %d: %w", id, err)
	}
	return nil
}

func (s *RedisConversationStore) AddMessage(ctx context.Context, msg *chatModel.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	err := s.store.Update(ctx, conversationKey(msg.ConversationID), func(current string) (string, error) {
		var conv chatModel.Conversation
		if err := json.Unmarshal([]byte(current), &conv); err != nil {
			return "", err
		}
		conv.UpdatedAt = msg.CreatedAt
		data, err := json.Marshal(conv)
		return string(data), err
	})
	if errors.Is(err, redisStore.ErrKeyNotFound) {
		return chatModel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("touch conversation %d: %w", msg.ConversationID, err)
	}

	id, err := s.store.Incr(ctx, messageSeqKey)
	if err != nil {
		return fmt.Errorf("allocate message id: %w", err)
	}
	msg.ID = id
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.store.ListPush(ctx, messagesKey(msg.ConversationID), data); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

func (s *RedisConversationStore) GetMessages(ctx context.Context, conversationID int64) []chatModel.Message {
	log := s.logger.WithTrace(ctx).With("conversationId", conversationID)
	res, err := s.store.ListGetAll(ctx, messagesKey(conversationID))
	if err != nil {
		log.Error("Error getting history", "error", err)
		return []chatModel.Message{}
	}
	msgs := make([]chatModel.Message, 0, len(res))
	for _, raw := range res {
		var m chatModel.Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			log.Error("Corrupt message record", "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	sortMessages(msgs)
	return msgs
}

func sortConversations(convs []chatModel.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		if convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].ID > convs[j].ID
		}
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
}

func sortMessages(msgs []chatModel.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
