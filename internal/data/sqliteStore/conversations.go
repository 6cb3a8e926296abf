package sqliteStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/akolanti/docchat/internal/domain/chatModel"
)

// ConversationStore adapts Store to chatModel.ConversationStore.
type ConversationStore struct {
	*Store
}

var _ chatModel.ConversationStore = ConversationStore{}

func (s *Store) Conversations() ConversationStore {
	return ConversationStore{s}
}

func (s ConversationStore) CreateConversation(ctx context.Context, conv *chatModel.Conversation) error {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	conv.UpdatedAt = conv.CreatedAt
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO conversations (user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		conv.UserID, conv.Title, conv.CreatedAt.UTC().Format(timeLayout), conv.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	conv.ID = id
	return nil
}

func scanConversation(row rowScanner) (chatModel.Conversation, error) {
	var (
		c                    chatModel.Conversation
		createdAt, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Title, &createdAt, &updatedAt); err != nil {
		return c, err
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func (s ConversationStore) GetConversation(ctx context.Context, id int64) (chatModel.Conversation, bool) {
	row := s.db.QueryRowContext(ctx, "SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ?", id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return chatModel.Conversation{}, false
	}
	if err != nil {
		s.logger.WithTrace(ctx).Error("Failed to read conversation", "conversationId", id, "error", err)
		return chatModel.Conversation{}, false
	}
	return conv, true
}

func (s ConversationStore) ListConversations(ctx context.Context, userID int64) []chatModel.Conversation {
	log := s.logger.WithTrace(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, id DESC", userID)
	if err != nil {
		log.Error("Failed to list conversations", "userId", userID, "error", err)
		return []chatModel.Conversation{}
	}
	defer rows.Close()

	convs := make([]chatModel.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			log.Error("Skipping unreadable conversation row", "error", err)
			continue
		}
		convs = append(convs, c)
	}
	return convs
}

func (s ConversationStore) DeleteConversation(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chatModel.ErrNotFound
	}
	return nil
}

func (s ConversationStore) AddMessage(ctx context.Context, msg *chatModel.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	sources, err := nullJSON(msg.Sources, msg.Sources == nil)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	created := msg.CreatedAt.UTC().Format(timeLayout)
	res, err := tx.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", created, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("touch conversation %d: %w", msg.ConversationID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return chatModel.ErrNotFound
	}

	res, err = tx.ExecContext(ctx,
		"INSERT INTO messages (conversation_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ConversationID, string(msg.Role), msg.Content, sources, created)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	msg.ID = id
	return nil
}

func (s ConversationStore) GetMessages(ctx context.Context, conversationID int64) []chatModel.Message {
	log := s.logger.WithTrace(ctx).With("conversationId", conversationID)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, conversation_id, role, content, sources, created_at FROM messages WHERE conversation_id = ? ORDER BY created_at, id", conversationID)
	if err != nil {
		log.Error("Error getting history", "error", err)
		return []chatModel.Message{}
	}
	defer rows.Close()

	msgs := make([]chatModel.Message, 0)
	for rows.Next() {
		var (
			m               chatModel.Message
			role, createdAt string
			sources         sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &sources, &createdAt); err != nil {
			log.Error("Skipping unreadable message row", "error", err)
			continue
		}
		m.Role = chatModel.Role(role)
		m.CreatedAt = parseTime(createdAt)
		if sources.Valid {
			if err := json.Unmarshal([]byte(sources.String), &m.Sources); err != nil {
				log.Error("Corrupt message sources", "messageId", m.ID, "error", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs
}
