package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/akolanti/docchat/internal/data/redisStore"
	"github.com/akolanti/docchat/internal/domain/sessionModel"
	"github.com/akolanti/docchat/pkg/logger_i"
)

func sessionKey(token string) string {
	return "session:" + token
}

type RedisSessionStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

var _ sessionModel.SessionStore = (*RedisSessionStore)(nil)

func NewRedisSessionStore(store *redisStore.Store) *RedisSessionStore {
	return &RedisSessionStore{
		store:  store,
		logger: logger_i.NewLogger("SessionStore"),
	}
}

func (s *RedisSessionStore) Get(ctx context.Context, token string) (int64, bool) {
	val, err := s.store.Get(ctx, sessionKey(token))
	if s.store.IsNil(err) {
		return 0, false
	} else if err != nil {
		s.logger.WithTrace(ctx).Error("Failed to read session", "error", err)
		return 0, false
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		s.logger.WithTrace(ctx).Error("Corrupt session record", "error", err)
		return 0, false
	}
	return id, true
}

func (s *RedisSessionStore) Set(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return s.store.Set(ctx, sessionKey(token), strconv.FormatInt(userID, 10), ttl)
}

func (s *RedisSessionStore) Expire(ctx context.Context, token string) error {
	return s.store.Del(ctx, sessionKey(token))
}

type sessionEntry struct {
	userID    int64
	expiresAt time.Time
}

type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	now      func() time.Time
}

var _ sessionModel.SessionStore = (*InMemorySessionStore)(nil)

func InitInMemorySessionStore() *InMemorySessionStore {
	return NewInMemorySessionStoreWithClock(time.Now)
}

func NewInMemorySessionStoreWithClock(now func() time.Time) *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]sessionEntry),
		now:      now,
	}
}

func (s *InMemorySessionStore) Get(ctx context.Context, token string) (int64, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return 0, false
	}
	return entry.userID, true
}

func (s *InMemorySessionStore) Set(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	entry := sessionEntry{userID: userID}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.sessions[token] = entry
	s.mu.Unlock()
	return nil
}

func (s *InMemorySessionStore) Expire(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}
