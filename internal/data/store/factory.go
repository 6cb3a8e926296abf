package store

import (
	"context"
	"fmt"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/data/redisStore"
	"github.com/akolanti/docchat/internal/data/sqliteStore"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/sessionModel"
)

type Stores struct {
	Documents     docModel.DocumentStore
	Conversations chatModel.ConversationStore
	Sessions      sessionModel.SessionStore
	Backend       string
}

func inMemoryStores() Stores {
	return Stores{
		Documents:     InitInMemoryDocumentStore(),
		Conversations: InitInMemoryConversationStore(),
		Sessions:      InitInMemorySessionStore(),
		Backend:       config.StoreBackendMemory,
	}
}

// Open builds the stores selected by settings. Redis connections are closed
// when ctx is cancelled; the sqlite database likewise.
func Open(ctx context.Context, s *config.Settings) (Stores, error) {
	log := inMemLogger.With("backend", s.StoreBackend)

	switch s.StoreBackend {
	case config.StoreBackendMemory:
		return inMemoryStores(), nil

	case config.StoreBackendSQLite:
		db, err := sqliteStore.Open(s.SQLitePath)
		if err != nil {
			return Stores{}, fmt.Errorf("open sqlite store: %w", err)
		}
		go func() {
			<-ctx.Done()
			if err := db.Close(); err != nil {
				log.Error("Error closing sqlite store", "error", err)
			}
		}()
		// sessions are short lived, so they stay in process unless redis is in use
		return Stores{
			Documents:     db.Documents(),
			Conversations: db.Conversations(),
			Sessions:      InitInMemorySessionStore(),
			Backend:       config.StoreBackendSQLite,
		}, nil

	case config.StoreBackendRedis:
		opts := redisStore.Options{Addr: s.RedisAddr, Password: s.RedisPass}
		docs := redisStore.GetRedisStore(ctx, opts, config.RedisDocumentStore)
		convs := redisStore.GetRedisStore(ctx, opts, config.RedisConversationStore)
		sessions := redisStore.GetRedisStore(ctx, opts, config.RedisSessionStore)
		if docs == nil || convs == nil || sessions == nil {
			if !config.FALLBACK_REDIS_TO_INTERNALSTORE {
				return Stores{}, fmt.Errorf("redis at %s is offline", s.RedisAddr)
			}
			log.Error("Redis stores are offline, falling back to in-memory stores")
			return inMemoryStores(), nil
		}
		return Stores{
			Documents:     NewRedisDocumentStore(docs),
			Conversations: NewRedisConversationStore(convs),
			Sessions:      NewRedisSessionStore(sessions),
			Backend:       config.StoreBackendRedis,
		}, nil
	}
	return Stores{}, fmt.Errorf("unknown store backend %q", s.StoreBackend)
}
