package redisStore

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/akolanti/docchat/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instances = make(map[int]*Store)
	mu        sync.RWMutex
	once      sync.Once
	logger    = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("Redis Store") })
)

type Store struct {
	client *redis.Client
	Type   int
}

type Options struct {
	Addr     string
	Password string
}

// GetRedisStore returns the shared store for a logical DB, connecting on first use.
// It returns nil when redis cannot be reached.
func GetRedisStore(ctx context.Context, opts Options, DBType int) *Store {

	mu.RLock()
	instance, exists := instances[DBType]
	mu.RUnlock()

	if exists {
		return instance
	}

	mu.Lock()
	defer mu.Unlock()

	if instance, exists = instances[DBType]; exists {
		return instance
	}
	return createNewStore(ctx, opts, DBType)

}

func closeRedisStores(ctx context.Context) {
	<-ctx.Done()
	log := logger()
	log.Info("Closing Redis Stores")
	mu.Lock()
	defer mu.Unlock()
	for db, store := range instances {
		err := store.client.Close()
		if err != nil {
			log.Error("Error closing redis client", "db", db, "error", err)
		}
		delete(instances, db)
	}
	log.Info("Redis Store Closed successfully")
}

func createNewStore(ctx context.Context, opts Options, dbType int) *Store {
	log := logger().With("db", strconv.Itoa(dbType), "addr", opts.Addr)

	newClient := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    dbType,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := newClient.Ping(pingCtx).Err(); err != nil {
		log.Error("Redis is offline", "error", err)
		_ = newClient.Close()
		return nil
	}

	log.Info("Redis store connected")

	newStore := &Store{
		client: newClient,
		Type:   dbType,
	}

	instances[dbType] = newStore
	once.Do(func() {
		go closeRedisStores(ctx)
	})
	return newStore

}

// NewTestStore wraps an existing client, typically one pointed at miniredis.
func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}
