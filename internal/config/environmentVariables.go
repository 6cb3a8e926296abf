package config

import (
	"log/slog"
	"time"
)

type ctxKey string

const (
	TRACE_ID_KEY ctxKey = "traceId"
	USER_ID_KEY  ctxKey = "userId"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	RATE_LIMIT_PER_SECOND           = 5
	BURST_RATE_LIMIT_PER_SECOND     = 10

	MaxWorkerCount    int64 = 10
	MinWorkerCount    int64 = 1
	IdleWorkerTimeout       = 1 * time.Minute
	IngestJobTimeout        = 2 * time.Minute
	JobTimeoutHeadroom      = 1 * time.Minute

	//serverTimeouts
	ReadTimeout            = 15 * time.Second
	WriteTimeout           = 30 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	//uploads
	MaxUploadSize   = 32 << 20 //32mb
	UploadDirectory = "temporary_data"

	//chunking + retrieval
	MinChunkLength       = 50
	ContextPreviewLength = 500
	ChatResultLimit      = 5
	SearchResultLimit    = 10
	MaxSearchLimit       = 100
	ConversationTitleLen = 50

	//embeddings
	EmbeddingBackendProcess = "process"
	EmbeddingBackendGoogle  = "google"
	EmbeddingBackendOpenAI  = "openai"
	EmbeddingBackendHash    = "hash"
	EmbeddingCommand        = "python3"
	EmbeddingScript         = "server/embedding.py"
	EmbeddingTimeout        = 60 * time.Second
	ProcessEmbeddingModel   = "all-MiniLM-L6-v2"
	ProcessEmbeddingDim     = 384
	HashEmbeddingModel      = "feature-hash-384"

	GoogleEmbeddingModel                = "gemini-embedding-001"
	EmbeddingOutputDimensionality int32 = 768
	OpenAIEmbeddingModel                = "text-embedding-3-small"

	//extraction
	ExtractionModePlaceholder = "placeholder"
	ExtractionModeParse       = "parse"
	PageExtractTimeout        = 10 * time.Second

	//vectorDB mirror, empty host disables it
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = ""
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false
	QdrantPoolSize          = 1
	QdrantCollection        = "docchat-chunks"

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//stores
	StoreBackendRedis  = "redis"
	StoreBackendSQLite = "sqlite"
	StoreBackendMemory = "memory"
	SQLitePath         = "data/docchat.db"

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisDocumentStore     = 0
	RedisConversationStore = 1
	RedisSessionStore      = 2

	//sessions
	SessionTTL = 24 * time.Hour
)
