package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings are the runtime knobs read from the environment (DOCCHAT_*),
// an optional docchat.yaml and a .env file. Constants above are the defaults.
type Settings struct {
	ListenAddr   string `mapstructure:"listen_addr"`
	StoreBackend string `mapstructure:"store_backend"`
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisPass    string `mapstructure:"redis_password"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	UploadDir    string `mapstructure:"upload_dir"`

	ExtractionMode string `mapstructure:"extraction_mode"`

	EmbeddingBackend string        `mapstructure:"embedding_backend"`
	EmbeddingCommand string        `mapstructure:"embedding_command"`
	EmbeddingArgs    []string      `mapstructure:"embedding_args"`
	EmbeddingTimeout time.Duration `mapstructure:"embedding_timeout"`
	GoogleAPIKey     string        `mapstructure:"google_api_key"`
	GoogleModel      string        `mapstructure:"google_embedding_model"`
	OpenAIAPIKey     string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL    string        `mapstructure:"openai_base_url"`
	OpenAIModel      string        `mapstructure:"openai_embedding_model"`

	QdrantHost       string `mapstructure:"qdrant_host"`
	QdrantPort       int    `mapstructure:"qdrant_port"`
	QdrantCollection string `mapstructure:"qdrant_collection"`

	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	AuthToken    string        `mapstructure:"auth_token"`
	NoAuthBypass bool          `mapstructure:"no_auth_bypass"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
	EnableMCP    bool          `mapstructure:"enable_mcp"`
	LogLevel     string        `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ServerListenAddr)
	v.SetDefault("store_backend", StoreBackendRedis)
	v.SetDefault("redis_addr", RedisAddr)
	v.SetDefault("redis_password", "")
	v.SetDefault("sqlite_path", SQLitePath)
	v.SetDefault("upload_dir", UploadDirectory)

	v.SetDefault("extraction_mode", ExtractionModePlaceholder)

	v.SetDefault("embedding_backend", EmbeddingBackendProcess)
	v.SetDefault("embedding_command", EmbeddingCommand)
	v.SetDefault("embedding_args", []string{EmbeddingScript})
	v.SetDefault("embedding_timeout", EmbeddingTimeout)
	v.SetDefault("google_api_key", "")
	v.SetDefault("google_embedding_model", GoogleEmbeddingModel)
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("openai_embedding_model", OpenAIEmbeddingModel)

	v.SetDefault("qdrant_host", QdrantHost)
	v.SetDefault("qdrant_port", QdrantGrpcPort)
	v.SetDefault("qdrant_collection", QdrantCollection)

	v.SetDefault("session_ttl", SessionTTL)
	v.SetDefault("auth_token", "")
	v.SetDefault("no_auth_bypass", false)
	v.SetDefault("rate_limit", float64(RATE_LIMIT_PER_SECOND))
	v.SetDefault("rate_burst", BURST_RATE_LIMIT_PER_SECOND)
	v.SetDefault("enable_mcp", true)
	v.SetDefault("log_level", strings.ToLower(LOG_LEVEL_PROD.String()))
}

// Load reads settings. configPath may be empty, in which case docchat.yaml
// is looked up in the working directory and ./config.
func Load(configPath string) (*Settings, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("docchat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	switch s.StoreBackend {
	case StoreBackendRedis, StoreBackendSQLite, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown store backend %q", s.StoreBackend)
	}
	switch s.EmbeddingBackend {
	case EmbeddingBackendProcess:
		if s.EmbeddingCommand == "" {
			return errors.New("embedding_command is required for the process backend")
		}
	case EmbeddingBackendGoogle:
		if s.GoogleAPIKey == "" {
			return errors.New("google_api_key is required for the google backend")
		}
	case EmbeddingBackendOpenAI:
		if s.OpenAIAPIKey == "" {
			return errors.New("openai_api_key is required for the openai backend")
		}
	case EmbeddingBackendHash:
	default:
		return fmt.Errorf("unknown embedding backend %q", s.EmbeddingBackend)
	}
	switch s.ExtractionMode {
	case ExtractionModePlaceholder, ExtractionModeParse:
	default:
		return fmt.Errorf("unknown extraction mode %q", s.ExtractionMode)
	}
	if s.EmbeddingTimeout <= 0 {
		return errors.New("embedding_timeout must be positive")
	}
	return nil
}

// JobTimeout bounds one ingestion job. It stays above the embedding timeout
// so extraction and the final write still fit after a slow embed.
func (s *Settings) JobTimeout() time.Duration {
	return max(IngestJobTimeout, s.EmbeddingTimeout+JobTimeoutHeadroom)
}

// TraceID returns the request trace id carried by ctx, or "" if none.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TRACE_ID_KEY).(string)
	return id
}

// WithTraceID returns a copy of ctx carrying traceId.
func WithTraceID(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TRACE_ID_KEY, traceId)
}

// UserID returns the authenticated user carried by ctx.
func UserID(ctx context.Context) (int64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(USER_ID_KEY).(int64)
	return id, ok
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, USER_ID_KEY, userID)
}
