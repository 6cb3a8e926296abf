// @title           Document Chat API
// @version         1.0
// @description     Upload documents for asynchronous ingestion, search them and chat over them.
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https

// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akolanti/docchat/internal/chat"
	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/data/store"
	"github.com/akolanti/docchat/internal/documents"
	jobmodel "github.com/akolanti/docchat/internal/domain/jobModel"
	"github.com/akolanti/docchat/internal/handlers"
	"github.com/akolanti/docchat/internal/job"
	"github.com/akolanti/docchat/internal/mcpServer"
	"github.com/akolanti/docchat/internal/middleware"
	"github.com/akolanti/docchat/internal/rag"
	"github.com/akolanti/docchat/internal/rag/compose"
	"github.com/akolanti/docchat/internal/rag/embedding"
	"github.com/akolanti/docchat/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/docchat/internal/rag/embedding/hashEmbedding"
	"github.com/akolanti/docchat/internal/rag/embedding/openaiEmbedding"
	"github.com/akolanti/docchat/internal/rag/embedding/processEmbedding"
	"github.com/akolanti/docchat/internal/rag/extract"
	"github.com/akolanti/docchat/internal/rag/ingest"
	"github.com/akolanti/docchat/internal/rag/search"
	"github.com/akolanti/docchat/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/docchat/internal/server"
	"github.com/akolanti/docchat/internal/session"
	"github.com/akolanti/docchat/internal/worker"
	"github.com/akolanti/docchat/pkg/logger_i"
)

func main() {
	var listenAddr, configPath string
	flag.StringVar(&listenAddr, "listen-addr", "", "server listen address (overrides config)")
	flag.StringVar(&configPath, "config", "", "path to docchat.yaml")
	flag.Parse()

	settings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if listenAddr != "" {
		settings.ListenAddr = listenAddr
	}

	logger_i.InitWithLevel(settings.LogLevel)
	logger := logger_i.NewLogger("main")

	if err := run(settings, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

func run(settings *config.Settings, logger *logger_i.Logger) error {
	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// outlives the http server so workers can finish with open stores
	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	stores, err := store.Open(serviceContext, settings)
	if err != nil {
		return err
	}
	logger.Info("Stores ready", "backend", stores.Backend)

	embedder, err := newEmbedder(serviceContext, settings)
	if err != nil {
		return err
	}
	logger.Info("Embedding backend ready", "backend", settings.EmbeddingBackend, "model", embedder.Model())

	registry := extract.NewDefaultRegistry(settings.ExtractionMode)
	pipelineOpts := []ingest.Option{ingest.WithEmbedTimeout(settings.EmbeddingTimeout)}
	documentOpts := []documents.Option{documents.WithUploadDir(settings.UploadDir)}
	if settings.QdrantHost != "" {
		sink, err := qdrantDB.NewSink(serviceContext, qdrantDB.Options{
			Host:       settings.QdrantHost,
			Port:       settings.QdrantPort,
			Collection: settings.QdrantCollection,
		})
		if err != nil {
			return err
		}
		pipelineOpts = append(pipelineOpts, ingest.WithIndexSink(sink))
		documentOpts = append(documentOpts, documents.WithIndexSink(sink))
		logger.Info("Mirroring chunks to qdrant", "host", settings.QdrantHost, "collection", settings.QdrantCollection)
	}

	pipeline := ingest.NewPipeline(stores.Documents, registry, embedder, pipelineOpts...)
	ragService := rag.NewService(pipeline, search.NewService(stores.Documents), compose.NewTemplateComposer())

	//init buffered job channel
	jobService := job.InitJobService(job.ServiceConfig{
		JobChannel:        make(chan jobmodel.Job, config.BufferLimit),
		DispatcherChannel: make(chan bool, 1),
	})

	//init worker pool
	pool := worker.NewPool(jobService, ragService, worker.WithJobTimeout(settings.JobTimeout()))
	pool.Start()

	sessions := session.NewService(stores.Sessions, settings.SessionTTL)
	h := handlers.New(
		documents.NewService(stores.Documents, registry, jobService, documentOpts...),
		chat.NewService(stores.Conversations, ragService),
		ragService,
		sessions,
	)

	routes := server.Routes{Handler: h, Chain: middleware.FromSettings(settings, sessions)}
	if settings.EnableMCP {
		routes.MCP = mcpServer.NewServer(ragService).Handler()
	}

	srv := server.New(settings.ListenAddr, server.NewRouter(routes))
	return srv.Run(signalCtx, pool.Stop)
}

func newEmbedder(ctx context.Context, s *config.Settings) (embedding.Embedder, error) {
	switch s.EmbeddingBackend {
	case config.EmbeddingBackendProcess:
		return processEmbedding.New(config.ProcessEmbeddingModel, s.EmbeddingCommand, s.EmbeddingArgs), nil
	case config.EmbeddingBackendHash:
		return hashEmbedding.New(config.HashEmbeddingModel, config.ProcessEmbeddingDim), nil
	case config.EmbeddingBackendGoogle:
		return googleEmbedding.New(ctx, googleEmbedding.Config{
			APIKey:    s.GoogleAPIKey,
			Model:     s.GoogleModel,
			Dimension: config.EmbeddingOutputDimensionality,
		})
	case config.EmbeddingBackendOpenAI:
		return openaiEmbedding.New(openaiEmbedding.Config{
			APIKey:  s.OpenAIAPIKey,
			BaseURL: s.OpenAIBaseURL,
			Model:   s.OpenAIModel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", s.EmbeddingBackend)
	}
}
