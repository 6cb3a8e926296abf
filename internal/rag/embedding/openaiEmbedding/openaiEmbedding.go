// Package openaiEmbedding calls an OpenAI compatible /embeddings endpoint.
package openaiEmbedding

import (
	"context"
	"fmt"

	"github.com/akolanti/docchat/internal/customHttpClient"
	"github.com/akolanti/docchat/internal/rag/embedding"
	"github.com/akolanti/docchat/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type client struct {
	api    openai.Client
	model  string
	logger *logger_i.Logger
}

var _ embedding.Embedder = (*client)(nil)

func New(cfg Config) embedding.Embedder {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(customHttpClient.NewClient(0)),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &client{
		api:    openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger_i.NewLogger("openai_embedding"),
	}
}

func (c *client) Model() string { return c.model }

func (c *client) Embed(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	res, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunks},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		c.logger.WithTrace(ctx).Error("Error getting Embeddings from OpenAI", "error", err)
		return nil, &embedding.RequestError{Provider: "openai", Err: err}
	}

	if len(res.Data) != len(chunks) {
		return nil, &embedding.DecodeError{Reason: fmt.Sprintf("got %d vectors for %d chunks", len(res.Data), len(chunks))}
	}
	// each vector carries its input position
	vectors := make([][]float32, len(chunks))
	for _, d := range res.Data {
		if d.Index < 0 || int(d.Index) >= len(chunks) {
			return nil, &embedding.DecodeError{Reason: "embedding index out of range"}
		}
		vectors[d.Index] = embedding.Float32s(d.Embedding)
	}
	if err := embedding.CheckAligned(chunks, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}
