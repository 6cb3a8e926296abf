package googleEmbedding

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/akolanti/docchat/internal/customHttpClient"
	"github.com/akolanti/docchat/internal/rag/embedding"
	"github.com/akolanti/docchat/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Gemini accepts at most this many contents per embed call.
const maxBatch = 100

type Config struct {
	APIKey    string
	Model     string
	Dimension int32
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

type client struct {
	genAi      *genai.Client
	model      string
	dimension  int32
	retryDelay time.Duration
	logger     *logger_i.Logger
}

var _ embedding.Embedder = (*client)(nil)

func New(ctx context.Context, cfg Config) (embedding.Embedder, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.NewClient(0),
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	logger := logger_i.NewLogger("google_embedding")
	logger.Info("Google Embedding client created", "model", cfg.Model)
	return &client{
		genAi:      c,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		retryDelay: 5 * time.Second,
		logger:     logger,
	}, nil
}

func (c *client) Model() string { return c.model }

func (c *client) Embed(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	log := c.logger.WithTrace(ctx)

	results := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += maxBatch {
		end := min(start+maxBatch, len(chunks))
		res, err := c.doCall(ctx, getContent(chunks[start:end]))
		if err != nil && doRetry(err, log) {
			log.Debug("Retrying after rate limit", "delay", c.retryDelay)
			select {
			case <-ctx.Done():
				return nil, &embedding.RequestError{Provider: "google", Err: ctx.Err()}
			case <-time.After(c.retryDelay):
			}
			res, err = c.doCall(ctx, getContent(chunks[start:end]))
		}
		if err != nil {
			log.Error("Error getting Embeddings from Google", "error", err)
			return nil, &embedding.RequestError{Provider: "google", Err: err}
		}
		if res == nil {
			return nil, &embedding.DecodeError{Reason: "empty response"}
		}
		for _, e := range res.Embeddings {
			if e == nil {
				results = append(results, nil)
				continue
			}
			results = append(results, e.Values)
		}
	}

	if err := embedding.CheckAligned(chunks, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	conf := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	if c.dimension > 0 {
		conf.OutputDimensionality = &c.dimension
	}
	return c.genAi.Models.EmbedContent(ctx, c.model, content, conf)
}

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		log.Error("Rate limit hit! ", "error", err)
		return true
	}
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests,
		errors.As(err, &apiErrPtr) && apiErrPtr.Code == http.StatusTooManyRequests:
		log.Error("Rate limit hit! ", "error", err)
		return true
	}
	return false
}
