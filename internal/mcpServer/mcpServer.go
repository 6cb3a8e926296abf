// Package mcpServer exposes document search to MCP clients over streamable HTTP.
package mcpServer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/rag/search"
	"github.com/akolanti/docchat/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "1.0.0"

var (
	ErrEmptyQuery   = errors.New("query must not be empty")
	ErrInvalidLimit = fmt.Errorf("limit must be between 0 and %d", config.MaxSearchLimit)
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) []search.Result
}

type SearchInput struct {
	Query string `json:"query" jsonschema:"free-text query matched against indexed document content"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default 10, max 100)"`
}

type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

type SearchResultOutput struct {
	DocumentID int64  `json:"document_id"`
	Filename   string `json:"filename"`
	Relevance  int    `json:"relevance"`
}

type Server struct {
	searcher Searcher
	server   *mcp.Server
	logger   *logger_i.Logger
}

func NewServer(searcher Searcher) *Server {
	s := &Server{
		searcher: searcher,
		server:   mcp.NewServer(&mcp.Implementation{Name: "docchat", Version: Version}, nil),
		logger:   logger_i.NewLogger("MCP"),
	}
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Rank indexed documents by keyword relevance to a query",
	}, s.handleSearch)
	return s
}

// Handler serves the MCP streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{}, ErrEmptyQuery
	}
	if input.Limit < 0 || input.Limit > config.MaxSearchLimit {
		return nil, SearchOutput{}, ErrInvalidLimit
	}
	results := s.searcher.Search(ctx, query, input.Limit)
	s.logger.WithTrace(ctx).Debug("search_documents", "query", query, "results", len(results))

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = SearchResultOutput{
			DocumentID: r.Document.ID,
			Filename:   r.Document.OriginalName,
			Relevance:  r.Relevance,
		}
	}
	return nil, output, nil
}
