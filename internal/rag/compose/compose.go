// Package compose turns ranked search results into a reply with citations.
// Composer is the seam where a generation model would plug in.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/domain/chatModel"
	"github.com/akolanti/docchat/internal/rag/search"
)

const NoResultsReply = "I couldn't find any relevant documents to answer your question. Try uploading documents related to your query first."

type Reply struct {
	Text    string
	Sources []chatModel.Source
}

type Composer interface {
	Compose(ctx context.Context, query string, results []search.Result) (Reply, error)
}

// TemplateComposer quotes the query and previews the joined document contents.
type TemplateComposer struct {
	PreviewLength int
}

var _ Composer = TemplateComposer{}

func NewTemplateComposer() TemplateComposer {
	return TemplateComposer{PreviewLength: config.ContextPreviewLength}
}

func (c TemplateComposer) Compose(_ context.Context, query string, results []search.Result) (Reply, error) {
	sources := Citations(results)
	joined := BuildContext(results)
	if joined == "" {
		return Reply{Text: NoResultsReply, Sources: sources}, nil
	}

	preview := joined
	if r := []rune(joined); c.PreviewLength > 0 && len(r) > c.PreviewLength {
		preview = string(r[:c.PreviewLength]) + "..."
	}
	text := fmt.Sprintf("Based on your documents, here's what I found regarding %q:\n\n%s\n\nThis response was generated from %d relevant document(s).",
		query, preview, len(results))
	return Reply{Text: text, Sources: sources}, nil
}

// BuildContext joins the non-empty contents of results with blank lines.
func BuildContext(results []search.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Document.Content != nil && *r.Document.Content != "" {
			parts = append(parts, *r.Document.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func Citations(results []search.Result) []chatModel.Source {
	sources := make([]chatModel.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, chatModel.Source{
			DocumentID: r.Document.ID,
			Filename:   r.Document.OriginalName,
			Relevance:  r.Relevance,
		})
	}
	return sources
}
