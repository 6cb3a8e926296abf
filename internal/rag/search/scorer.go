// Package search ranks indexed documents by keyword overlap with a query.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/docchat/internal/domain/docModel"
)

// shorter query tokens are ignored
const minTokenLength = 3

type Result struct {
	Document  docModel.Document `json:"document"`
	Relevance int               `json:"relevance"`
}

type Scorer struct{}

// Tokens splits the query on whitespace and keeps tokens of three or more characters.
func (Scorer) Tokens(query string) []string {
	tokens := make([]string, 0)
	for _, f := range strings.Fields(query) {
		if utf8.RuneCountInString(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Score sums, over the query tokens, the case-insensitive occurrences of each
// token in content.
func (s Scorer) Score(query, content string) int {
	score := 0
	for _, tok := range s.Tokens(query) {
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(tok))
		score += len(re.FindAllStringIndex(content, -1))
	}
	return score
}

// Matches is the candidate filter: the whole query must appear in the content,
// ignoring case.
func (Scorer) Matches(query string, doc docModel.Document) bool {
	if doc.Content == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*doc.Content), strings.ToLower(query))
}

// Rank scores docs, sorts by descending relevance keeping input order on ties,
// and returns at most limit results. limit <= 0 means no cap.
func (s Scorer) Rank(query string, docs []docModel.Document, limit int) []Result {
	results := make([]Result, 0, len(docs))
	for _, d := range docs {
		content := ""
		if d.Content != nil {
			content = *d.Content
		}
		results = append(results, Result{Document: d, Relevance: s.Score(query, content)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
