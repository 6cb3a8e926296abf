// Package chunk splits extracted text into paragraph-sized retrieval units.
package chunk

import (
	"strings"
	"unicode/utf8"

	"github.com/akolanti/docchat/internal/config"
)

const separator = "\n\n"

// Split cuts text at blank lines and keeps, in order, the trimmed segments
// longer than config.MinChunkLength characters.
func Split(text string) []string {
	return SplitMin(text, config.MinChunkLength)
}

func SplitMin(text string, minLength int) []string {
	chunks := make([]string, 0)
	if text == "" {
		return chunks
	}
	for _, part := range strings.Split(text, separator) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > minLength {
			chunks = append(chunks, part)
		}
	}
	return chunks
}
