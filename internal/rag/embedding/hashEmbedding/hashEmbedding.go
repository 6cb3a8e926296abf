// Package hashEmbedding is a deterministic feature-hashing embedder. It needs
// no model files and backs cmd/embedder and the in-process "hash" backend.
package hashEmbedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/akolanti/docchat/internal/rag/embedding"
)

type Embedder struct {
	dim   int
	model string
}

var _ embedding.Embedder = (*Embedder)(nil)

func New(model string, dim int) *Embedder {
	if dim <= 0 {
		dim = 1
	}
	return &Embedder{dim: dim, model: model}
}

func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Embed(ctx context.Context, chunks []string) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.Vector(c)
	}
	return out, nil
}

// Vector hashes each lower-cased word into one of dim buckets with a hashed
// sign, then L2 normalises. Text without words maps to the zero vector.
func (e *Embedder) Vector(text string) []float32 {
	v := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dim))
		if sum>>63 == 1 {
			v[idx]--
		} else {
			v[idx]++
		}
	}

	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}
