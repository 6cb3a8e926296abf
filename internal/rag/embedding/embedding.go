// Package embedding defines the batch embedding contract: one request per
// document, ordered chunks in, ordered vectors out.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

var ErrEmbedding = errors.New("embedding failed")

type Embedder interface {
	// Embed returns one vector per chunk, in chunk order.
	Embed(ctx context.Context, chunks []string) ([][]float32, error)
	// Model names the model recorded in document metadata.
	Model() string
}

// ProcessError is a non-zero exit (or a failure to start) of an external
// embedding process. Stderr holds the captured diagnostic output.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("embedding process exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("embedding process exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func (e *ProcessError) Is(target error) bool { return target == ErrEmbedding }

// DecodeError means the response could not be read as one vector per chunk.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoding embeddings: %s: %v", e.Reason, e.Err)
	}
	return "decoding embeddings: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrEmbedding }

// RequestError is a failed call to a hosted embedding API.
type RequestError struct {
	Provider string
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s embedding request: %v", e.Provider, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrEmbedding }

// CheckAligned verifies that every chunk received exactly one non-empty vector.
func CheckAligned(chunks []string, vectors [][]float32) error {
	if len(vectors) != len(chunks) {
		return &DecodeError{Reason: fmt.Sprintf("got %d vectors for %d chunks", len(vectors), len(chunks))}
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return &DecodeError{Reason: fmt.Sprintf("empty vector at index %d", i)}
		}
	}
	return nil
}

// Float32s narrows float64 vectors as returned by JSON APIs.
func Float32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, f := range in {
		out[i] = float32(f)
	}
	return out
}
