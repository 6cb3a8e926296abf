// Command embedder speaks the embedding process protocol with the feature
// hashing model: a JSON array of strings on stdin, a JSON array of vectors on
// stdout. Failures are reported as "Error: ..." on stderr with exit status 1.
//
// To use it in place of the python script, set in docchat.yaml:
//
//	embedding_command: embedder
//	embedding_args: []
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/rag/embedding/hashEmbedding"
)

func main() {
	dim := flag.Int("dim", config.ProcessEmbeddingDim, "vector dimension")
	flag.Parse()

	if err := run(context.Background(), os.Stdin, os.Stdout, *dim); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer, dim int) error {
	var texts []string
	if err := json.NewDecoder(in).Decode(&texts); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	vectors, err := hashEmbedding.New(config.HashEmbeddingModel, dim).Embed(ctx, texts)
	if err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(vectors)
}
