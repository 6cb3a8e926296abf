// Package processEmbedding runs an external program per batch. The program
// reads a JSON array of strings on stdin and writes a JSON array of vectors to
// stdout; on failure it writes to stderr and exits non-zero.
package processEmbedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/akolanti/docchat/internal/rag/embedding"
	"github.com/akolanti/docchat/pkg/logger_i"
)

// stderr kept on the error, the rest is dropped
const maxStderr = 4 << 10

type Embedder struct {
	command string
	args    []string
	env     []string
	model   string
	logger  *logger_i.Logger
}

var _ embedding.Embedder = (*Embedder)(nil)

type Option func(*Embedder)

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func WithEnv(env ...string) Option {
	return func(e *Embedder) { e.env = append(e.env, env...) }
}

func New(model, command string, args []string, opts ...Option) *Embedder {
	e := &Embedder{
		command: command,
		args:    args,
		model:   model,
		logger:  logger_i.NewLogger("process_embedding"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Embed(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return [][]float32{}, nil
	}
	log := e.logger.WithTrace(ctx)

	payload, err := json.Marshal(chunks)
	if err != nil {
		return nil, &embedding.DecodeError{Reason: "encoding request", Err: err}
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(e.env) > 0 {
		cmd.Env = append(os.Environ(), e.env...)
	}

	log.Debug("Starting embedding process", "command", e.command, "chunks", len(chunks))
	if err := cmd.Run(); err != nil {
		perr := &embedding.ProcessError{ExitCode: -1, Stderr: trimStderr(stderr.String()), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		if ctx.Err() != nil {
			perr.Err = ctx.Err()
		}
		log.Error("Embedding process failed", "exitCode", perr.ExitCode, "stderr", perr.Stderr, "error", err)
		return nil, perr
	}

	var vectors [][]float32
	if err := json.Unmarshal(stdout.Bytes(), &vectors); err != nil {
		return nil, &embedding.DecodeError{Reason: "response is not a vector array", Err: err}
	}
	if err := embedding.CheckAligned(chunks, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func trimStderr(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = s[:maxStderr]
	}
	return s
}
