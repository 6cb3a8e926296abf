package processEmbedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/akolanti/docchat/internal/rag/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess stands in for the external embedding program.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	in, _ := io.ReadAll(os.Stdin)
	var texts []string
	if err := json.Unmarshal(in, &texts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v", err)
		os.Exit(1)
	}

	switch os.Getenv("HELPER_MODE") {
	case "ok":
		out := make([][]float32, len(texts))
		for i, s := range texts {
			out[i] = []float32{float32(len(s)), float32(i)}
		}
		_ = json.NewEncoder(os.Stdout).Encode(out)
	case "fail":
		fmt.Fprint(os.Stderr, "Error: model not found")
		os.Exit(1)
	case "garbage":
		fmt.Fprint(os.Stdout, "Loading model... done")
	case "short":
		_ = json.NewEncoder(os.Stdout).Encode([][]float32{{1}})
	case "hang":
		time.Sleep(time.Minute)
	}
}

func helper(mode string) *Embedder {
	return New("test-model", os.Args[0], []string{"-test.run=TestHelperProcess", "--"},
		WithEnv("GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode))
}

func TestEmbed_Success(t *testing.T) {
	vectors, err := helper("ok").Embed(context.Background(), []string{"abc", "hello"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 0}, {5, 1}}, vectors)
}

func TestEmbed_NoChunksSkipsProcess(t *testing.T) {
	e := New("m", "/definitely/not/a/binary", nil)

	vectors, err := e.Embed(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.NotNil(t, vectors)
}

func TestEmbed_Failures(t *testing.T) {
	tests := []struct {
		mode       string
		wantDecode bool
		wantStderr string
	}{
		{mode: "fail", wantStderr: "Error: model not found"},
		{mode: "garbage", wantDecode: true},
		{mode: "short", wantDecode: true},
	}
	for _, tc := range tests {
		t.Run(tc.mode, func(t *testing.T) {
			_, err := helper(tc.mode).Embed(context.Background(), []string{"a", "b"})

			require.Error(t, err)
			assert.True(t, errors.Is(err, embedding.ErrEmbedding))
			if tc.wantDecode {
				var de *embedding.DecodeError
				assert.ErrorAs(t, err, &de)
				return
			}
			var pe *embedding.ProcessError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, 1, pe.ExitCode)
			assert.Equal(t, tc.wantStderr, pe.Stderr)
		})
	}
}

func TestEmbed_MissingBinary(t *testing.T) {
	_, err := New("m", "/definitely/not/a/binary", nil).Embed(context.Background(), []string{"x"})

	var pe *embedding.ProcessError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, -1, pe.ExitCode)
}

func TestEmbed_Timeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := helper("hang").Embed(ctx, []string{"x"})

	var pe *embedding.ProcessError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 30*time.Second)
}
