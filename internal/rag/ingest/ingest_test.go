package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/data/sqliteStore"
	"github.com/akolanti/docchat/internal/data/store"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/jobModel"
	"github.com/akolanti/docchat/internal/rag/embedding"
	"github.com/akolanti/docchat/internal/rag/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	para1 = "The first paragraph talks about machine learning models in some detail."
	para2 = "The second paragraph covers deployment pipelines and their many stages."
)

type mockEmbedder struct {
	mu      sync.Mutex
	calls   int
	OnEmbed func(ctx context.Context, chunks []string) ([][]float32, error)
}

func (m *mockEmbedder) Model() string { return "mock-model" }

func (m *mockEmbedder) Embed(ctx context.Context, chunks []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.OnEmbed != nil {
		return m.OnEmbed(ctx, chunks)
	}
	out := make([][]float32, len(chunks))
	for i := range chunks {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type mockSink struct {
	mu        sync.Mutex
	published []int64
	OnPublish func(doc docModel.Document) error
}

func (m *mockSink) Publish(_ context.Context, doc docModel.Document) error {
	m.mu.Lock()
	m.published = append(m.published, doc.ID)
	m.mu.Unlock()
	if m.OnPublish != nil {
		return m.OnPublish(doc)
	}
	return nil
}

func (m *mockSink) Remove(context.Context, int64) error { return nil }

type fixture struct {
	store    *store.InMemoryDocumentStore
	embedder *mockEmbedder
	pipeline *Pipeline
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    store.InitInMemoryDocumentStore(),
		embedder: &mockEmbedder{},
	}
	f.pipeline = NewPipeline(f.store, extract.NewDefaultRegistry(config.ExtractionModePlaceholder), f.embedder, opts...)
	return f
}

// upload mimics the upload handler: temp file plus a processing document.
func (f *fixture) upload(t *testing.T, name, mimeType, content string) jobModel.Job {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("%d-%s", time.Now().UnixNano(), name))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	doc := docModel.NewDocument(filepath.Base(path), name, mimeType, int64(len(content)), nil)
	require.NoError(t, f.store.CreateDocument(context.Background(), &doc))
	return jobModel.Job{
		Id:           "job-" + name,
		JobType:      jobModel.JobTypeIngest,
		DocumentId:   doc.ID,
		FilePath:     path,
		FileType:     mimeType,
		OriginalName: name,
	}
}

func (f *fixture) doc(t *testing.T, id int64) docModel.Document {
	t.Helper()
	d, ok := f.store.GetDocument(context.Background(), id)
	require.True(t, ok)
	return d
}

func TestRun_Indexed(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "notes.txt", "text/plain", para1+"\n\nhi\n\n"+para2)

	status := f.pipeline.Run(context.Background(), job)

	assert.Equal(t, docModel.StatusIndexed, status)
	d := f.doc(t, job.DocumentId)
	assert.Equal(t, docModel.StatusIndexed, d.Status)
	require.NotNil(t, d.Content)
	assert.Equal(t, []string{para1, para2}, d.Chunks)
	assert.Len(t, d.Embeddings, len(d.Chunks))
	assert.Equal(t, 2, d.Metadata[docModel.MetaChunkCount])
	assert.Equal(t, len([]rune(*d.Content)), d.Metadata[docModel.MetaContentLength])
	assert.NotEmpty(t, d.Metadata[docModel.MetaProcessedAt])
	assert.Equal(t, "mock-model", d.Metadata[docModel.MetaEmbeddingModel])

	_, err := os.Stat(job.FilePath)
	assert.True(t, os.IsNotExist(err), "temp file should be removed")
}

func TestRun_SingleChunkExample(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "a.txt", "text/plain", "para one is long enough to pass the fifty char minimum.\n\nhi")

	require.Equal(t, docModel.StatusIndexed, f.pipeline.Run(context.Background(), job))

	assert.Equal(t, []string{"para one is long enough to pass the fifty char minimum."}, f.doc(t, job.DocumentId).Chunks)
}

func TestRun_EmbeddingFailureKeepsContentAndChunks(t *testing.T) {
	failures := []error{
		&embedding.ProcessError{ExitCode: 1, Stderr: "Error: model missing"},
		&embedding.DecodeError{Reason: "not json"},
	}
	for _, embedErr := range failures {
		t.Run(fmt.Sprintf("%T", embedErr), func(t *testing.T) {
			f := newFixture(t)
			f.embedder.OnEmbed = func(context.Context, []string) ([][]float32, error) { return nil, embedErr }
			job := f.upload(t, "notes.txt", "text/plain", para1+"\n\n"+para2)

			status := f.pipeline.Run(context.Background(), job)

			assert.Equal(t, docModel.StatusError, status)
			d := f.doc(t, job.DocumentId)
			assert.Equal(t, docModel.StatusError, d.Status)
			require.NotNil(t, d.Content)
			assert.Len(t, d.Chunks, 2)
			assert.Nil(t, d.Embeddings)
			assert.Contains(t, d.Metadata[docModel.MetaError], embedErr.Error())
			assert.NotEmpty(t, d.Metadata[docModel.MetaFailedAt])

			_, err := os.Stat(job.FilePath)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestRun_MisalignedVectorsAreAnError(t *testing.T) {
	f := newFixture(t)
	f.embedder.OnEmbed = func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}
	job := f.upload(t, "notes.txt", "text/plain", para1+"\n\n"+para2)

	assert.Equal(t, docModel.StatusError, f.pipeline.Run(context.Background(), job))
	d := f.doc(t, job.DocumentId)
	assert.Nil(t, d.Embeddings)
	assert.Len(t, d.Chunks, 2)
}

func TestRun_ExtractionFailureSavesNoContent(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "notes.txt", "text/plain", para1)
	require.NoError(t, os.Remove(job.FilePath))

	status := f.pipeline.Run(context.Background(), job)

	assert.Equal(t, docModel.StatusError, status)
	d := f.doc(t, job.DocumentId)
	assert.Nil(t, d.Content)
	assert.Nil(t, d.Chunks)
	assert.NotEmpty(t, d.Metadata[docModel.MetaError])
	assert.Zero(t, f.embedder.calls)
}

func TestRun_NoChunksSkipsEmbedder(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "short.txt", "text/plain", "tiny")

	status := f.pipeline.Run(context.Background(), job)

	assert.Equal(t, docModel.StatusIndexed, status)
	d := f.doc(t, job.DocumentId)
	assert.Empty(t, d.Chunks)
	assert.NotNil(t, d.Embeddings)
	assert.Empty(t, d.Embeddings)
	assert.Zero(t, f.embedder.calls)
}

func TestRun_EmbeddingTimeout(t *testing.T) {
	f := newFixture(t, WithEmbedTimeout(50*time.Millisecond))
	f.embedder.OnEmbed = func(ctx context.Context, _ []string) ([][]float32, error) {
		<-ctx.Done()
		return nil, &embedding.ProcessError{ExitCode: -1, Err: ctx.Err()}
	}
	job := f.upload(t, "notes.txt", "text/plain", para1)

	start := time.Now()
	status := f.pipeline.Run(context.Background(), job)

	assert.Equal(t, docModel.StatusError, status)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, f.doc(t, job.DocumentId).Metadata[docModel.MetaError], "deadline exceeded")
}

func TestRun_PlaceholderPDF(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "report.pdf", "application/pdf", "%PDF-1.4 fake")

	assert.Equal(t, docModel.StatusIndexed, f.pipeline.Run(context.Background(), job))
	d := f.doc(t, job.DocumentId)
	require.NotNil(t, d.Content)
	assert.Contains(t, *d.Content, "report.pdf")
}

func TestRun_IndexSink(t *testing.T) {
	t.Run("published when indexed", func(t *testing.T) {
		sink := &mockSink{}
		f := newFixture(t, WithIndexSink(sink))
		job := f.upload(t, "notes.txt", "text/plain", para1)

		require.Equal(t, docModel.StatusIndexed, f.pipeline.Run(context.Background(), job))
		assert.Equal(t, []int64{job.DocumentId}, sink.published)
	})

	t.Run("failure does not change status", func(t *testing.T) {
		sink := &mockSink{OnPublish: func(docModel.Document) error { return errors.New("qdrant down") }}
		f := newFixture(t, WithIndexSink(sink))
		job := f.upload(t, "notes.txt", "text/plain", para1)

		assert.Equal(t, docModel.StatusIndexed, f.pipeline.Run(context.Background(), job))
		assert.Equal(t, docModel.StatusIndexed, f.doc(t, job.DocumentId).Status)
	})

	t.Run("not published on error", func(t *testing.T) {
		sink := &mockSink{}
		f := newFixture(t, WithIndexSink(sink))
		f.embedder.OnEmbed = func(context.Context, []string) ([][]float32, error) { return nil, embedding.ErrEmbedding }
		job := f.upload(t, "notes.txt", "text/plain", para1)

		assert.Equal(t, docModel.StatusError, f.pipeline.Run(context.Background(), job))
		assert.Empty(t, sink.published)
	})
}

func TestRun_DocumentDeletedDuringIngestion(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "notes.txt", "text/plain", para1)
	f.embedder.OnEmbed = func(_ context.Context, chunks []string) ([][]float32, error) {
		require.NoError(t, f.store.DeleteDocument(context.Background(), job.DocumentId))
		return [][]float32{{1}}, nil
	}

	assert.Equal(t, docModel.StatusError, f.pipeline.Run(context.Background(), job))
	_, ok := f.store.GetDocument(context.Background(), job.DocumentId)
	assert.False(t, ok)
}

func TestRun_ConcurrentDocumentsAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.embedder.OnEmbed = func(_ context.Context, chunks []string) ([][]float32, error) {
		if strings.Contains(chunks[0], "FAIL") {
			return nil, embedding.ErrEmbedding
		}
		out := make([][]float32, len(chunks))
		for i := range out {
			out[i] = []float32{1}
		}
		return out, nil
	}

	jobs := make([]jobModel.Job, 20)
	for i := range jobs {
		body := para1
		if i%2 == 1 {
			body = "FAIL " + para2
		}
		jobs[i] = f.upload(t, fmt.Sprintf("doc%d.txt", i), "text/plain", body)
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(j jobModel.Job) {
			defer wg.Done()
			f.pipeline.Run(context.Background(), j)
		}(job)
	}
	wg.Wait()

	for i, job := range jobs {
		want := docModel.StatusIndexed
		if i%2 == 1 {
			want = docModel.StatusError
		}
		d := f.doc(t, job.DocumentId)
		assert.Equal(t, want, d.Status, job.OriginalName)
		assert.Len(t, d.Chunks, 1)
	}
}

func TestRun_JobDeadlineStillRecordsOutcome(t *testing.T) {
	db, err := sqliteStore.Open(filepath.Join(t.TempDir(), "docchat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	docs := db.Documents()

	embedder := &mockEmbedder{OnEmbed: func(ctx context.Context, _ []string) ([][]float32, error) {
		<-ctx.Done()
		return nil, &embedding.ProcessError{ExitCode: -1, Err: ctx.Err()}
	}}
	pipeline := NewPipeline(docs, extract.NewDefaultRegistry(config.ExtractionModePlaceholder), embedder, WithEmbedTimeout(time.Minute))

	path := filepath.Join(t.TempDir(), "1-notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(para1+"\n\n"+para2), 0o600))
	doc := docModel.NewDocument(filepath.Base(path), "notes.txt", "text/plain", 10, nil)
	require.NoError(t, docs.CreateDocument(context.Background(), &doc))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	status := pipeline.Run(ctx, jobModel.Job{Id: "job", DocumentId: doc.ID, FilePath: path, FileType: "text/plain", OriginalName: "notes.txt"})

	assert.Equal(t, docModel.StatusError, status)
	stored, ok := docs.GetDocument(context.Background(), doc.ID)
	require.True(t, ok)
	assert.Equal(t, docModel.StatusError, stored.Status)
	require.NotNil(t, stored.Content)
	assert.Len(t, stored.Chunks, 2)
	assert.Contains(t, stored.Metadata[docModel.MetaError], "deadline exceeded")

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAbandon(t *testing.T) {
	f := newFixture(t)
	job := f.upload(t, "notes.txt", "text/plain", para1)

	status := f.pipeline.Abandon(context.Background(), job, "ingestion interrupted by shutdown")

	assert.Equal(t, docModel.StatusError, status)
	d := f.doc(t, job.DocumentId)
	assert.Equal(t, docModel.StatusError, d.Status)
	assert.Nil(t, d.Content)
	assert.Equal(t, "ingestion interrupted by shutdown", d.Metadata[docModel.MetaError])
	assert.NotEmpty(t, d.Metadata[docModel.MetaFailedAt])
	assert.Zero(t, f.embedder.calls)

	_, err := os.Stat(job.FilePath)
	assert.True(t, os.IsNotExist(err))
}
