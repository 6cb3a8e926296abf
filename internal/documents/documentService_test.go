package documents

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/data/store"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/jobModel"
	"github.com/akolanti/docchat/internal/rag/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockQueue struct {
	jobs     []jobModel.Job
	OnSubmit func(j jobModel.Job) error
}

func (m *mockQueue) Submit(_ context.Context, j jobModel.Job) error {
	if m.OnSubmit != nil {
		if err := m.OnSubmit(j); err != nil {
			return err
		}
	}
	m.jobs = append(m.jobs, j)
	return nil
}

type mockSink struct {
	removed  []int64
	OnRemove func(id int64) error
}

func (m *mockSink) Publish(context.Context, docModel.Document) error { return nil }

func (m *mockSink) Remove(_ context.Context, id int64) error {
	m.removed = append(m.removed, id)
	if m.OnRemove != nil {
		return m.OnRemove(id)
	}
	return nil
}

type fixture struct {
	dir   string
	store *store.InMemoryDocumentStore
	queue *mockQueue
	sink  *mockSink
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:   t.TempDir(),
		store: store.InitInMemoryDocumentStore(),
		queue: &mockQueue{},
		sink:  &mockSink{},
	}
	f.svc = NewService(f.store, extract.NewDefaultRegistry(config.ExtractionModePlaceholder), f.queue,
		WithUploadDir(f.dir), WithIndexSink(f.sink))
	return f
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func ptr(v int64) *int64 { return &v }

func TestUpload_QueuesProcessingDocument(t *testing.T) {
	f := newFixture(t)
	ctx := config.WithTraceID(context.Background(), "trace-1")

	doc, err := f.svc.Upload(ctx, UploadRequest{
		File:         strings.NewReader("hello world"),
		Filename:     "../../notes.txt",
		DeclaredType: "text/plain; charset=utf-8",
		UploadedBy:   ptr(5),
	})

	require.NoError(t, err)
	assert.Equal(t, docModel.StatusProcessing, doc.Status)
	assert.Equal(t, "notes.txt", doc.OriginalName)
	assert.Equal(t, "text/plain", doc.FileType)
	assert.Equal(t, int64(11), doc.FileSize)
	assert.True(t, strings.HasSuffix(doc.Filename, "-notes.txt"))
	assert.Nil(t, doc.Content)
	assert.Nil(t, doc.Chunks)
	assert.Nil(t, doc.Embeddings)
	assert.Nil(t, doc.Metadata)

	require.Len(t, f.queue.jobs, 1)
	j := f.queue.jobs[0]
	assert.Equal(t, jobModel.JobTypeIngest, j.JobType)
	assert.Equal(t, "trace-1", j.TraceId)
	assert.Equal(t, doc.ID, j.DocumentId)
	assert.Equal(t, filepath.Join(f.dir, doc.Filename), j.FilePath)

	data, err := os.ReadFile(j.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestUpload_SniffsGenericType(t *testing.T) {
	f := newFixture(t)

	doc, err := f.svc.Upload(context.Background(), UploadRequest{
		File:         strings.NewReader("%PDF-1.7\n%rest of a pdf"),
		Filename:     "scan",
		DeclaredType: "application/octet-stream",
	})

	require.NoError(t, err)
	assert.Equal(t, extract.MimePDF, doc.FileType)
}

func TestUpload_RejectsBeforeCreating(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		declared string
		wantErr  error
	}{
		{name: "unsupported type", content: "\x89PNG", declared: "image/png", wantErr: extract.ErrUnsupportedType},
		{name: "empty file", content: "", declared: "text/plain", wantErr: ErrEmptyFile},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.Upload(context.Background(), UploadRequest{
				File:         strings.NewReader(tc.content),
				Filename:     "x",
				DeclaredType: tc.declared,
			})

			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, f.store.ListDocumentsByOwner(context.Background(), nil))
			assert.Empty(t, f.queue.jobs)
			assert.Empty(t, f.files(t))
		})
	}
}

func TestUpload_QueueFailureMarksError(t *testing.T) {
	f := newFixture(t)
	f.queue.OnSubmit = func(jobModel.Job) error { return context.Canceled }

	_, err := f.svc.Upload(context.Background(), UploadRequest{
		File:         strings.NewReader("text"),
		Filename:     "a.txt",
		DeclaredType: "text/plain",
	})

	require.ErrorIs(t, err, context.Canceled)
	docs := f.store.ListDocumentsByOwner(context.Background(), nil)
	require.Len(t, docs, 1)
	assert.Equal(t, docModel.StatusError, docs[0].Status)
	assert.Contains(t, docs[0].Metadata[docModel.MetaError], "could not queue")
	assert.Empty(t, f.files(t))
}

func TestGetListDelete_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	upload := func(owner *int64) docModel.Document {
		d, err := f.svc.Upload(ctx, UploadRequest{File: strings.NewReader("x"), Filename: "a.txt", DeclaredType: "text/plain", UploadedBy: owner})
		require.NoError(t, err)
		return d
	}
	mine := upload(ptr(1))
	anon := upload(nil)

	assert.Len(t, f.svc.List(ctx, ptr(1)), 1)
	assert.Len(t, f.svc.List(ctx, nil), 1)

	_, err := f.svc.Get(ctx, mine.ID, ptr(2))
	assert.ErrorIs(t, err, docModel.ErrNotFound)
	_, err = f.svc.Get(ctx, anon.ID, ptr(1))
	assert.ErrorIs(t, err, docModel.ErrNotFound)
	got, err := f.svc.Get(ctx, mine.ID, ptr(1))
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	assert.ErrorIs(t, f.svc.Delete(ctx, mine.ID, ptr(2)), docModel.ErrNotFound)
	assert.Empty(t, f.sink.removed)

	require.NoError(t, f.svc.Delete(ctx, mine.ID, ptr(1)))
	assert.Equal(t, []int64{mine.ID}, f.sink.removed)
	_, err = f.svc.Get(ctx, mine.ID, ptr(1))
	assert.ErrorIs(t, err, docModel.ErrNotFound)
}

func TestDelete_SinkFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sink.OnRemove = func(int64) error { return errors.New("qdrant down") }
	ctx := context.Background()
	d, err := f.svc.Upload(ctx, UploadRequest{File: strings.NewReader("x"), Filename: "a.txt", DeclaredType: "text/plain"})
	require.NoError(t, err)

	assert.NoError(t, f.svc.Delete(ctx, d.ID, nil))
}
