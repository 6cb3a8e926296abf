package rag_test

import (
	"context"

	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/jobModel"
	"github.com/akolanti/docchat/internal/rag/compose"
	"github.com/akolanti/docchat/internal/rag/search"
)

type MockIngester struct {
	OnRun     func(ctx context.Context, job jobModel.Job) docModel.DocumentStatus
	OnAbandon func(ctx context.Context, job jobModel.Job, reason string) docModel.DocumentStatus
}

func (m *MockIngester) Run(ctx context.Context, job jobModel.Job) docModel.DocumentStatus {
	if m.OnRun != nil {
		return m.OnRun(ctx, job)
	}
	return docModel.StatusIndexed
}

func (m *MockIngester) Abandon(ctx context.Context, job jobModel.Job, reason string) docModel.DocumentStatus {
	if m.OnAbandon != nil {
		return m.OnAbandon(ctx, job, reason)
	}
	return docModel.StatusError
}

type MockSearcher struct {
	OnSearch func(ctx context.Context, query string, limit int) []search.Result
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) []search.Result {
	if m.OnSearch != nil {
		return m.OnSearch(ctx, query, limit)
	}
	return []search.Result{}
}

type MockComposer struct {
	OnCompose func(ctx context.Context, query string, results []search.Result) (compose.Reply, error)
}

func (m *MockComposer) Compose(ctx context.Context, query string, results []search.Result) (compose.Reply, error) {
	if m.OnCompose != nil {
		return m.OnCompose(ctx, query, results)
	}
	return compose.Reply{Text: "mocked reply"}, nil
}
