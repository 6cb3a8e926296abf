// Package job owns the ingestion queue shared by the upload path and the worker pool.
package job

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/akolanti/docchat/internal/domain/jobModel"
	"github.com/akolanti/docchat/internal/metrics"
)

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	DispatcherChannel chan bool
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		DispatcherChannel: cfg.DispatcherChannel,
	}
}

var ErrQueueFull = errors.New("ingestion queue is full")

// Submit queues j without waiting; a full buffer is reported as ErrQueueFull.
// Every accepted job nudges the dispatcher to grow the pool.
func (s *Service) Submit(ctx context.Context, j jobModel.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.JobChannel <- j:
	default:
		return ErrQueueFull
	}
	metrics.IncrementJobsInQueue()
	atomic.AddInt64(&s.RequestCount, 1)

	select {
	case s.DispatcherChannel <- true:
		metrics.StartDispatcherSignalCount()
	default:
		// dispatcher already has pending signals
	}
	return nil
}
