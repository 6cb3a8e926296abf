package worker

import (
	"context"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/domain/docModel"
	"github.com/akolanti/docchat/internal/domain/jobModel"
)

const interruptedByShutdown = "ingestion interrupted by shutdown"

func (p *Pool) executeJob(job jobModel.Job) {
	ctxTrace := config.WithTraceID(context.Background(), job.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, p.jobTimeout)
	defer cancel()

	log := p.logger.WithTrace(ctx).With("jobId", job.Id, "documentId", job.DocumentId)
	log.Debug("Processing job")

	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", "panic", r)
		}
	}()

	switch job.JobType {
	case jobModel.JobTypeIngest, "":
		status := p.ragService.IngestDocument(ctx, job)
		if status != docModel.StatusIndexed {
			log.Info("Ingestion did not index document", "status", status)
		}
	default:
		log.Error("Unknown job type", "jobType", job.JobType)
	}
}

func (p *Pool) abandonJob(job jobModel.Job, reason string) {
	ctx := config.WithTraceID(context.Background(), job.TraceId)
	log := p.logger.WithTrace(ctx).With("jobId", job.Id, "documentId", job.DocumentId)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Abandoning job panicked", "panic", r)
		}
	}()

	status := p.ragService.AbandonDocument(ctx, job, reason)
	log.Info("Queued job abandoned", "reason", reason, "status", status)
}
