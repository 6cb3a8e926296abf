package jobModel

import (
	"time"
)

type JobType string

const (
	JobTypeIngest JobType = "Ingest"
)

// Job is one queued ingestion run for an uploaded document.
type Job struct {
	Id           string    `json:"id"`
	JobType      JobType   `json:"job_type"`
	TraceId      string    `json:"trace_id"`
	DocumentId   int64     `json:"document_id"`
	FilePath     string    `json:"file_path"`
	FileType     string    `json:"file_type"`
	OriginalName string    `json:"original_name"`
	CreatedTime  time.Time `json:"created_time"`
}
