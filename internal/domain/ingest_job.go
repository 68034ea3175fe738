package domain

import "time"

// IngestJobStatus tracks an asynchronous ingestion job through its
// lifecycle.
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s IngestJobStatus) IsValid() bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing, IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}

// IngestJob queues a document for background ingestion. The extracted text
// rides in the job row; large documents are ingested off the request path
// by the poll worker.
type IngestJob struct {
	ID          string
	UserID      string
	Name        string
	Text        string
	PageCount   int
	WordCount   int
	Status      IngestJobStatus
	Retries     int
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
