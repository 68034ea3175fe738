package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/recallio/recallio/internal/domain"
	"github.com/recallio/recallio/internal/service"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3

	// claimBatchSize bounds how many jobs one poll picks up
	claimBatchSize = 10
)

// IngestJobStore defines the interface for ingest job persistence. Claiming
// must be atomic so concurrent workers never process the same job twice.
type IngestJobStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, jobErr string) error
	Requeue(ctx context.Context, id string, jobErr string) error
}

// Ingester runs the synchronous ingestion pipeline for one queued document.
type Ingester interface {
	Ingest(ctx context.Context, userID string, in service.IngestInput) (*service.IngestResult, error)
}

// IngestWorker drains queued document ingestions.
type IngestWorker struct {
	store    IngestJobStore
	ingester Ingester
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(store IngestJobStore, ingester Ingester) *IngestWorker {
	return &IngestWorker{
		store:    store,
		ingester: ingester,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.store.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingest jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	log.Printf("Processing job %s: document %q for user %s", job.ID, job.Name, job.UserID)

	_, err := w.ingester.Ingest(ctx, job.UserID, service.IngestInput{
		Name:      job.Name,
		Text:      job.Text,
		PageCount: job.PageCount,
	})
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.store.MarkCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure requeues a failed job until it runs out of attempts.
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.store.MarkFailed(ctx, job.ID, errMsg); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.store.Requeue(ctx, job.ID, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}
