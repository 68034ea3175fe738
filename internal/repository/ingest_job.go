package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallio/recallio/internal/domain"
)

type IngestJobRepository struct {
	db dbtx
}

func NewIngestJobRepository(pool *pgxpool.Pool) *IngestJobRepository {
	return &IngestJobRepository{db: pool}
}

func NewIngestJobRepositoryWithTx(tx pgx.Tx) *IngestJobRepository {
	return &IngestJobRepository{db: tx}
}

func (r *IngestJobRepository) Create(ctx context.Context, job *domain.IngestJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingest_jobs (id, user_id, name, text, page_count, word_count, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.UserID, job.Name, job.Text, job.PageCount, job.WordCount, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, text, page_count, word_count, status, retries, COALESCE(error, ''), created_at, processed_at
		 FROM ingest_jobs WHERE id = $1`,
		id,
	)
	return scanIngestJob(row)
}

// ClaimPending atomically moves up to limit pending jobs to processing and
// returns them, so concurrent workers never double-claim.
func (r *IngestJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`UPDATE ingest_jobs
		 SET status = $3
		 WHERE id IN (
			SELECT id FROM ingest_jobs
			WHERE status = $1
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, user_id, name, text, page_count, word_count, status, retries, COALESCE(error, ''), created_at, processed_at`,
		domain.IngestJobStatusPending, limit, domain.IngestJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*domain.IngestJob, 0)
	for rows.Next() {
		job, err := scanIngestJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *IngestJobRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.setStatus(ctx, id, domain.IngestJobStatusCompleted, "")
}

func (r *IngestJobRepository) MarkFailed(ctx context.Context, id string, jobErr string) error {
	return r.setStatus(ctx, id, domain.IngestJobStatusFailed, jobErr)
}

// Requeue returns a failed attempt to pending with its retry count bumped.
func (r *IngestJobRepository) Requeue(ctx context.Context, id string, jobErr string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs
		 SET status = $2, retries = retries + 1, error = $3
		 WHERE id = $1`,
		id, domain.IngestJobStatusPending, nullableString(jobErr),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func (r *IngestJobRepository) setStatus(ctx context.Context, id string, status domain.IngestJobStatus, jobErr string) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE ingest_jobs
		 SET status = $2, error = $3, processed_at = $4
		 WHERE id = $1`,
		id, status, nullableString(jobErr), now,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func scanIngestJob(row rowScanner) (*domain.IngestJob, error) {
	var job domain.IngestJob
	err := row.Scan(&job.ID, &job.UserID, &job.Name, &job.Text, &job.PageCount, &job.WordCount, &job.Status, &job.Retries, &job.Error, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIngestJobNotFound
		}
		return nil, err
	}
	return &job, nil
}
