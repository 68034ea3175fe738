package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/recallio/recallio/internal/domain"
)

// deleteQueryCap bounds how many vectors a single source deletion removes.
// Deletion is "delete up to the cap", not exhaustive: a source with more
// vectors than this keeps the remainder until the next deletion pass.
const deleteQueryCap = 1000

// VectorRepository is the vector index: pgvector-backed storage with
// idempotent upserts keyed by deterministic chunk IDs.
type VectorRepository struct {
	db dbtx
}

func NewVectorRepository(pool *pgxpool.Pool) *VectorRepository {
	return &VectorRepository{db: pool}
}

// ReplaceDocument swaps a document's vectors for the given set in one
// transaction: prior vectors under the document ID are removed first, so a
// re-ingest that produces fewer chunks leaves no stale ones behind, and a
// mid-batch failure rolls back to the previous version intact.
func (r *VectorRepository) ReplaceDocument(ctx context.Context, userID, documentID string, vectors []domain.EmbeddingVector) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM chunk_vectors WHERE user_id = $1 AND document_id = $2`,
		userID, documentID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear document vectors: %w", err)
	}

	for _, v := range vectors {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunk_vectors (id, user_id, source, chunk_index, content, document_id, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				document_id = EXCLUDED.document_id,
				embedding = EXCLUDED.embedding,
				updated_at = now()`,
			v.ID,
			userID,
			v.Metadata.Source,
			v.Metadata.ChunkIndex,
			v.Metadata.Text,
			nullableString(v.Metadata.DocumentID),
			pgvector.NewVector(v.Values),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert vector %s: %w", v.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// Query runs a similarity search and returns hits scored into (0, 1].
func (r *VectorRepository) Query(ctx context.Context, embedding []float32, topK int, filter domain.VectorFilter) ([]domain.SearchHit, error) {
	if topK <= 0 {
		topK = 20
	}

	query := `
		SELECT content, source, chunk_index, created_at,
		       1.0 / (1.0 + (embedding <=> $1)) AS score
		FROM chunk_vectors
		WHERE user_id = $2`
	args := []interface{}{pgvector.NewVector(embedding), filter.UserID}

	if len(filter.Sources) > 0 {
		args = append(args, filter.Sources)
		query += fmt.Sprintf(" AND source = ANY($%d)", len(args))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		query += fmt.Sprintf(" AND document_id = $%d", len(args))
	}

	args = append(args, topK)
	query += fmt.Sprintf(" ORDER BY score DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]domain.SearchHit, 0)
	for rows.Next() {
		var hit domain.SearchHit
		var chunkIndex int
		if err := rows.Scan(&hit.Text, &hit.Source, &chunkIndex, &hit.Timestamp, &hit.Score); err != nil {
			return nil, err
		}
		hit.SourceType = "document"
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// DeleteBySource removes up to deleteQueryCap vectors for one source.
func (r *VectorRepository) DeleteBySource(ctx context.Context, userID, source string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM chunk_vectors
		 WHERE id IN (
			SELECT id FROM chunk_vectors
			WHERE user_id = $1 AND source = $2
			LIMIT $3
		 )`,
		userID, source, deleteQueryCap,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteByDocument removes up to deleteQueryCap vectors for one document.
func (r *VectorRepository) DeleteByDocument(ctx context.Context, userID, documentID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM chunk_vectors
		 WHERE id IN (
			SELECT id FROM chunk_vectors
			WHERE user_id = $1 AND document_id = $2
			LIMIT $3
		 )`,
		userID, documentID, deleteQueryCap,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
