package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/recallio/recallio/internal/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, user_id, name, page_count, word_count, chunk_count, embed_tokens, storage_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.UserID, d.Name, d.PageCount, d.WordCount, d.ChunkCount, d.EmbedTokens, nullableString(d.StorageKey), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

// Upsert replaces an existing document row for the same user+name, matching
// the idempotent re-ingestion behavior of the vector index.
func (r *DocumentRepository) Upsert(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, user_id, name, page_count, word_count, chunk_count, embed_tokens, storage_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id, name) DO UPDATE SET
			page_count = EXCLUDED.page_count,
			word_count = EXCLUDED.word_count,
			chunk_count = EXCLUDED.chunk_count,
			embed_tokens = EXCLUDED.embed_tokens,
			storage_key = COALESCE(EXCLUDED.storage_key, documents.storage_key),
			updated_at = EXCLUDED.updated_at`,
		d.ID, d.UserID, d.Name, d.PageCount, d.WordCount, d.ChunkCount, d.EmbedTokens, nullableString(d.StorageKey), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, userID, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, page_count, word_count, chunk_count, embed_tokens, storage_key, created_at, updated_at
		 FROM documents WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	return scanDocument(row)
}

// List returns documents for a user ordered newest first, keyset-paginated
// by (created_at, id).
func (r *DocumentRepository) List(ctx context.Context, userID string, afterID string, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, name, page_count, word_count, chunk_count, embed_tokens, storage_key, created_at, updated_at
		FROM documents
		WHERE user_id = $1`
	args := []interface{}{userID}

	if afterID != "" {
		args = append(args, afterID)
		query += ` AND (created_at, id) < (SELECT created_at, id FROM documents WHERE id = $2)`
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var storageKey *string
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.PageCount, &d.WordCount, &d.ChunkCount, &d.EmbedTokens, &storageKey, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if storageKey != nil {
		d.StorageKey = *storageKey
	}
	return &d, nil
}
