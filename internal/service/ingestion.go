package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recallio/recallio/internal/domain"
	"github.com/recallio/recallio/internal/telemetry"
)

// VectorIndex defines the index operations the ingestion pipeline needs.
// ReplaceDocument must remove any vectors the document no longer produces.
type VectorIndex interface {
	ReplaceDocument(ctx context.Context, userID, documentID string, vectors []domain.EmbeddingVector) error
	DeleteByDocument(ctx context.Context, userID, documentID string) (int64, error)
}

// DocumentStore defines the repository interface for document rows.
type DocumentStore interface {
	Upsert(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, userID, id string) (*domain.Document, error)
	List(ctx context.Context, userID string, afterID string, limit int) ([]*domain.Document, error)
	Delete(ctx context.Context, userID, id string) error
}

// BatchEmbedder embeds a batch of chunk texts and reports total token usage.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error)
}

// IngestJobQueue defines the queue operations for asynchronous ingestion.
type IngestJobQueue interface {
	Create(ctx context.Context, job *domain.IngestJob) error
	GetByID(ctx context.Context, id string) (*domain.IngestJob, error)
}

// IngestionService runs the document ingestion pipeline: chunk, embed,
// upsert vectors, record the document row. The pipeline is idempotent end
// to end because vector and document IDs are derived from the user and
// document name.
type IngestionService struct {
	embedder    BatchEmbedder
	index       VectorIndex
	documents   DocumentStore
	store       ObjectStorage
	jobs        IngestJobQueue
	chunkTokens int
}

// NewIngestionService wires the pipeline. store may be nil when file
// storage is not configured; deletion then skips the blob cleanup.
func NewIngestionService(embedder BatchEmbedder, index VectorIndex, documents DocumentStore, store ObjectStorage, jobs IngestJobQueue) *IngestionService {
	return &IngestionService{
		embedder:    embedder,
		index:       index,
		documents:   documents,
		store:       store,
		jobs:        jobs,
		chunkTokens: DefaultChunkTokens,
	}
}

// IngestInput carries one document into the pipeline. Text is the extracted
// plain text; PageCount is whatever the extractor reported (0 when unknown).
type IngestInput struct {
	Name       string
	Text       string
	PageCount  int
	StorageKey string
}

// IngestResult reports what ingestion produced.
type IngestResult struct {
	DocumentID  string
	ChunkCount  int
	WordCount   int
	EmbedTokens int
}

// Ingest chunks, embeds, and indexes a document. Re-ingesting the same
// user+name replaces the previous version's vectors wholesale, so a version
// that chunks shorter does not leave stale tail chunks in the index. The
// index write happens before the document row write so a crash between the
// two leaves searchable vectors behind a stale row rather than a row
// pointing at nothing.
func (s *IngestionService) Ingest(ctx context.Context, userID string, in IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		UserID:    userID,
		Operation: "ingest",
	})
	defer span.End()

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document requires a name")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, domain.ErrEmptyDocumentText
	}

	chunks := SplitText(in.Text, s.chunkTokens)
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyDocumentText
	}

	embeddings, embedTokens, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document %q: %w", name, err)
	}

	docID := domain.DocumentIDFor(userID, name)
	vectors := make([]domain.EmbeddingVector, len(chunks))
	for i, text := range chunks {
		vectors[i] = domain.EmbeddingVector{
			ID:     domain.VectorID(userID, name, i),
			Values: embeddings[i],
			Metadata: domain.VectorMetadata{
				Text:       text,
				Source:     name,
				ChunkIndex: i,
				DocumentID: docID,
			},
		}
	}

	if err := s.index.ReplaceDocument(ctx, userID, docID, vectors); err != nil {
		return nil, fmt.Errorf("failed to index document %q: %w", name, err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          docID,
		UserID:      userID,
		Name:        name,
		PageCount:   in.PageCount,
		WordCount:   len(strings.Fields(in.Text)),
		ChunkCount:  len(chunks),
		EmbedTokens: embedTokens,
		StorageKey:  in.StorageKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.documents.Upsert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to record document %q: %w", name, err)
	}

	return &IngestResult{
		DocumentID:  docID,
		ChunkCount:  doc.ChunkCount,
		WordCount:   doc.WordCount,
		EmbedTokens: embedTokens,
	}, nil
}

// Enqueue queues a document for background ingestion instead of running
// the pipeline inline. Validation happens now so a bad submission fails the
// request rather than the job.
func (s *IngestionService) Enqueue(ctx context.Context, userID string, in IngestInput) (*domain.IngestJob, error) {
	if s.jobs == nil {
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration, "asynchronous ingestion is not enabled")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document requires a name")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, domain.ErrEmptyDocumentText
	}

	job := &domain.IngestJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Text:      in.Text,
		PageCount: in.PageCount,
		WordCount: len(strings.Fields(in.Text)),
		Status:    domain.IngestJobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue ingestion: %w", err)
	}
	return job, nil
}

// JobStatus returns one ingestion job, scoped to its owner.
func (s *IngestionService) JobStatus(ctx context.Context, userID, jobID string) (*domain.IngestJob, error) {
	if s.jobs == nil {
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration, "asynchronous ingestion is not enabled")
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrIngestJobNotFound
	}
	return job, nil
}

// Get returns one document row.
func (s *IngestionService) Get(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	return s.documents.GetByID(ctx, userID, documentID)
}

// List returns a page of the user's documents, newest first.
func (s *IngestionService) List(ctx context.Context, userID, afterID string, limit int) ([]*domain.Document, error) {
	return s.documents.List(ctx, userID, afterID, limit)
}

// Delete removes a document's vectors and then its row, and returns how
// many vectors were removed. Vector deletion is capped per pass, so very
// large documents may leave a remainder; the row is removed regardless and
// the count tells the caller what actually happened.
func (s *IngestionService) Delete(ctx context.Context, userID, documentID string) (int64, error) {
	doc, err := s.documents.GetByID(ctx, userID, documentID)
	if err != nil {
		return 0, err
	}

	removed, err := s.index.DeleteByDocument(ctx, userID, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete document vectors: %w", err)
	}

	if s.store != nil && doc.StorageKey != "" {
		if err := s.store.DeleteObject(ctx, doc.StorageKey); err != nil {
			log.Printf("failed to delete stored file %s for document %s: %v", doc.StorageKey, documentID, err)
		}
	}

	if err := s.documents.Delete(ctx, userID, documentID); err != nil {
		return removed, err
	}
	return removed, nil
}
