package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/recallio/recallio/internal/domain"
	"github.com/recallio/recallio/internal/storage"
)

// ObjectStorage defines the blob-store operations the upload flow needs.
type ObjectStorage interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// UploadService issues presigned URLs for original document files. File
// bytes never pass through the service; the client uploads directly and
// then submits the extracted text for ingestion with the storage key.
type UploadService struct {
	store     ObjectStorage
	documents DocumentStore
}

func NewUploadService(store ObjectStorage, documents DocumentStore) *UploadService {
	return &UploadService{store: store, documents: documents}
}

// InitUploadResult carries everything the client needs to upload the file
// and later ingest its text under the same document identity.
type InitUploadResult struct {
	DocumentID string
	StorageKey string
	UploadURL  string
}

// InitUpload reserves a storage key for a document's original file and
// returns a presigned upload URL.
func (s *UploadService) InitUpload(ctx context.Context, userID, filename, contentType string) (*InitUploadResult, error) {
	if s.store == nil {
		return nil, domain.ErrStorageNotEnabled
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}

	docID := domain.DocumentIDFor(userID, filename)
	key := storage.DocumentKey(userID, docID, filename)

	url, err := s.store.GenerateUploadURL(ctx, key, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	return &InitUploadResult{
		DocumentID: docID,
		StorageKey: key,
		UploadURL:  url,
	}, nil
}

// DownloadURL returns a presigned URL for a document's original file.
func (s *UploadService) DownloadURL(ctx context.Context, userID, documentID string) (string, error) {
	if s.store == nil {
		return "", domain.ErrStorageNotEnabled
	}

	doc, err := s.documents.GetByID(ctx, userID, documentID)
	if err != nil {
		return "", err
	}
	if doc.StorageKey == "" {
		return "", domain.NewDomainError(domain.ErrCodeNotFound, "document has no stored original file")
	}

	return s.store.GenerateDownloadURL(ctx, doc.StorageKey)
}
