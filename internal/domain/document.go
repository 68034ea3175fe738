package domain

import (
	"strings"
	"time"
)

// Document is an ingested source: the extracted plain text of an uploaded
// file after chunking and embedding. The raw text itself lives in the vector
// index chunk metadata; the row tracks provenance and cost.
type Document struct {
	ID          string
	UserID      string
	Name        string
	PageCount   int
	WordCount   int
	ChunkCount  int
	EmbedTokens int
	StorageKey  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks required fields before ingestion.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.UserID) == "" {
		return NewDomainError(ErrCodeValidation, "document requires a user id")
	}
	if strings.TrimSpace(d.Name) == "" {
		return NewDomainError(ErrCodeValidation, "document requires a name")
	}
	return nil
}
