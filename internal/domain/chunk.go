package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chunk is a bounded slice of a source document's text, the unit of
// embedding and retrieval. Chunks are created at ingestion, ordered by Index
// within a source, and removed when the document is deleted.
type Chunk struct {
	Text     string
	SourceID string
	Index    int
}

// VectorMetadata travels with an embedding into the vector index and comes
// back attached to search hits.
type VectorMetadata struct {
	Text       string
	Source     string
	ChunkIndex int
	DocumentID string
}

// EmbeddingVector is an embedded chunk ready for upsert. ID is derived
// deterministically from the owner, source, and chunk index so that
// re-ingesting the same document overwrites prior vectors instead of
// duplicating them.
type EmbeddingVector struct {
	ID       string
	Values   []float32
	Metadata VectorMetadata
}

// vectorNamespace scopes deterministic vector IDs to this application.
var vectorNamespace = uuid.MustParse("7f1c6f5a-9d2e-4b8a-b1f4-3e8d2c5a9b01")

// VectorID derives the deterministic vector ID for a chunk. Re-ingesting
// the same source with the same chunking yields the same IDs, making index
// upserts idempotent.
func VectorID(userID, source string, chunkIndex int) string {
	name := fmt.Sprintf("%s|%s|%d", userID, source, chunkIndex)
	return uuid.NewSHA1(vectorNamespace, []byte(name)).String()
}

// DocumentIDFor derives the stable document ID for a user+name pair, so a
// re-ingested document keeps its identity.
func DocumentIDFor(userID, name string) string {
	return uuid.NewSHA1(vectorNamespace, []byte(userID+"|doc|"+name)).String()
}

// VectorFilter restricts a similarity query with equality/IN constraints
// over vector metadata.
type VectorFilter struct {
	UserID     string
	Sources    []string
	DocumentID string
}

// SearchHit is one similarity-search result. Hits are ephemeral: produced
// per query and never persisted.
type SearchHit struct {
	Text       string
	Source     string
	Score      float32
	SourceType string
	URL        string
	Timestamp  time.Time
	MediaID    string
}
