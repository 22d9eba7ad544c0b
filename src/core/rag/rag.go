package rag

import (
	"context"
	"errors"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Chunk is a bounded text segment cut from a document, the unit stored in
// and retrieved from the vector index. Source is the filename the chunk was
// cut from and joins a document to its indexed entries.
type Chunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// QueryHit is a single similarity match returned by the vector index.
// Results are ordered most similar first (cosine distance ascending).
type QueryHit struct {
	Text     string  `json:"text"`
	Source   string  `json:"source"`
	Distance float64 `json:"distance"`
}

// VectorIndex is the single point of access to the remote vector collection.
// All operations may fail on backend connectivity problems; callers decide
// whether to log-and-continue or propagate.
type VectorIndex interface {
	// Count returns the total number of indexed entries.
	Count(ctx context.Context) (int, error)
	// Add upserts entries. texts, sources and ids are index-aligned and of
	// equal length. There is no partial-write guarantee across a failed call.
	Add(ctx context.Context, texts []string, sources []string, ids []string) error
	// Query embeds the query text and returns up to k closest entries.
	Query(ctx context.Context, query string, k int) ([]QueryHit, error)
	// GetIDsBySource returns the ids of all entries whose source tag equals
	// source, or an empty slice when none match.
	GetIDsBySource(ctx context.Context, source string) ([]string, error)
	// DeleteBySource removes all entries whose source tag equals source.
	// Deleting a source with no entries is a no-op, not an error.
	DeleteBySource(ctx context.Context, source string) error
}

// IngestRequest describes one ingestion pass. When Paths is empty the
// non-recursive contents of Dir are the candidates. Force skips the
// populated-index guard and is set for explicit uploads.
type IngestRequest struct {
	Dir   string
	Paths []string
	Force bool
}

// IngestResult reports what one ingestion pass actually indexed.
type IngestResult struct {
	ChunksAdded    int      `json:"added_chunks"`
	DocumentsCount int      `json:"documents_count"`
	ProcessedFiles []string `json:"processed_files"`
}

// Service defines the document ingestion and retrieval operations.
type Service interface {
	// Ingest extracts, chunks and indexes the requested documents,
	// replacing any previously indexed chunks of the same filenames.
	Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error)
	// Retrieve returns up to k chunks most similar to the question.
	Retrieve(ctx context.Context, question string, k int) ([]QueryHit, error)
	// DeleteDocument removes all indexed entries of the given filename.
	DeleteDocument(ctx context.Context, filename string) error
}

// LLMProvider defines operations for language model interactions
type LLMProvider interface {
	// Generate produces a completion for prompt under the given system
	// instruction using the specified model.
	Generate(ctx context.Context, model, system, prompt string) (*Completion, error)
}

// Completion is the text produced by an LLMProvider together with the token
// usage the backend reported for the call.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
