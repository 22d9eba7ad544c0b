package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"deepsearch/src/infrastructure/log"
)

const DefaultTopK = 3

type ragService struct {
	index   VectorIndex
	chunker *Chunker
}

// NewService creates the document ingestion and retrieval service. The
// vector index handle is injected; the service never connects on its own.
func NewService(index VectorIndex, chunker *Chunker) (Service, error) {
	if index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}

	return &ragService{
		index:   index,
		chunker: chunker,
	}, nil
}

// Ingest implements Service
func (s *ragService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	empty := &IngestResult{ProcessedFiles: []string{}}

	// Startup behavior: a populated index is left alone unless the caller
	// forces re-ingestion or names explicit files.
	if !req.Force && len(req.Paths) == 0 {
		count, err := s.index.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count indexed entries: %w", err)
		}
		if count > 0 {
			log.Debug("index already populated, skipping ingestion", "entries", count)
			return empty, nil
		}
	}

	candidates := req.Paths
	if len(candidates) == 0 {
		entries, err := os.ReadDir(req.Dir)
		if err != nil {
			log.Debug("documents directory not readable", "dir", req.Dir, "reason", err.Error())
			return empty, nil
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			candidates = append(candidates, filepath.Join(req.Dir, entry.Name()))
		}
	}

	var allChunks []Chunk
	var processed []string
	for _, path := range candidates {
		filename := filepath.Base(path)
		if !SupportedExtension(filename) {
			continue
		}
		log.Debug("processing document", "filename", filename)

		text, err := ExtractText(path)
		if err != nil {
			// A broken file never fails the batch.
			log.Error(err, "failed to extract document", "filename", filename)
			continue
		}
		if strings.TrimSpace(text) == "" {
			log.Debug("document has no extractable text", "filename", filename)
			continue
		}

		chunks, err := s.chunker.ChunkText(text, filename)
		if err != nil {
			log.Error(err, "failed to chunk document", "filename", filename)
			continue
		}
		if len(chunks) == 0 {
			log.Debug("no chunks after splitting", "filename", filename)
			continue
		}

		allChunks = append(allChunks, chunks...)
		processed = append(processed, filename)
	}

	if len(allChunks) == 0 {
		log.Debug("nothing to ingest")
		return empty, nil
	}

	// Replace previously indexed chunks of every processed document so a
	// re-upload supersedes instead of accumulating. The delete and the add
	// are separate index calls; a failure between them leaves that source
	// without entries until the next ingestion.
	sources := distinct(processed)
	for _, filename := range sources {
		ids, err := s.index.GetIDsBySource(ctx, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to look up existing entries for %s: %w", filename, err)
		}
		if len(ids) == 0 {
			continue
		}
		log.Debug("removing stale entries", "filename", filename, "entries", len(ids))
		if err := s.index.DeleteBySource(ctx, filename); err != nil {
			return nil, fmt.Errorf("failed to delete stale entries for %s: %w", filename, err)
		}
	}

	texts := make([]string, len(allChunks))
	tags := make([]string, len(allChunks))
	ids := make([]string, len(allChunks))
	for i, chunk := range allChunks {
		texts[i] = chunk.Text
		tags[i] = chunk.Source
		// Fresh ids every pass; ids are never reused across ingestions of
		// the same source.
		ids[i] = uuid.New().String()
	}
	if err := s.index.Add(ctx, texts, tags, ids); err != nil {
		return nil, fmt.Errorf("failed to add chunks to index: %w", err)
	}

	log.Info("ingestion finished", "chunks", len(allChunks), "documents", len(sources))
	return &IngestResult{
		ChunksAdded:    len(allChunks),
		DocumentsCount: len(sources),
		ProcessedFiles: processed,
	}, nil
}

// Retrieve implements Service
func (s *ragService) Retrieve(ctx context.Context, question string, k int) ([]QueryHit, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	hits, err := s.index.Query(ctx, question, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	return hits, nil
}

// DeleteDocument implements Service
func (s *ragService) DeleteDocument(ctx context.Context, filename string) error {
	if err := s.index.DeleteBySource(ctx, filename); err != nil {
		return fmt.Errorf("failed to delete indexed entries for %s: %w", filename, err)
	}
	return nil
}

// distinct keeps the first occurrence of every value, preserving order.
func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
