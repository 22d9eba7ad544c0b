package rag

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// chunkSeparators are tried largest granularity first: paragraphs, lines,
// sentence-ending punctuation, whitespace, then arbitrary characters.
var chunkSeparators = []string{"\n\n", "\n", ". ", "!", "?", " ", ""}

// Chunker splits document text into overlapping segments sized for the
// vector index. Retrieval quality depends on ingest and query sharing the
// same geometry, so one Chunker is built per process from configuration.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(chunkSeparators),
		),
	}
}

// ChunkText splits text into chunks tagged with source. Empty input yields
// an empty sequence, and no produced chunk is ever empty.
func (c *Chunker) ChunkText(text, source string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, Chunk{Text: part, Source: source})
	}
	return chunks, nil
}
