// Package chunker splits extracted document text into overlapping, page-tagged
// chunks, the unit of indexing.
package chunker

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mathai-labs/tutor-core/internal/document"
)

// Chunk is a bounded contiguous span of source text.
type Chunk struct {
	ID     string // unique within the source, e.g. "MTH1122_chunk4"
	Text   string
	Source string // originating document name, e.g. "MTH1122.pdf"
	Page   int    // 1-based page the chunk content originated on
}

// Chunker produces overlapping fixed-size chunks using recursive character
// splitting: paragraph breaks first, then line breaks, then spaces, then a
// hard cut for unsplittable runs.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
	size     int
	overlap  int
}

// New creates a Chunker with the given target chunk size and overlap, both in
// characters.
func New(size, overlap int) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
		size:    size,
		overlap: overlap,
	}
}

// Split chunks a document's pages in order. Each chunk inherits the page it
// originated on; empty pages produce no chunks. Chunk IDs carry a running
// index across the whole document.
func (c *Chunker) Split(source string, pages []document.Page) ([]Chunk, error) {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	name := filepath.Base(source)

	var chunks []Chunk
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		pieces, err := c.splitter.SplitText(page.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d of %s: %w", page.Number, name, err)
		}
		for _, piece := range pieces {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:     fmt.Sprintf("%s_chunk%d", stem, len(chunks)),
				Text:   piece,
				Source: name,
				Page:   page.Number,
			})
		}
	}
	return chunks, nil
}

// Size returns the target chunk size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap between consecutive chunks in characters.
func (c *Chunker) Overlap() int { return c.overlap }
