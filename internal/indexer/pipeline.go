// Package indexer builds the persistent vector index from a corpus of
// curriculum PDFs: extract, chunk, embed in batches, store.
package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathai-labs/tutor-core/internal/chunker"
	"github.com/mathai-labs/tutor-core/internal/document"
	"github.com/mathai-labs/tutor-core/internal/embedding"
	"github.com/mathai-labs/tutor-core/internal/storage"
)

// ScannedExtractor recovers page text from documents without a text layer.
type ScannedExtractor interface {
	Extract(ctx context.Context, path string) ([]document.Page, error)
}

// Corpus lists source documents and extracts their native text layer.
type Corpus interface {
	List(dir string) ([]string, error)
	IsScanned(path string) (bool, error)
	ExtractPages(path string) ([]document.Page, error)
}

// FileCorpus is the production Corpus: PDFs on the local filesystem.
type FileCorpus struct{}

func (FileCorpus) List(dir string) ([]string, error)                 { return document.ListPDFs(dir) }
func (FileCorpus) IsScanned(path string) (bool, error)               { return document.IsScanned(path) }
func (FileCorpus) ExtractPages(path string) ([]document.Page, error) { return document.ExtractPages(path) }

// Embedder mirrors embedding.Client for test substitution.
type Embedder interface {
	Embed(ctx context.Context, texts []string, inputType embedding.InputType) ([][]float32, error)
}

// IndexResult contains statistics about an ingestion run.
type IndexResult struct {
	TotalDocs     int
	IndexedDocs   int
	TotalChunks   int
	IndexedChunks int
	FailedBatches int
	FailedDocs    []FailedDoc
	Duration      time.Duration
}

// FailedDoc records a document that could not be ingested.
type FailedDoc struct {
	Path   string
	Reason string
}

// Pipeline orchestrates ingestion. A run first wipes the target collection:
// the index has no per-chunk update, so re-ingestion is always a full
// rebuild.
type Pipeline struct {
	corpus    Corpus
	chunker   *chunker.Chunker
	embedder  Embedder
	store     *storage.Store
	scanned   ScannedExtractor
	batchSize int
	log       zerolog.Logger
}

// NewPipeline creates an ingestion pipeline. scanned may be nil when no
// vision model is configured; scanned documents are then recorded as failed
// instead of aborting the run.
func NewPipeline(corpus Corpus, ch *chunker.Chunker, embedder Embedder, store *storage.Store, scanned ScannedExtractor, batchSize int, log zerolog.Logger) *Pipeline {
	if batchSize <= 0 {
		batchSize = 96
	}
	return &Pipeline{
		corpus:    corpus,
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		scanned:   scanned,
		batchSize: batchSize,
		log:       log,
	}
}

// IndexAll wipes the collection and ingests every PDF under sourceDir.
// Individual document and batch failures are logged and skipped; a partial
// index is an accepted outcome.
func (p *Pipeline) IndexAll(ctx context.Context, sourceDir string) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	paths, err := p.corpus.List(sourceDir)
	if err != nil {
		return nil, err
	}
	result.TotalDocs = len(paths)
	p.log.Info().Int("documents", len(paths)).Str("dir", sourceDir).Msg("starting ingestion")

	if err := p.store.Reset(); err != nil {
		return nil, fmt.Errorf("reset collection: %w", err)
	}

	for _, path := range paths {
		total, indexed, failedBatches, err := p.processDocument(ctx, path)
		if err != nil {
			p.log.Warn().Err(err).Str("document", path).Msg("document ingestion failed")
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   path,
				Reason: err.Error(),
			})
			continue
		}
		result.IndexedDocs++
		result.TotalChunks += total
		result.IndexedChunks += indexed
		result.FailedBatches += failedBatches
	}

	result.Duration = time.Since(start)
	p.log.Info().
		Int("indexed_docs", result.IndexedDocs).
		Int("failed_docs", len(result.FailedDocs)).
		Int("chunks", result.IndexedChunks).
		Dur("duration", result.Duration).
		Msg("ingestion complete")
	return result, nil
}

// processDocument extracts, chunks and indexes one document. Returns the
// chunk count, how many chunks made it into the index, and how many batches
// failed along the way.
func (p *Pipeline) processDocument(ctx context.Context, path string) (total, indexed, failedBatches int, err error) {
	name := filepath.Base(path)

	pages, err := p.extractPages(ctx, path)
	if err != nil {
		return 0, 0, 0, err
	}

	chunks, err := p.chunker.Split(path, pages)
	if err != nil {
		return 0, 0, 0, err
	}
	p.log.Debug().Str("document", name).Int("chunks", len(chunks)).Msg("chunked document")

	for i := 0; i < len(chunks); i += p.batchSize {
		end := i + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		if err := p.indexBatch(ctx, batch); err != nil {
			// A failed batch is skipped, not fatal: the rest of the
			// document still gets indexed.
			p.log.Warn().Err(err).Str("document", name).
				Int("batch_start", i).Msg("batch failed, skipping")
			failedBatches++
			continue
		}
		indexed += len(batch)
	}

	return len(chunks), indexed, failedBatches, nil
}

func (p *Pipeline) extractPages(ctx context.Context, path string) ([]document.Page, error) {
	scanned, err := p.corpus.IsScanned(path)
	if err != nil {
		return nil, err
	}
	if !scanned {
		return p.corpus.ExtractPages(path)
	}
	if p.scanned == nil {
		return nil, fmt.Errorf("document has no text layer and no vision extractor is configured")
	}
	p.log.Info().Str("document", filepath.Base(path)).Msg("no text layer, using vision extraction")
	return p.scanned.Extract(ctx, path)
}

func (p *Pipeline) indexBatch(ctx context.Context, batch []chunker.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts, embedding.InputTypeDocument)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	records := make([]storage.Record, len(batch))
	for i, c := range batch {
		records[i] = storage.Record{
			ID:        uuid.New().String(),
			Text:      c.Text,
			Embedding: vectors[i],
			Source:    c.Source,
			Page:      c.Page,
			ChunkID:   c.ID,
		}
	}
	if err := p.store.Add(ctx, records); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}
