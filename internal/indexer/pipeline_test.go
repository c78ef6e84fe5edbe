package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathai-labs/tutor-core/internal/chunker"
	"github.com/mathai-labs/tutor-core/internal/document"
	"github.com/mathai-labs/tutor-core/internal/embedding"
	"github.com/mathai-labs/tutor-core/internal/storage"
)

// fakeCorpus serves documents from memory. A document listed in scanned has
// no text layer; its pages live in scannedPages instead.
type fakeCorpus struct {
	docs         map[string][]document.Page
	scanned      map[string]bool
	scannedErr   map[string]error
	listErr      error
	scannedPages map[string][]document.Page
}

func (f *fakeCorpus) List(dir string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var paths []string
	for path := range f.docs {
		paths = append(paths, path)
	}
	for path := range f.scannedPages {
		paths = append(paths, path)
	}
	return paths, nil
}

func (f *fakeCorpus) IsScanned(path string) (bool, error) {
	if err := f.scannedErr[path]; err != nil {
		return false, err
	}
	return f.scanned[path], nil
}

func (f *fakeCorpus) ExtractPages(path string) ([]document.Page, error) {
	pages, ok := f.docs[path]
	if !ok {
		return nil, fmt.Errorf("no such document: %s", path)
	}
	return pages, nil
}

type fakeScannedExtractor struct {
	pages map[string][]document.Page
	calls int
}

func (f *fakeScannedExtractor) Extract(ctx context.Context, path string) ([]document.Page, error) {
	f.calls++
	pages, ok := f.pages[path]
	if !ok {
		return nil, fmt.Errorf("no transcription for %s", path)
	}
	return pages, nil
}

// fakeEmbedder returns a distinct unit vector per call so stored records stay
// queryable. failAfter > 0 makes every Embed call past that count fail.
type fakeEmbedder struct {
	calls     int
	failAfter int
	gotTypes  []embedding.InputType
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, inputType embedding.InputType) ([][]float32, error) {
	f.calls++
	f.gotTypes = append(f.gotTypes, inputType)
	if f.failAfter > 0 && f.calls > f.failAfter {
		return nil, errors.New("embedding service unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.6, 0.8, 0}
	}
	return vectors, nil
}

func newTestPipeline(t *testing.T, corpus Corpus, embedder Embedder, scanned ScannedExtractor, batchSize int) (*Pipeline, *storage.Store) {
	t.Helper()
	store, err := storage.NewInMemory("test_curriculum")
	require.NoError(t, err)
	return NewPipeline(corpus, chunker.New(1000, 100), embedder, store, scanned, batchSize, zerolog.Nop()), store
}

func TestIndexAll_CountsAndStores(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string][]document.Page{
		"MTH1122.pdf": {
			{Number: 1, Text: "Le théorème de Rolle."},
			{Number: 2, Text: "Fonctions dérivables sur un intervalle."},
		},
	}}
	embedder := &fakeEmbedder{}
	p, store := newTestPipeline(t, corpus, embedder, nil, 96)

	result, err := p.IndexAll(context.Background(), "sources")
	require.NoError(t, err)

	assert.Equal(t, 1, result.TotalDocs)
	assert.Equal(t, 1, result.IndexedDocs)
	assert.Equal(t, 2, result.TotalChunks)
	assert.Equal(t, 2, result.IndexedChunks)
	assert.Equal(t, 0, result.FailedBatches)
	assert.Empty(t, result.FailedDocs)
	assert.Equal(t, 2, store.Count())

	require.NotEmpty(t, embedder.gotTypes)
	assert.Equal(t, embedding.InputTypeDocument, embedder.gotTypes[0])
}

func TestIndexAll_ReingestionRebuildsFromScratch(t *testing.T) {
	corpus := &fakeCorpus{docs: map[string][]document.Page{
		"MTH1122.pdf": {{Number: 1, Text: "Le théorème de Rolle."}},
	}}
	p, store := newTestPipeline(t, corpus, &fakeEmbedder{}, nil, 96)

	for i := 0; i < 3; i++ {
		_, err := p.IndexAll(context.Background(), "sources")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, store.Count(), "re-ingestion must not accumulate duplicates")
}

func TestIndexAll_FailedDocumentDoesNotAbortRun(t *testing.T) {
	corpus := &fakeCorpus{
		docs: map[string][]document.Page{
			"good.pdf":   {{Number: 1, Text: "Contenu valide."}},
			"broken.pdf": {{Number: 1, Text: "Jamais lu."}},
		},
		scannedErr: map[string]error{"broken.pdf": errors.New("corrupt xref table")},
	}
	p, store := newTestPipeline(t, corpus, &fakeEmbedder{}, nil, 96)

	result, err := p.IndexAll(context.Background(), "sources")
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalDocs)
	assert.Equal(t, 1, result.IndexedDocs)
	require.Len(t, result.FailedDocs, 1)
	assert.Equal(t, "broken.pdf", result.FailedDocs[0].Path)
	assert.Contains(t, result.FailedDocs[0].Reason, "corrupt xref table")
	assert.Equal(t, 1, store.Count())
}

func TestIndexAll_FailedBatchIsSkipped(t *testing.T) {
	// Six pages at batch size 2: three Embed calls, the last two fail.
	pages := make([]document.Page, 6)
	for i := range pages {
		pages[i] = document.Page{Number: i + 1, Text: fmt.Sprintf("Page %d du manuel.", i+1)}
	}
	corpus := &fakeCorpus{docs: map[string][]document.Page{"MTH1122.pdf": pages}}
	embedder := &fakeEmbedder{failAfter: 1}
	p, store := newTestPipeline(t, corpus, embedder, nil, 2)

	result, err := p.IndexAll(context.Background(), "sources")
	require.NoError(t, err)

	assert.Equal(t, 6, result.TotalChunks)
	assert.Equal(t, 2, result.IndexedChunks)
	assert.Equal(t, 2, result.FailedBatches)
	assert.Equal(t, 1, result.IndexedDocs)
	assert.Equal(t, 2, store.Count())
}

func TestIndexAll_ScannedDocumentUsesVisionExtractor(t *testing.T) {
	corpus := &fakeCorpus{
		scanned:      map[string]bool{"scan.pdf": true},
		scannedPages: map[string][]document.Page{"scan.pdf": nil},
	}
	extractor := &fakeScannedExtractor{pages: map[string][]document.Page{
		"scan.pdf": {{Number: 1, Text: "Texte transcrit depuis l'image."}},
	}}
	p, store := newTestPipeline(t, corpus, &fakeEmbedder{}, extractor, 96)

	result, err := p.IndexAll(context.Background(), "sources")
	require.NoError(t, err)

	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, 1, result.IndexedDocs)
	assert.Equal(t, 1, store.Count())
}

func TestIndexAll_ScannedWithoutExtractorFailsDocument(t *testing.T) {
	corpus := &fakeCorpus{
		scanned:      map[string]bool{"scan.pdf": true},
		scannedPages: map[string][]document.Page{"scan.pdf": nil},
	}
	p, store := newTestPipeline(t, corpus, &fakeEmbedder{}, nil, 96)

	result, err := p.IndexAll(context.Background(), "sources")
	require.NoError(t, err)

	require.Len(t, result.FailedDocs, 1)
	assert.Contains(t, result.FailedDocs[0].Reason, "no vision extractor")
	assert.Equal(t, 0, store.Count())
}

func TestIndexAll_ListFailureAborts(t *testing.T) {
	corpus := &fakeCorpus{listErr: errors.New("directory unreadable")}
	p, _ := newTestPipeline(t, corpus, &fakeEmbedder{}, nil, 96)

	_, err := p.IndexAll(context.Background(), "sources")
	require.Error(t, err)
}
