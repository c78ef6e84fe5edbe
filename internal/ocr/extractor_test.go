package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRasterizer encodes the page number into the image bytes so the fake
// vision client can echo it back.
type fakeRasterizer struct {
	mu       sync.Mutex
	calls    []int
	failPage int // 0 = never fail
}

func (f *fakeRasterizer) RasterizePage(ctx context.Context, path string, page int) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	f.mu.Unlock()
	if f.failPage != 0 && page == f.failPage {
		return nil, fmt.Errorf("render failed for page %d", page)
	}
	return []byte(fmt.Sprintf("img-%d", page)), nil
}

func (f *fakeRasterizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeVision struct {
	mu       sync.Mutex
	calls    int
	failPage int
}

func (f *fakeVision) Transcribe(ctx context.Context, mime string, image []byte) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	var page int
	fmt.Sscanf(string(image), "img-%d", &page)
	if f.failPage != 0 && page == f.failPage {
		return "", fmt.Errorf("vision error on page %d", page)
	}
	return fmt.Sprintf("texte de la page %d", page), nil
}

func (f *fakeVision) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestExtractor(t *testing.T, r Rasterizer, v VisionClient, pages int) *Extractor {
	t.Helper()
	progressPath := filepath.Join(t.TempDir(), "progress.json")
	e := NewExtractor(r, v, 33, 4, progressPath, zerolog.Nop())
	e.pageCount = func(string) (int, error) { return pages, nil }
	return e
}

func TestExtract_FullDocument(t *testing.T) {
	raster := &fakeRasterizer{}
	vision := &fakeVision{}
	e := newTestExtractor(t, raster, vision, 70)

	pages, err := e.Extract(context.Background(), "/data/scanned.pdf")
	require.NoError(t, err)

	require.Len(t, pages, 70)
	for i, page := range pages {
		assert.Equal(t, i+1, page.Number, "pages must come back ordered and globally numbered")
		assert.Equal(t, fmt.Sprintf("texte de la page %d", i+1), page.Text)
	}

	prog, err := loadProgress(e.progressPath)
	require.NoError(t, err)
	assert.Len(t, prog, 3, "70 pages in groups of 33 means 3 checkpoints")
	assert.Contains(t, prog, "scanned.pdf::offset_00000")
	assert.Contains(t, prog, "scanned.pdf::offset_00033")
	assert.Contains(t, prog, "scanned.pdf::offset_00066")
}

func TestExtract_FailedPageIsDropped(t *testing.T) {
	raster := &fakeRasterizer{}
	vision := &fakeVision{failPage: 5}
	e := newTestExtractor(t, raster, vision, 10)

	pages, err := e.Extract(context.Background(), "/data/scanned.pdf")
	require.NoError(t, err, "a single failed page must not abort the document")

	require.Len(t, pages, 9)
	for _, page := range pages {
		assert.NotEqual(t, 5, page.Number)
	}
}

func TestExtract_ResumeSkipsCheckpointedGroups(t *testing.T) {
	raster := &fakeRasterizer{}
	vision := &fakeVision{}
	e := newTestExtractor(t, raster, vision, 70)

	first, err := e.Extract(context.Background(), "/data/scanned.pdf")
	require.NoError(t, err)

	// Fresh fakes over the same progress file: nothing should be re-called.
	raster2 := &fakeRasterizer{}
	vision2 := &fakeVision{}
	e2 := NewExtractor(raster2, vision2, 33, 4, e.progressPath, zerolog.Nop())
	e2.pageCount = func(string) (int, error) { return 70, nil }

	second, err := e2.Extract(context.Background(), "/data/scanned.pdf")
	require.NoError(t, err)

	assert.Zero(t, raster2.callCount(), "resume must not rasterize checkpointed groups")
	assert.Zero(t, vision2.callCount(), "resume must not re-call the vision model")
	assert.Equal(t, first, second, "resumed output must match the uninterrupted run")
}

func TestExtract_GroupFailurePreservesEarlierCheckpoints(t *testing.T) {
	// Rasterization fails inside the second group.
	raster := &fakeRasterizer{failPage: 40}
	vision := &fakeVision{}
	e := newTestExtractor(t, raster, vision, 70)

	_, err := e.Extract(context.Background(), "/data/scanned.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 33")

	prog, err := loadProgress(e.progressPath)
	require.NoError(t, err)
	assert.Contains(t, prog, "scanned.pdf::offset_00000", "completed group must stay checkpointed")
	assert.NotContains(t, prog, "scanned.pdf::offset_00033")

	// Retry with a healthy rasterizer: only the missing groups run.
	raster2 := &fakeRasterizer{}
	vision2 := &fakeVision{}
	e2 := NewExtractor(raster2, vision2, 33, 4, e.progressPath, zerolog.Nop())
	e2.pageCount = func(string) (int, error) { return 70, nil }

	pages, err := e2.Extract(context.Background(), "/data/scanned.pdf")
	require.NoError(t, err)
	assert.Len(t, pages, 70)
	assert.Equal(t, 70-33, raster2.callCount(), "first group must come from the checkpoint")
}

func TestExtract_EmptyTranscriptionDropped(t *testing.T) {
	raster := &fakeRasterizer{}
	vision := &blankVision{}
	e := newTestExtractor(t, raster, vision, 3)

	pages, err := e.Extract(context.Background(), "/data/scanned.pdf")
	require.NoError(t, err)
	assert.Empty(t, pages)
}

type blankVision struct{}

func (blankVision) Transcribe(context.Context, string, []byte) (string, error) {
	return "   \n", nil
}

func TestProgress_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "progress.json")

	p := progress{
		groupKey("cours.pdf", 0): {"1": "page un", "2": "page deux"},
	}
	require.NoError(t, saveProgress(path, p))

	loaded, err := loadProgress(path)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestProgress_MissingFileIsEmpty(t *testing.T) {
	loaded, err := loadProgress(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestGroupKey_Format(t *testing.T) {
	key := groupKey("Mes cours.pdf", 33)
	if !strings.HasSuffix(key, "::offset_00033") {
		t.Errorf("Unexpected group key format: %q", key)
	}
}
