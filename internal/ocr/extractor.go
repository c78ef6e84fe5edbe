// Package ocr recovers text from documents that have no native text layer by
// rasterizing pages and delegating transcription to a vision-capable model.
// Work proceeds in fixed-size page groups, checkpointed after each group, so
// an interrupted run resumes without repeating model calls.
package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mathai-labs/tutor-core/internal/document"
)

// Extractor drives scanned-document extraction. Groups are processed
// sequentially; only the pages inside a group run in parallel, which keeps the
// checkpoint file free of interleaved partial writes.
type Extractor struct {
	rasterizer   Rasterizer
	vision       VisionClient
	groupSize    int
	workers      int
	progressPath string
	pageCount    func(path string) (int, error)
	log          zerolog.Logger
}

// NewExtractor creates an Extractor. groupSize is the number of pages per
// checkpointed group, workers the parallel width within a group.
func NewExtractor(r Rasterizer, v VisionClient, groupSize, workers int, progressPath string, log zerolog.Logger) *Extractor {
	if groupSize <= 0 {
		groupSize = 33
	}
	if workers <= 0 {
		workers = 4
	}
	return &Extractor{
		rasterizer:   r,
		vision:       v,
		groupSize:    groupSize,
		workers:      workers,
		progressPath: progressPath,
		pageCount:    document.PageCount,
		log:          log,
	}
}

// Extract returns the transcribed text of every recoverable page, ordered by
// page number. A page whose transcription fails is dropped; a group-level
// failure aborts the document but leaves earlier checkpoints intact.
func (e *Extractor) Extract(ctx context.Context, path string) ([]document.Page, error) {
	total, err := e.pageCount(path)
	if err != nil {
		return nil, err
	}

	prog, err := loadProgress(e.progressPath)
	if err != nil {
		return nil, err
	}

	docName := filepath.Base(path)
	texts := make(map[int]string)

	for start := 0; start < total; start += e.groupSize {
		end := start + e.groupSize
		if end > total {
			end = total
		}
		key := groupKey(docName, start)

		if cached, ok := prog[key]; ok {
			e.log.Info().Str("document", docName).Int("offset", start).
				Int("pages", len(cached)).Msg("resuming from checkpoint")
			for pageStr, text := range cached {
				page, err := strconv.Atoi(pageStr)
				if err != nil {
					continue
				}
				texts[page] = text
			}
			continue
		}

		group, err := e.extractGroup(ctx, path, start+1, end)
		if err != nil {
			return nil, fmt.Errorf("group offset %d of %s: %w", start, docName, err)
		}

		checkpoint := make(map[string]string, len(group))
		for page, text := range group {
			texts[page] = text
			checkpoint[strconv.Itoa(page)] = text
		}
		prog[key] = checkpoint
		if err := saveProgress(e.progressPath, prog); err != nil {
			return nil, err
		}
		e.log.Info().Str("document", docName).Int("offset", start).
			Int("pages", len(group)).Msg("checkpoint saved")
	}

	pages := make([]document.Page, 0, len(texts))
	for page, text := range texts {
		pages = append(pages, document.Page{Number: page, Text: text})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// extractGroup processes global pages [first, last]. Rasterization runs
// first across the pool; any rasterization error fails the group.
// Transcription then runs across the pool; a failed page is logged and
// dropped rather than failing the group.
func (e *Extractor) extractGroup(ctx context.Context, path string, first, last int) (map[int]string, error) {
	n := last - first + 1
	images := make([][]byte, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			img, err := e.rasterizer.RasterizePage(gctx, path, first+i)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rasterize: %w", err)
	}

	transcripts := make([]string, n)
	tg, tctx := errgroup.WithContext(ctx)
	tg.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		tg.Go(func() error {
			text, err := e.vision.Transcribe(tctx, "image/jpeg", images[i])
			if err != nil {
				e.log.Warn().Err(err).Int("page", first+i).
					Msg("page transcription failed, dropping page")
				return nil
			}
			transcripts[i] = text
			return nil
		})
	}
	if err := tg.Wait(); err != nil {
		return nil, err
	}

	group := make(map[int]string)
	for i, text := range transcripts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		group[first+i] = text
	}
	return group, nil
}
