package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Rasterizer renders a single document page to a JPEG image.
type Rasterizer interface {
	RasterizePage(ctx context.Context, path string, page int) ([]byte, error)
}

// PopplerRasterizer shells out to pdftoppm. Rendering one page at a time
// bounds memory regardless of document size.
type PopplerRasterizer struct {
	dpi int
}

// NewPopplerRasterizer creates a rasterizer rendering at the given DPI.
func NewPopplerRasterizer(dpi int) *PopplerRasterizer {
	if dpi <= 0 {
		dpi = 150
	}
	return &PopplerRasterizer{dpi: dpi}
}

// RasterizePage renders the 1-based page to JPEG bytes.
func (r *PopplerRasterizer) RasterizePage(ctx context.Context, path string, page int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pdf_raster_")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-jpeg",
		"-r", strconv.Itoa(r.dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile",
		path, prefix,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, out)
	}

	img, err := os.ReadFile(prefix + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	return img, nil
}
