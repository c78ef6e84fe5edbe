// Package document provides access to the curriculum corpus: listing source
// PDFs and extracting their native text layer page by page.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the text of a single document page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

const (
	// scannedProbePages is how many leading pages are inspected when
	// deciding whether a document has a usable text layer.
	scannedProbePages = 3

	// scannedTextThreshold is the minimum number of extractable characters
	// a page must yield to count as real text rather than extraction noise.
	scannedTextThreshold = 50
)

// ListPDFs returns the PDF files directly under dir, sorted by name.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ExtractPages extracts the native text layer of every page, in order.
// Pages that fail extraction are returned with empty text rather than
// aborting the document.
func ExtractPages(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, Page{Number: i})
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// PageCount returns the number of pages in the document.
func PageCount(path string) (int, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return reader.NumPage(), nil
}

// IsScanned reports whether the document appears to have no usable text
// layer: none of its first few pages yields more than a small threshold of
// extractable characters.
func IsScanned(path string) (bool, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return false, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	probe := reader.NumPage()
	if probe > scannedProbePages {
		probe = scannedProbePages
	}
	for i := 1; i <= probe; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if len(strings.TrimSpace(text)) > scannedTextThreshold {
			return false, nil
		}
	}
	return true, nil
}
