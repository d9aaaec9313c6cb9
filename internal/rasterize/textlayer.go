package rasterize

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// TextLayer returns the embedded text of each page, in page order.
// Scanned PDFs usually yield empty strings; callers fall back to OCR for those pages.
func TextLayer(path string) (pages []string, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	// malformed content streams panic inside the reader
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("failed to read text layer: %v", rec)
		}
	}()

	n := r.NumPage()
	pages = make([]string, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read text of page %d: %w", i-1, err)
		}
		pages[i-1] = strings.TrimSpace(text)
	}
	return pages, nil
}
