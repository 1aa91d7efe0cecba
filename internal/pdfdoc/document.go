// Package pdfdoc loads a PDF's structural data: page count and sizes, text
// runs for selection, link annotations, and rendered page bitmaps.
package pdfdoc

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/phuslu/log"

	"github.com/pkukic/margo/pkg/geometry"
)

// RenderScale is the oversampling factor for page bitmaps. Pages render at
// twice their nominal point size so glyphs stay sharp when zoomed in.
const RenderScale = 2.0

// PageImager renders one page to a base64-encoded PNG at the given scale.
// The chat collaborator implements this.
type PageImager interface {
	ExtractPageImage(ctx context.Context, pdfPath string, pageNumber int, scale float64) (string, error)
}

// Document is an open PDF. Page numbers are 1-based throughout.
type Document struct {
	path      string
	name      string
	pageSizes []geometry.Size // nominal size in PDF points

	reader *pdf.Reader
	closer interface{ Close() error }

	imager PageImager

	mu     sync.Mutex
	bitmap map[int]*PageBitmap
	runs   map[int][]TextRun
	links  map[int][]Link
}

// Open loads the PDF at path. The imager is used lazily by RenderPage and
// may be nil for documents that are never rendered.
func Open(path string, imager PageImager) (*Document, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf %s: %w", path, err)
	}
	if pdfCtx.Encrypt != nil {
		return nil, fmt.Errorf("read pdf %s: encrypted documents are not supported", path)
	}

	dims, err := api.PageDimsFile(path)
	if err != nil {
		return nil, fmt.Errorf("page dimensions %s: %w", path, err)
	}
	sizes := make([]geometry.Size, len(dims))
	for i, d := range dims {
		sizes[i] = geometry.Size{Width: d.Width, Height: d.Height}
	}

	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}

	log.Info().Str("path", path).Int("pages", len(sizes)).Msg("document opened")

	return &Document{
		path:      path,
		name:      filepath.Base(path),
		pageSizes: sizes,
		reader:    reader,
		closer:    file,
		imager:    imager,
		bitmap:    map[int]*PageBitmap{},
		runs:      map[int][]TextRun{},
		links:     map[int][]Link{},
	}, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Path returns the absolute PDF path.
func (d *Document) Path() string { return d.path }

// Name returns the PDF file name.
func (d *Document) Name() string { return d.name }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pageSizes) }

// PageSize returns a page's nominal size in PDF points. Out-of-range pages
// fall back to US Letter so layout never divides by zero.
func (d *Document) PageSize(pageNumber int) geometry.Size {
	if pageNumber < 1 || pageNumber > len(d.pageSizes) {
		return geometry.Size{Width: 612, Height: 792}
	}
	return d.pageSizes[pageNumber-1]
}

// TextRuns returns the page's text runs with normalized bounding rectangles,
// in reading order. Results are cached.
func (d *Document) TextRuns(pageNumber int) []TextRun {
	d.mu.Lock()
	if cached, ok := d.runs[pageNumber]; ok {
		d.mu.Unlock()
		return cached
	}
	d.mu.Unlock()

	runs := d.extractRuns(pageNumber)

	d.mu.Lock()
	d.runs[pageNumber] = runs
	d.mu.Unlock()
	return runs
}

// Links returns the page's link annotations. Results are cached.
func (d *Document) Links(pageNumber int) []Link {
	d.mu.Lock()
	if cached, ok := d.links[pageNumber]; ok {
		d.mu.Unlock()
		return cached
	}
	d.mu.Unlock()

	links := d.extractLinks(pageNumber)

	d.mu.Lock()
	d.links[pageNumber] = links
	d.mu.Unlock()
	return links
}
