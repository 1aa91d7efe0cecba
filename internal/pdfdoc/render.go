package pdfdoc

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/phuslu/log"
)

// maxCachedBitmaps bounds the render cache. A full-height page at 2x scale
// runs to several megabytes, so the cache keeps a window around the reader's
// position rather than the whole document.
const maxCachedBitmaps = 12

// PageBitmap is a rendered page image at a fixed scale.
type PageBitmap struct {
	Image image.Image
	Scale float64
}

// ErrNoImager indicates the document was opened without a page renderer.
var ErrNoImager = errors.New("pdfdoc: no page imager configured")

// RenderPage returns the page's bitmap at RenderScale, fetching it from the
// imager on first use. Safe for concurrent callers.
func (d *Document) RenderPage(ctx context.Context, pageNumber int) (*PageBitmap, error) {
	d.mu.Lock()
	if bm, ok := d.bitmap[pageNumber]; ok {
		d.mu.Unlock()
		return bm, nil
	}
	d.mu.Unlock()

	if d.imager == nil {
		return nil, ErrNoImager
	}

	encoded, err := d.imager.ExtractPageImage(ctx, d.path, pageNumber, RenderScale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", pageNumber, err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("render page %d: decode base64: %w", pageNumber, err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("render page %d: decode png: %w", pageNumber, err)
	}

	bm := &PageBitmap{Image: img, Scale: RenderScale}

	d.mu.Lock()
	d.bitmap[pageNumber] = bm
	d.evictDistant(pageNumber)
	d.mu.Unlock()

	log.Debug().Int("page", pageNumber).
		Int("w", img.Bounds().Dx()).Int("h", img.Bounds().Dy()).
		Msg("page rendered")
	return bm, nil
}

// CachedBitmap returns the page's bitmap if already rendered, without
// contacting the imager.
func (d *Document) CachedBitmap(pageNumber int) *PageBitmap {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bitmap[pageNumber]
}

// InvalidateBitmaps drops all cached page images.
func (d *Document) InvalidateBitmaps() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bitmap = map[int]*PageBitmap{}
}

// evictDistant drops the cached page farthest from the anchor until the
// cache fits. Caller holds d.mu.
func (d *Document) evictDistant(anchor int) {
	for len(d.bitmap) > maxCachedBitmaps {
		victim, worst := 0, -1
		for page := range d.bitmap {
			dist := page - anchor
			if dist < 0 {
				dist = -dist
			}
			if dist > worst {
				victim, worst = page, dist
			}
		}
		delete(d.bitmap, victim)
	}
}
