// Package capture turns pointer drags and text selections into normalized
// annotation records and extracted page bitmaps.
package capture

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/pkukic/margo/pkg/coords"
	"github.com/pkukic/margo/pkg/geometry"
)

// MinDragSize is the minimum width and height, in screen pixels, a region
// drag must reach to produce an annotation. Smaller drags are missed
// gestures, discarded without error.
const MinDragSize = 20

// Page describes one rendered page as a capture target: its screen-space
// rectangle within the scrollable content and its intrinsic size in points.
type Page struct {
	Number     int
	ScreenRect geometry.Rect
	Size       geometry.Size
}

// Region is a finalized region-capture gesture.
type Region struct {
	PageNumber int
	// Normalized is the drag rectangle in normalized-page space.
	Normalized geometry.Rect
	// RenderRect is the same rectangle in render space, page-relative; the
	// bitmap extraction path consumes it.
	RenderRect geometry.Rect
}

// TextSpan is a finalized text-selection gesture.
type TextSpan struct {
	PageNumber int
	Text       string
	Normalized geometry.Rect
}

// FinalizeRegion validates a completed drag and converts it out of screen
// space. Returns false when the drag is below the minimum size or its center
// lands on no page.
func FinalizeRegion(dragStart, dragEnd geometry.Point2D, pages []Page, renderScale, zoom float64) (Region, bool) {
	rect := dragRect(dragStart, dragEnd)
	if rect.Width < MinDragSize || rect.Height < MinDragSize {
		return Region{}, false
	}

	page, ok := owningPage(rect.Center(), pages)
	if !ok {
		return Region{}, false
	}

	m := coords.NewMapper(page.Size, renderScale, zoom, page.ScreenRect.TopLeft())
	return Region{
		PageNumber: page.Number,
		Normalized: m.ScreenToNormalized(rect),
		RenderRect: m.ScreenToRender(rect),
	}, true
}

// FinalizeTextSpan validates a completed text selection and unions its client
// rectangles (screen space) into one normalized bounding box. Returns false
// for empty selections or selections owned by no page.
func FinalizeTextSpan(text string, rects []geometry.Rect, pages []Page, renderScale, zoom float64) (TextSpan, bool) {
	text = strings.TrimSpace(text)
	if text == "" || len(rects) == 0 {
		return TextSpan{}, false
	}

	union := rects[0]
	for _, r := range rects[1:] {
		union = union.Union(r)
	}
	if union.IsEmpty() {
		return TextSpan{}, false
	}

	page, ok := owningPage(union.Center(), pages)
	if !ok {
		return TextSpan{}, false
	}

	m := coords.NewMapper(page.Size, renderScale, zoom, page.ScreenRect.TopLeft())
	return TextSpan{
		PageNumber: page.Number,
		Text:       text,
		Normalized: m.ScreenToNormalized(union),
	}, true
}

// dragRect normalizes two drag corners into a positive rectangle.
func dragRect(a, b geometry.Point2D) geometry.Rect {
	x1, x2 := math.Min(a.X, b.X), math.Max(a.X, b.X)
	y1, y2 := math.Min(a.Y, b.Y), math.Max(a.Y, b.Y)
	return geometry.NewRect(x1, y1, x2-x1, y2-y1)
}

// owningPage finds the first page containing the point, in document order.
func owningPage(p geometry.Point2D, pages []Page) (Page, bool) {
	for _, page := range pages {
		if page.ScreenRect.Contains(p) {
			return page, true
		}
	}
	return Page{}, false
}

// ExtractBitmap copies the captured region out of a page's backing bitmap.
// The backing bitmap holds device pixels (render space times pixelRatio);
// renderRect names the region in render space. The result is sized in render
// pixels, so captures look the same regardless of display density.
func ExtractBitmap(src image.Image, renderRect geometry.Rect, pixelRatio float64) (*image.RGBA, error) {
	if renderRect.IsEmpty() {
		return nil, fmt.Errorf("empty capture rect")
	}
	if pixelRatio <= 0 {
		pixelRatio = 1
	}

	device := coords.RenderToDevice(renderRect, pixelRatio)
	srcRect := image.Rect(
		int(math.Floor(device.X)),
		int(math.Floor(device.Y)),
		int(math.Ceil(device.X+device.Width)),
		int(math.Ceil(device.Y+device.Height)),
	).Intersect(src.Bounds())
	if srcRect.Empty() {
		return nil, fmt.Errorf("capture rect outside page bitmap")
	}

	out := image.NewRGBA(image.Rect(0, 0, int(math.Round(renderRect.Width)), int(math.Round(renderRect.Height))))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), src, srcRect, xdraw.Src, nil)
	return out, nil
}

// EncodePNGBase64 encodes a captured bitmap as a base64 PNG payload.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode capture: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
