// Package pdfview provides the scrolling page-stack widget with zoom,
// selection gestures, and the annotation overlay.
package pdfview

import (
	"github.com/pkukic/margo/internal/pdfdoc"
	"github.com/pkukic/margo/internal/viewport"
	"github.com/pkukic/margo/pkg/geometry"
)

// pageGap is the vertical space between pages in screen pixels at 100% zoom.
const pageGap = 16.0

// PageBox is one page's placement in screen space.
type PageBox struct {
	Number     int
	ScreenRect geometry.Rect
	Size       geometry.Size // nominal size in PDF points
}

// computeLayout stacks pages vertically, centered in the given content
// width. Screen size of a page is its point size times the render scale
// times zoom.
func computeLayout(sizes []geometry.Size, zoom, contentWidth float64) ([]PageBox, geometry.Size) {
	gap := pageGap * zoom
	boxes := make([]PageBox, len(sizes))

	var maxW, y float64
	for _, sz := range sizes {
		if w := sz.Width * pdfdoc.RenderScale * zoom; w > maxW {
			maxW = w
		}
	}
	if contentWidth > maxW {
		maxW = contentWidth
	}

	y = gap
	for i, sz := range sizes {
		w := sz.Width * pdfdoc.RenderScale * zoom
		h := sz.Height * pdfdoc.RenderScale * zoom
		boxes[i] = PageBox{
			Number:     i + 1,
			ScreenRect: geometry.Rect{X: (maxW - w) / 2, Y: y, Width: w, Height: h},
			Size:       sz,
		}
		y += h + gap
	}
	return boxes, geometry.Size{Width: maxW, Height: y}
}

// pageLayouts converts screen boxes into the vertical extents the viewport
// tracker consumes.
func pageLayouts(boxes []PageBox) []viewport.PageLayout {
	out := make([]viewport.PageLayout, len(boxes))
	for i, b := range boxes {
		out[i] = viewport.PageLayout{
			Number: b.Number,
			Top:    b.ScreenRect.Y,
			Height: b.ScreenRect.Height,
		}
	}
	return out
}

// pageAt returns the page box containing the screen point, or nil when the
// point falls in a gap or margin.
func pageAt(boxes []PageBox, p geometry.Point2D) *PageBox {
	for i := range boxes {
		if boxes[i].ScreenRect.Contains(p) {
			return &boxes[i]
		}
	}
	return nil
}

// anchorScreenRect places a normalized page rectangle in screen space.
func anchorScreenRect(box PageBox, norm geometry.Rect) geometry.Rect {
	return geometry.Rect{
		X:      box.ScreenRect.X + norm.X*box.ScreenRect.Width,
		Y:      box.ScreenRect.Y + norm.Y*box.ScreenRect.Height,
		Width:  norm.Width * box.ScreenRect.Width,
		Height: norm.Height * box.ScreenRect.Height,
	}
}
