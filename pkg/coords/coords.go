// Package coords converts between the coordinate spaces of a rendered PDF page.
//
// Four spaces are used, each a strict linear scaling of the previous, origin
// top-left, y increasing downward:
//
//	normalized  fractions of the page's intrinsic (unscaled) size, [0,1]^2
//	render      normalized x page size in points x fixed render scale R
//	device      render x display pixel ratio; backing pixel buffers only
//	screen      render x user zoom Z, plus the page's on-screen origin
//
// Every call site names which space it produces or consumes by going through
// one of these conversions rather than multiplying scales inline.
package coords

import (
	"math"

	"github.com/pkukic/margo/pkg/geometry"
)

const (
	// MinZoom and MaxZoom bound the user zoom level Z.
	MinZoom = 0.25
	MaxZoom = 3.0

	// ZoomStep is the increment used by zoom buttons and keyboard shortcuts.
	// Wheel+modifier zooming is continuous and bypasses the step.
	ZoomStep = 0.1
)

// ClampZoom limits a zoom level to the supported range.
func ClampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// StepZoom returns the zoom level moved by n steps, clamped.
func StepZoom(z float64, n int) float64 {
	stepped := z + float64(n)*ZoomStep
	// Snap to the step grid so repeated +/- cancel exactly.
	stepped = math.Round(stepped/ZoomStep) * ZoomStep
	return ClampZoom(stepped)
}

// Mapper converts coordinates for a single page at a given zoom level.
// RenderScale is the fixed rasterization multiplier R; Zoom is the
// user-controlled level Z applied once to the whole page stack. PageOrigin is
// the page element's top-left corner in screen space, which already includes
// any scroll offset of the containing viewport.
type Mapper struct {
	PageSize    geometry.Size // intrinsic page size in PDF points
	RenderScale float64
	Zoom        float64
	PageOrigin  geometry.Point2D
}

// NewMapper creates a Mapper for a page.
func NewMapper(pageSize geometry.Size, renderScale, zoom float64, origin geometry.Point2D) Mapper {
	return Mapper{
		PageSize:    pageSize,
		RenderScale: renderScale,
		Zoom:        zoom,
		PageOrigin:  origin,
	}
}

// NormalizedToRender maps a normalized-page rect to render space.
func (m Mapper) NormalizedToRender(r geometry.Rect) geometry.Rect {
	return geometry.Rect{
		X:      r.X * m.PageSize.Width * m.RenderScale,
		Y:      r.Y * m.PageSize.Height * m.RenderScale,
		Width:  r.Width * m.PageSize.Width * m.RenderScale,
		Height: r.Height * m.PageSize.Height * m.RenderScale,
	}
}

// RenderToNormalized maps a render-space rect back to normalized-page space.
func (m Mapper) RenderToNormalized(r geometry.Rect) geometry.Rect {
	return geometry.Rect{
		X:      r.X / (m.PageSize.Width * m.RenderScale),
		Y:      r.Y / (m.PageSize.Height * m.RenderScale),
		Width:  r.Width / (m.PageSize.Width * m.RenderScale),
		Height: r.Height / (m.PageSize.Height * m.RenderScale),
	}
}

// RenderToScreen maps a render-space rect to screen space, applying zoom and
// the page origin.
func (m Mapper) RenderToScreen(r geometry.Rect) geometry.Rect {
	return r.Scale(m.Zoom).Translate(m.PageOrigin.X, m.PageOrigin.Y)
}

// ScreenToRender maps a screen-space rect to render space, removing the page
// origin before dividing out zoom.
func (m Mapper) ScreenToRender(r geometry.Rect) geometry.Rect {
	return r.Translate(-m.PageOrigin.X, -m.PageOrigin.Y).Scale(1 / m.Zoom)
}

// NormalizedToScreen maps a normalized-page rect directly to screen space.
func (m Mapper) NormalizedToScreen(r geometry.Rect) geometry.Rect {
	return m.RenderToScreen(m.NormalizedToRender(r))
}

// ScreenToNormalized maps a screen-space rect back to normalized-page space.
func (m Mapper) ScreenToNormalized(r geometry.Rect) geometry.Rect {
	return m.RenderToNormalized(m.ScreenToRender(r))
}

// ScreenPointToNormalized maps a single screen-space point to normalized-page
// space.
func (m Mapper) ScreenPointToNormalized(p geometry.Point2D) geometry.Point2D {
	local := p.Sub(m.PageOrigin).Scale(1 / m.Zoom)
	return geometry.Point2D{
		X: local.X / (m.PageSize.Width * m.RenderScale),
		Y: local.Y / (m.PageSize.Height * m.RenderScale),
	}
}

// RenderToDevice maps a render-space rect to device-pixel space. Device space
// is used only for sizing backing pixel buffers, never for layout or
// hit-testing.
func RenderToDevice(r geometry.Rect, pixelRatio float64) geometry.Rect {
	return r.Scale(pixelRatio)
}

// ZoomAboutPoint solves for the scroll offset that keeps the content point
// under a fixed screen anchor when zoom changes from oldZoom to newZoom.
// The anchor is the point's offset within the viewport (for example the
// cursor position); scroll is the current scroll offset. Both axes are
// independent.
func ZoomAboutPoint(oldZoom, newZoom float64, anchor, scroll geometry.Point2D) geometry.Point2D {
	content := geometry.Point2D{
		X: (scroll.X + anchor.X) / oldZoom,
		Y: (scroll.Y + anchor.Y) / oldZoom,
	}
	return geometry.Point2D{
		X: content.X*newZoom - anchor.X,
		Y: content.Y*newZoom - anchor.Y,
	}
}
