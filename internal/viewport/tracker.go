// Package viewport tracks scroll position and computes per-anchor visibility.
package viewport

import (
	"math"

	"github.com/pkukic/margo/pkg/geometry"
)

// PageLayout describes a rendered page's vertical placement within the
// scrollable content, in screen space.
type PageLayout struct {
	Number int // 1-based page number
	Top    float64
	Height float64
}

// Anchor is an overlay marker's screen rectangle, in scrollable-content
// coordinates, keyed by the identifier of the record it marks.
type Anchor struct {
	ID   string
	Rect geometry.Rect
}

// AnchorMetric is the tracker's output for one anchor. VisibilityRatio is the
// vertical overlap with the viewport divided by the anchor height;
// DistanceFromCenter is the absolute distance between anchor midpoint and
// viewport midpoint.
type AnchorMetric struct {
	ID                 string
	Rect               geometry.Rect
	VisibilityRatio    float64
	DistanceFromCenter float64
}

// Tracker observes scroll position and container geometry. It holds no
// opinion about focus policy; callers feed its output to the focus engine.
type Tracker struct {
	scrollY float64
	height  float64
	pages   []PageLayout
}

// NewTracker creates a tracker with no pages.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetPages replaces the ordered list of rendered page layouts.
func (t *Tracker) SetPages(pages []PageLayout) {
	t.pages = append(t.pages[:0], pages...)
}

// Update records the latest scroll offset and viewport height. Callers
// coalesce intermediate scroll events to frame granularity; the tracker only
// ever sees the most recent state.
func (t *Tracker) Update(scrollY, height float64) {
	t.scrollY = scrollY
	t.height = height
}

// ScrollY returns the current scroll offset.
func (t *Tracker) ScrollY() float64 { return t.scrollY }

// Height returns the current viewport height.
func (t *Tracker) Height() float64 { return t.height }

// ViewportRect returns the visible band of the scrollable content. The
// horizontal extent is unbounded; visibility scoring is vertical only.
func (t *Tracker) ViewportRect() geometry.Rect {
	return geometry.Rect{
		X:      math.Inf(-1),
		Y:      t.scrollY,
		Width:  math.Inf(1),
		Height: t.height,
	}
}

// CurrentPage determines the page the user is reading: scanning in document
// order, the first page whose vertical midpoint passes the viewport center
// marks the boundary, and the page just before it is current. Defaults to
// page 1 when no page qualifies.
func (t *Tracker) CurrentPage() int {
	if len(t.pages) == 0 {
		return 1
	}

	center := t.scrollY + t.height/2
	for i, p := range t.pages {
		mid := p.Top + p.Height/2
		if mid > center {
			if i == 0 {
				return t.pages[0].Number
			}
			return t.pages[i-1].Number
		}
	}
	// Every midpoint is above the viewport center; the last page is current.
	return t.pages[len(t.pages)-1].Number
}

// Metrics computes visibility ratio and distance from viewport center for
// each supplied anchor. Anchors with zero height yield a zero ratio.
func (t *Tracker) Metrics(anchors []Anchor) []AnchorMetric {
	viewTop := t.scrollY
	viewBottom := t.scrollY + t.height
	viewCenter := t.scrollY + t.height/2

	out := make([]AnchorMetric, 0, len(anchors))
	for _, a := range anchors {
		top := a.Rect.Y
		bottom := a.Rect.Y + a.Rect.Height

		overlap := math.Min(bottom, viewBottom) - math.Max(top, viewTop)
		if overlap < 0 {
			overlap = 0
		}

		var ratio float64
		if a.Rect.Height > 0 {
			ratio = overlap / a.Rect.Height
		}

		out = append(out, AnchorMetric{
			ID:                 a.ID,
			Rect:               a.Rect,
			VisibilityRatio:    ratio,
			DistanceFromCenter: math.Abs((top+bottom)/2 - viewCenter),
		})
	}
	return out
}
