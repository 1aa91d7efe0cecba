package pdfview

import (
	"strings"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/phuslu/log"

	"github.com/pkukic/margo/internal/app"
	"github.com/pkukic/margo/internal/capture"
	"github.com/pkukic/margo/internal/pdfdoc"
	"github.com/pkukic/margo/pkg/coords"
	"github.com/pkukic/margo/pkg/geometry"
)

// zoomScroll wraps a scroll container and diverts the wheel to zoom while
// Ctrl is held.
type zoomScroll struct {
	widget.BaseWidget
	scroll *container.Scroll
	view   *View
}

func newZoomScroll(content fyne.CanvasObject, view *View) *zoomScroll {
	zs := &zoomScroll{
		scroll: container.NewScroll(content),
		view:   view,
	}
	zs.scroll.Direction = container.ScrollBoth
	zs.ExtendBaseWidget(zs)
	return zs
}

func (zs *zoomScroll) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(zs.scroll)
}

// Offset returns the current scroll offset.
func (zs *zoomScroll) Offset() fyne.Position {
	return zs.scroll.Offset
}

// SetOffset moves the scroll position.
func (zs *zoomScroll) SetOffset(pos fyne.Position) {
	zs.scroll.Offset = pos
	zs.scroll.Refresh()
}

// SetOffsetY moves only the vertical scroll position.
func (zs *zoomScroll) SetOffsetY(y float64) {
	zs.SetOffset(fyne.NewPos(zs.scroll.Offset.X, float32(y)))
}

func (zs *zoomScroll) Size() fyne.Size {
	return zs.scroll.Size()
}

func (zs *zoomScroll) Resize(size fyne.Size) {
	zs.scroll.Resize(size)
	zs.BaseWidget.Resize(size)
}

func (zs *zoomScroll) Refresh() {
	zs.scroll.Refresh()
	zs.BaseWidget.Refresh()
}

// pageStack is the content widget inside the scroll container. It owns the
// raster and the pointer gestures.
type pageStack struct {
	widget.BaseWidget
	view   *View
	raster *fynecanvas.Raster
}

func newPageStack(view *View, raster *fynecanvas.Raster) *pageStack {
	ps := &pageStack{view: view, raster: raster}
	ps.ExtendBaseWidget(ps)
	return ps
}

func (ps *pageStack) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(ps.raster)
}

func (ps *pageStack) MinSize() fyne.Size {
	return ps.raster.MinSize()
}

// Scrolled zooms about the cursor while Ctrl is held; otherwise the wheel
// goes to the scroll container.
func (ps *pageStack) Scrolled(ev *fyne.ScrollEvent) {
	v := ps.view

	v.mu.Lock()
	ctrl := v.ctrlHeld
	v.mu.Unlock()

	if !ctrl {
		v.scroll.scroll.Scrolled(ev)
		return
	}

	direction := 1
	if ev.Scrolled.DY < 0 {
		direction = -1
	}
	newZoom := coords.StepZoom(v.state.Zoom(), direction)

	// ev.Position is in content coordinates; the zoom anchor is relative to
	// the viewport.
	offset := v.scroll.Offset()
	anchor := geometry.Point2D{
		X: float64(ev.Position.X - offset.X),
		Y: float64(ev.Position.Y - offset.Y),
	}
	v.setZoomAboutPoint(newZoom, anchor)
}

// Dragged tracks the rubber band while a capture gesture is armed.
func (ps *pageStack) Dragged(ev *fyne.DragEvent) {
	v := ps.view
	if v.state.CaptureMode() == app.ModeNone {
		return
	}

	// pageStack is the scroll content, so pointer events arrive already
	// content-relative.
	pos := geometry.Point2D{
		X: float64(ev.Position.X),
		Y: float64(ev.Position.Y),
	}

	v.mu.Lock()
	if !v.dragging {
		v.dragging = true
		v.dragStart = pos
	}
	v.dragEnd = pos
	v.mu.Unlock()

	v.Refresh()
}

// DragEnd finishes the armed gesture. Arming is one-shot: whatever the
// outcome, the mode reverts to none.
func (ps *pageStack) DragEnd() {
	v := ps.view

	v.mu.Lock()
	if !v.dragging {
		v.mu.Unlock()
		return
	}
	v.dragging = false
	start, end := v.dragStart, v.dragEnd
	boxes := v.boxes
	v.mu.Unlock()

	mode := v.state.CaptureMode()
	v.state.DisarmCapture()
	v.Refresh()

	doc := v.state.Document()
	if doc == nil || mode == app.ModeNone {
		return
	}

	pages := make([]capture.Page, len(boxes))
	for i, b := range boxes {
		pages[i] = capture.Page{Number: b.Number, ScreenRect: b.ScreenRect, Size: b.Size}
	}
	zoom := v.state.Zoom()

	switch mode {
	case app.ModeRegion, app.ModeNote:
		region, ok := capture.FinalizeRegion(start, end, pages, pdfdoc.RenderScale, zoom)
		if !ok {
			log.Debug().Msg("region capture rejected")
			return
		}
		bm := doc.CachedBitmap(region.PageNumber)
		if bm == nil {
			log.Warn().Int("page", region.PageNumber).Msg("capture before page rendered")
			return
		}
		bitmap, err := capture.ExtractBitmap(bm.Image, region.RenderRect, 1.0)
		if err != nil {
			log.Warn().Err(err).Msg("capture bitmap extraction failed")
			return
		}
		if mode == app.ModeNote {
			if v.OnNoteCaptured != nil {
				v.OnNoteCaptured(region, bitmap)
			}
		} else if v.OnRegionCaptured != nil {
			v.OnRegionCaptured(region, bitmap)
		}

	case app.ModeText:
		span, ok := textSpanFromDrag(doc, start, end, pages, zoom)
		if !ok {
			log.Debug().Msg("text capture found no runs")
			return
		}
		if v.OnTextCaptured != nil {
			v.OnTextCaptured(span)
		}
	}
}

// textSpanFromDrag gathers the text runs under the drag rectangle on the
// owning page and folds them into one span.
func textSpanFromDrag(doc *pdfdoc.Document, start, end geometry.Point2D, pages []capture.Page, zoom float64) (capture.TextSpan, bool) {
	rect := dragRectFrom(start, end)

	var owner *capture.Page
	for i := range pages {
		if pages[i].ScreenRect.Contains(rect.Center()) {
			owner = &pages[i]
			break
		}
	}
	if owner == nil {
		return capture.TextSpan{}, false
	}

	// normalized drag region on the owning page
	region := geometry.Rect{
		X:      (rect.X - owner.ScreenRect.X) / owner.ScreenRect.Width,
		Y:      (rect.Y - owner.ScreenRect.Y) / owner.ScreenRect.Height,
		Width:  rect.Width / owner.ScreenRect.Width,
		Height: rect.Height / owner.ScreenRect.Height,
	}

	runs := doc.RunsInRect(owner.Number, region)
	var parts []string
	var screenRects []geometry.Rect
	for _, run := range runs {
		parts = append(parts, run.Text)
		screenRects = append(screenRects, geometry.Rect{
			X:      owner.ScreenRect.X + run.Rect.X*owner.ScreenRect.Width,
			Y:      owner.ScreenRect.Y + run.Rect.Y*owner.ScreenRect.Height,
			Width:  run.Rect.Width * owner.ScreenRect.Width,
			Height: run.Rect.Height * owner.ScreenRect.Height,
		})
	}

	return capture.FinalizeTextSpan(strings.Join(parts, " "), screenRects, pages, pdfdoc.RenderScale, zoom)
}

// Tapped resolves link and marker hits.
func (ps *pageStack) Tapped(ev *fyne.PointEvent) {
	v := ps.view
	doc := v.state.Document()
	if doc == nil {
		return
	}

	// Content-relative already; page boxes are laid out in content space.
	pos := geometry.Point2D{
		X: float64(ev.Position.X),
		Y: float64(ev.Position.Y),
	}

	v.mu.Lock()
	boxes := v.boxes
	v.mu.Unlock()

	box := pageAt(boxes, pos)
	if box == nil {
		return
	}
	norm := geometry.Point2D{
		X: (pos.X - box.ScreenRect.X) / box.ScreenRect.Width,
		Y: (pos.Y - box.ScreenRect.Y) / box.ScreenRect.Height,
	}

	// Markers take precedence over links.
	for _, ann := range v.state.Store.Annotations() {
		if !ann.RendersOverlay() || ann.PageNumber != box.Number {
			continue
		}
		if ann.BoundingBox.Contains(norm) {
			if v.OnAnchorTapped != nil {
				v.OnAnchorTapped(ann.ID)
			}
			return
		}
	}

	for _, link := range doc.Links(box.Number) {
		if link.Rect.Contains(norm) {
			if v.OnLinkActivated != nil {
				v.OnLinkActivated(link)
			}
			return
		}
	}
}
