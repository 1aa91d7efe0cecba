package pdfview

import (
	"context"
	"image"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	"github.com/phuslu/log"
	xdraw "golang.org/x/image/draw"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/internal/app"
	"github.com/pkukic/margo/internal/capture"
	"github.com/pkukic/margo/internal/focus"
	"github.com/pkukic/margo/internal/pdfdoc"
	"github.com/pkukic/margo/internal/viewport"
	"github.com/pkukic/margo/pkg/coords"
	"github.com/pkukic/margo/pkg/geometry"
	"github.com/pkukic/margo/ui/overlay"
)

// View is the scrolling page stack with the annotation overlay. Wheel
// scrolls; Ctrl+wheel zooms about the cursor; an armed drag captures a
// region or text span.
type View struct {
	widget.BaseWidget

	state   *app.State
	tracker *viewport.Tracker
	engine  *focus.Engine

	raster  *fynecanvas.Raster
	content *pageStack
	scroll  *zoomScroll

	mu          sync.Mutex
	boxes       []PageBox
	contentSize geometry.Size
	ctrlHeld    bool

	dragging           bool
	dragStart, dragEnd geometry.Point2D

	inflight map[int]bool

	visibleIDs []string

	// Callbacks into the rest of the UI.
	OnRegionCaptured func(capture.Region, image.Image)
	OnNoteCaptured   func(capture.Region, image.Image)
	OnTextCaptured   func(capture.TextSpan)
	OnDecision       func(focus.Decision)
	OnAnchorTapped   func(id string)
	OnLinkActivated  func(pdfdoc.Link)

	// ArrowTargetY maps a visible anchor to the vertical center of its side
	// list row, in viewport coordinates. Nil means arrows only connect the
	// focused anchor to the panel edge.
	ArrowTargetY func(id string) (float64, bool)
}

// NewView creates the page view bound to application state.
func NewView(state *app.State) *View {
	v := &View{
		state:    state,
		tracker:  viewport.NewTracker(),
		engine:   focus.NewEngine(),
		inflight: map[int]bool{},
	}

	v.raster = fynecanvas.NewRaster(v.draw)
	v.raster.ScaleMode = fynecanvas.ImageScalePixels
	v.content = newPageStack(v, v.raster)
	v.scroll = newZoomScroll(v.content, v)

	state.On(app.EventDocumentOpened, func(interface{}) { v.reload() })
	state.On(app.EventDocumentClosed, func(interface{}) { v.reload() })
	state.On(app.EventZoomChanged, func(interface{}) { v.relayout() })
	state.Store.On(annotation.EventLoaded, func(string) { fyne.Do(v.Refresh) })
	state.Store.On(annotation.EventAnnotationsChanged, func(string) { fyne.Do(v.Refresh) })
	state.Store.On(annotation.EventNotesChanged, func(string) { fyne.Do(v.Refresh) })

	v.ExtendBaseWidget(v)
	return v
}

// Container returns the embeddable scroll container.
func (v *View) Container() fyne.CanvasObject {
	return v.scroll
}

// Engine exposes the focus engine for pin toggles and panel state updates.
func (v *View) Engine() *focus.Engine {
	return v.engine
}

// SetCtrlHeld records the modifier state for wheel handling. The main
// window feeds this from canvas key events.
func (v *View) SetCtrlHeld(held bool) {
	v.mu.Lock()
	v.ctrlHeld = held
	v.mu.Unlock()
}

// ScrollToAnchor centers the viewport on an annotation's anchor.
func (v *View) ScrollToAnchor(ann *annotation.Annotation) {
	if ann == nil || ann.BoundingBox == nil {
		return
	}
	v.mu.Lock()
	boxes := v.boxes
	v.mu.Unlock()

	for _, b := range boxes {
		if b.Number != ann.PageNumber {
			continue
		}
		rect := anchorScreenRect(b, *ann.BoundingBox)
		viewH := float64(v.scroll.Size().Height)
		target := rect.Center().Y - viewH/2
		if target < 0 {
			target = 0
		}
		v.scroll.SetOffsetY(target)
		v.Refresh()
		return
	}
}

// ScrollToPage jumps to the top of a page.
func (v *View) ScrollToPage(pageNumber int) {
	v.mu.Lock()
	boxes := v.boxes
	v.mu.Unlock()

	for _, b := range boxes {
		if b.Number == pageNumber {
			v.scroll.SetOffsetY(b.ScreenRect.Y - pageGap*v.state.Zoom())
			v.Refresh()
			return
		}
	}
}

func (v *View) reload() {
	v.mu.Lock()
	v.inflight = map[int]bool{}
	v.mu.Unlock()
	v.engine = focus.NewEngine()
	v.relayout()
}

// relayout recomputes the page boxes for the current document and zoom.
func (v *View) relayout() {
	doc := v.state.Document()

	var sizes []geometry.Size
	if doc != nil {
		sizes = make([]geometry.Size, doc.PageCount())
		for i := range sizes {
			sizes[i] = doc.PageSize(i + 1)
		}
	}

	boxes, total := computeLayout(sizes, v.state.Zoom(), float64(v.scroll.Size().Width))

	v.mu.Lock()
	v.boxes = boxes
	v.contentSize = total
	v.mu.Unlock()

	v.tracker.SetPages(pageLayouts(boxes))

	size := fyne.NewSize(float32(total.Width), float32(total.Height))
	fyne.Do(func() {
		v.raster.SetMinSize(size)
		v.raster.Resize(size)
		v.content.Resize(size)
		v.scroll.Refresh()
		v.Refresh()
	})
}

// setZoomAboutPoint applies a zoom step keeping the content under the
// cursor stationary. anchor is in viewport coordinates.
func (v *View) setZoomAboutPoint(newZoom float64, anchor geometry.Point2D) {
	oldZoom := v.state.Zoom()
	newZoom = coords.ClampZoom(newZoom)
	if oldZoom == newZoom {
		return
	}

	offset := v.scroll.Offset()
	scroll := geometry.Point2D{X: float64(offset.X), Y: float64(offset.Y)}
	next := coords.ZoomAboutPoint(oldZoom, newZoom, anchor, scroll)

	v.state.SetZoom(newZoom) // triggers relayout
	v.scroll.SetOffset(fyne.NewPos(float32(next.X), float32(next.Y)))
	v.Refresh()
}

// Refresh redraws the raster.
func (v *View) Refresh() {
	v.raster.Refresh()
	v.BaseWidget.Refresh()
}

// CreateRenderer implements fyne.Widget.
func (v *View) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.scroll)
}

// draw renders the visible pages and the overlay. Fyne calls this with the
// full content extent.
func (v *View) draw(w, h int) image.Image {
	output := image.NewRGBA(image.Rect(0, 0, w, h))
	// neutral reading background
	for i := 0; i < len(output.Pix); i += 4 {
		output.Pix[i] = 0x3A
		output.Pix[i+1] = 0x3A
		output.Pix[i+2] = 0x3E
		output.Pix[i+3] = 0xFF
	}

	doc := v.state.Document()
	if doc == nil {
		return output
	}

	v.mu.Lock()
	boxes := v.boxes
	dragging := v.dragging
	dragStart, dragEnd := v.dragStart, v.dragEnd
	v.mu.Unlock()

	offset := v.scroll.Offset()
	viewH := float64(v.scroll.Size().Height)
	visible := geometry.Rect{
		X: 0, Y: float64(offset.Y),
		Width: float64(w), Height: viewH,
	}

	for _, b := range boxes {
		if !b.ScreenRect.Intersects(visible) {
			continue
		}
		v.blitPage(output, doc, b)
	}

	frame := v.buildFrame(boxes, visible)
	if dragging {
		r := dragRectFrom(dragStart, dragEnd)
		frame.DragRect = &r
	}
	overlay.Draw(output, frame)

	v.updateViewport(boxes, float64(offset.Y), viewH)
	return output
}

// blitPage draws one page bitmap (or a white placeholder while it renders)
// into content space.
func (v *View) blitPage(output *image.RGBA, doc *pdfdoc.Document, b PageBox) {
	dst := image.Rect(
		int(b.ScreenRect.X), int(b.ScreenRect.Y),
		int(b.ScreenRect.X+b.ScreenRect.Width), int(b.ScreenRect.Y+b.ScreenRect.Height))

	bm := doc.CachedBitmap(b.Number)
	if bm == nil {
		xdraw.Draw(output, dst, image.White, image.Point{}, xdraw.Src)
		v.requestRender(doc, b.Number)
		return
	}
	xdraw.ApproxBiLinear.Scale(output, dst, bm.Image, bm.Image.Bounds(), xdraw.Src, nil)
}

// requestRender fetches a page bitmap in the background, once.
func (v *View) requestRender(doc *pdfdoc.Document, pageNumber int) {
	v.mu.Lock()
	if v.inflight[pageNumber] {
		v.mu.Unlock()
		return
	}
	v.inflight[pageNumber] = true
	v.mu.Unlock()

	go func() {
		_, err := doc.RenderPage(context.Background(), pageNumber)

		v.mu.Lock()
		delete(v.inflight, pageNumber)
		v.mu.Unlock()

		if err != nil {
			log.Warn().Err(err).Int("page", pageNumber).Msg("page render failed")
			return
		}
		fyne.Do(v.Refresh)
	}()
}

// buildFrame assembles markers, the focus arrow, and ink strokes for the
// overlay renderer.
func (v *View) buildFrame(boxes []PageBox, visible geometry.Rect) overlay.Frame {
	var frame overlay.Frame
	focusedID := v.engine.FocusedID()

	v.mu.Lock()
	inVisibleSet := make(map[string]bool, len(v.visibleIDs))
	for _, id := range v.visibleIDs {
		inVisibleSet[id] = true
	}
	v.mu.Unlock()

	byPage := map[int]PageBox{}
	for _, b := range boxes {
		byPage[b.Number] = b
	}

	for _, ann := range v.state.Store.Annotations() {
		if !ann.RendersOverlay() {
			continue
		}
		box, ok := byPage[ann.PageNumber]
		if !ok {
			continue
		}
		rect := anchorScreenRect(box, *ann.BoundingBox)
		marker := overlay.Marker{
			ID:         ann.ID,
			ScreenRect: rect,
			Focused:    ann.ID == focusedID,
		}
		if ann.Kind() == annotation.KindTextSelection {
			marker.Badge = "T"
		}
		frame.Markers = append(frame.Markers, marker)

		// Arrows connect the visible set to their side list rows, and the
		// focused anchor to the panel edge when no row target is known.
		targetY, haveRow := 0.0, false
		if v.ArrowTargetY != nil && inVisibleSet[ann.ID] {
			targetY, haveRow = v.ArrowTargetY(ann.ID)
		}
		switch {
		case haveRow:
			target := geometry.Rect{
				X:      visible.X + visible.Width - 4,
				Y:      visible.Y + targetY - 20,
				Width:  4,
				Height: 40,
			}
			if path, ok := focus.ArrowPath(rect, target); ok {
				frame.Arrows = append(frame.Arrows, path)
			}
		case marker.Focused:
			target := geometry.Rect{
				X:      visible.X + visible.Width - 4,
				Y:      visible.Y + visible.Height/2 - 20,
				Width:  4,
				Height: 40,
			}
			if path, ok := focus.ArrowPath(rect, target); ok {
				frame.Arrows = append(frame.Arrows, path)
			}
		}
	}

	for _, note := range v.state.Store.Notes() {
		box, ok := byPage[note.PageNumber]
		if !ok || note.ContentType != annotation.ContentDrawing {
			continue
		}
		strokes, err := note.Strokes()
		if err != nil {
			continue
		}
		for _, stroke := range strokes {
			pts := make([]geometry.Point2D, len(stroke.Points))
			for i, sp := range stroke.Points {
				pts[i] = geometry.Point2D{
					X: box.ScreenRect.X + sp.X*box.ScreenRect.Width,
					Y: box.ScreenRect.Y + sp.Y*box.ScreenRect.Height,
				}
			}
			frame.Inks = append(frame.Inks, overlay.Ink{
				Points: overlay.SmoothStroke(pts),
				Width:  2,
			})
		}
	}

	return frame
}

// updateViewport feeds the tracker and focus engine from the current scroll
// position.
func (v *View) updateViewport(boxes []PageBox, scrollY, viewH float64) {
	v.tracker.Update(scrollY, viewH)
	v.state.SetCurrentPage(v.tracker.CurrentPage())

	byPage := map[int]PageBox{}
	for _, b := range boxes {
		byPage[b.Number] = b
	}

	var anchors []viewport.Anchor
	for _, ann := range v.state.Store.Annotations() {
		if !ann.RendersOverlay() {
			continue
		}
		box, ok := byPage[ann.PageNumber]
		if !ok {
			continue
		}
		anchors = append(anchors, viewport.Anchor{
			ID:   ann.ID,
			Rect: anchorScreenRect(box, *ann.BoundingBox),
		})
	}

	decision := v.engine.Update(v.tracker.Metrics(anchors), viewH)

	ids := make([]string, len(decision.Visible))
	for i, r := range decision.Visible {
		ids[i] = r.ID
	}
	v.mu.Lock()
	v.visibleIDs = ids
	v.mu.Unlock()

	if v.OnDecision != nil && (decision.Action != focus.ActionNone || decision.MembershipChanged) {
		v.OnDecision(decision)
	}
}

func dragRectFrom(a, b geometry.Point2D) geometry.Rect {
	x1, x2 := a.X, b.X
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	y1, y2 := a.Y, b.Y
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return geometry.Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
