package mainwindow

import (
	"context"
	"fmt"
	"image/color"
	"sync"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/internal/app"
	"github.com/pkukic/margo/internal/backend"
	"github.com/pkukic/margo/internal/focus"
	"github.com/pkukic/margo/ui/overlay"
	"github.com/pkukic/margo/ui/panel"
	"github.com/pkukic/margo/ui/pdfview"
)

var (
	focusedRowColor  = color.NRGBA{R: 0xE8, G: 0x71, B: 0x1A, A: 0x40}
	visibleRowColor  = color.NRGBA{R: 0x1A, G: 0x73, B: 0xE8, A: 0x30}
	transparentColor = color.NRGBA{}
)

// Sidebar lists the document's annotations and notes. Rows in the visible
// set are highlighted; the focused row carries the accent color and is the
// target of the connector arrow.
type Sidebar struct {
	state *app.State
	view  *pdfview.View
	panel *panel.Panel
	win   fyne.Window

	tabs       *container.AppTabs
	annBox     *fyne.Container
	annScroll  *container.Scroll
	noteBox    *fyne.Container
	noteScroll *container.Scroll

	mu       sync.Mutex
	rowByID  map[string]fyne.CanvasObject
	visible  map[string]bool
	focused  string
}

// NewSidebar creates the side list bound to the store.
func NewSidebar(state *app.State, view *pdfview.View, detail *panel.Panel) *Sidebar {
	sb := &Sidebar{
		state:   state,
		view:    view,
		panel:   detail,
		annBox:  container.NewVBox(),
		noteBox: container.NewVBox(),
		rowByID: map[string]fyne.CanvasObject{},
		visible: map[string]bool{},
	}

	sb.annScroll = container.NewVScroll(sb.annBox)
	sb.noteScroll = container.NewVScroll(sb.noteBox)
	sb.tabs = container.NewAppTabs(
		container.NewTabItem("Annotations", sb.annScroll),
		container.NewTabItem("Notes", sb.noteScroll),
	)

	for _, ev := range []annotation.EventType{
		annotation.EventLoaded,
		annotation.EventAnnotationsChanged,
		annotation.EventNotesChanged,
		annotation.EventTitleChanged,
		annotation.EventMessagesChanged,
	} {
		state.Store.On(ev, func(string) { fyne.Do(sb.Rebuild) })
	}

	view.ArrowTargetY = sb.rowCenterY

	return sb
}

// Container returns the sidebar's root object.
func (sb *Sidebar) Container() fyne.CanvasObject {
	return sb.tabs
}

// SetWindow sets the parent window for dialogs.
func (sb *Sidebar) SetWindow(w fyne.Window) {
	sb.win = w
}

// ApplyDecision updates row highlighting from a focus pass.
func (sb *Sidebar) ApplyDecision(d focus.Decision) {
	sb.mu.Lock()
	sb.visible = make(map[string]bool, len(d.Visible))
	for _, r := range d.Visible {
		sb.visible[r.ID] = true
	}
	sb.mu.Unlock()
	sb.Rebuild()
}

// SetFocused marks the row backing the open detail panel.
func (sb *Sidebar) SetFocused(id string) {
	sb.mu.Lock()
	sb.focused = id
	sb.mu.Unlock()
	sb.Rebuild()
}

// rowCenterY reports the vertical center of an annotation row relative to
// the sidebar viewport, for connector arrow targeting.
func (sb *Sidebar) rowCenterY(id string) (float64, bool) {
	sb.mu.Lock()
	row, ok := sb.rowByID[id]
	sb.mu.Unlock()
	if !ok || sb.tabs.SelectedIndex() != 0 {
		return 0, false
	}
	y := float64(row.Position().Y) + float64(row.Size().Height)/2 - float64(sb.annScroll.Offset.Y)
	if y < 0 || y > float64(sb.annScroll.Size().Height) {
		return 0, false
	}
	return y, true
}

// Rebuild repopulates both lists from the store.
func (sb *Sidebar) Rebuild() {
	sb.mu.Lock()
	visible := sb.visible
	focused := sb.focused
	rowByID := map[string]fyne.CanvasObject{}
	sb.mu.Unlock()

	sb.annBox.RemoveAll()
	for _, ann := range sb.state.Store.Annotations() {
		row := sb.annotationRow(ann, visible[ann.ID], ann.ID == focused)
		rowByID[ann.ID] = row
		sb.annBox.Add(row)
	}
	if len(sb.annBox.Objects) == 0 {
		sb.annBox.Add(widget.NewLabel("No annotations yet.\nDrag a region or select text to start."))
	}

	sb.noteBox.RemoveAll()
	for _, n := range sb.state.Store.Notes() {
		sb.noteBox.Add(sb.noteRow(n))
	}
	if len(sb.noteBox.Objects) == 0 {
		sb.noteBox.Add(widget.NewLabel("No notes yet."))
	}

	sb.mu.Lock()
	sb.rowByID = rowByID
	sb.mu.Unlock()

	sb.annBox.Refresh()
	sb.noteBox.Refresh()
}

func (sb *Sidebar) annotationRow(ann *annotation.Annotation, inVisibleSet, focused bool) fyne.CanvasObject {
	title := ann.Title
	if title == "" {
		title = fmt.Sprintf("Page %d", ann.PageNumber)
	}
	titleLabel := widget.NewLabel(title)
	titleLabel.TextStyle = fyne.TextStyle{Bold: true}
	titleLabel.Truncation = fyne.TextTruncateEllipsis

	var snippet string
	if n := len(ann.Messages); n > 0 {
		snippet = overlay.Snippet(ann.Messages[n-1].Content)
	} else if ann.SelectedText != "" {
		snippet = overlay.Snippet(ann.SelectedText)
	}
	snippetLabel := widget.NewLabel(snippet)
	snippetLabel.Wrapping = fyne.TextWrapWord

	content := container.NewVBox(titleLabel, snippetLabel)

	var bg *fynecanvas.Rectangle
	switch {
	case focused:
		bg = fynecanvas.NewRectangle(focusedRowColor)
	case inVisibleSet:
		bg = fynecanvas.NewRectangle(visibleRowColor)
	default:
		bg = fynecanvas.NewRectangle(transparentColor)
	}

	annID := ann.ID
	return newTappableRow(container.NewStack(bg, content), func() {
		sb.openAnnotation(annID)
	})
}

func (sb *Sidebar) openAnnotation(id string) {
	ann := sb.state.Store.Annotation(id)
	if ann == nil {
		return
	}
	sb.view.ScrollToAnchor(ann)
	sb.view.Engine().NotePanelOpened(id, false)
	sb.panel.Show(id)
	sb.SetFocused(id)
}

func (sb *Sidebar) noteRow(n *annotation.Note) fyne.CanvasObject {
	title := n.Title
	if title == "" {
		title = fmt.Sprintf("Note on page %d", n.PageNumber)
	}
	titleLabel := widget.NewLabel(title)
	titleLabel.TextStyle = fyne.TextStyle{Bold: true}
	titleLabel.Truncation = fyne.TextTruncateEllipsis

	var snippet string
	if n.ContentType == annotation.ContentDrawing {
		snippet = "Pen drawing"
	} else {
		snippet = overlay.Snippet(n.Content)
	}
	snippetLabel := widget.NewLabel(snippet)
	snippetLabel.Wrapping = fyne.TextWrapWord

	noteID := n.ID
	return newTappableRow(container.NewVBox(titleLabel, snippetLabel), func() {
		sb.openNote(noteID)
	})
}

func (sb *Sidebar) openNote(id string) {
	n := sb.state.Store.Note(id)
	if n == nil {
		return
	}
	sb.view.ScrollToPage(n.PageNumber)
	if n.ContentType == annotation.ContentDrawing {
		return
	}

	entry := widget.NewMultiLineEntry()
	entry.SetText(n.Content)
	entry.Wrapping = fyne.TextWrapWord

	deleteBtn := widget.NewButton("Delete Note", func() {
		sb.deleteNote(id)
	})

	dialog.ShowCustomConfirm("Edit Note", "Save", "Cancel",
		container.NewBorder(nil, deleteBtn, nil, nil, container.NewVScroll(entry)),
		func(ok bool) {
			if !ok {
				return
			}
			sb.saveNote(id, entry.Text)
		}, sb.win)
}

func (sb *Sidebar) saveNote(id, content string) {
	req := backend.UpdateNoteRequest{
		PDFPath:       sb.state.Store.PDFPath(),
		NoteID:        id,
		ContentType:   annotation.ContentText,
		Content:       content,
		GenerateTitle: true,
	}
	go func() {
		resp, err := sb.state.Backend.UpdateNote(context.Background(), req)
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, sb.win)
				return
			}
			sb.state.Store.UpdateNote(id, annotation.ContentText, content, resp.Title)
		})
	}()
}

func (sb *Sidebar) deleteNote(id string) {
	go func() {
		err := sb.state.Backend.DeleteNote(context.Background(), sb.state.Store.PDFPath(), id)
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, sb.win)
				return
			}
			sb.state.Store.DeleteNote(id)
		})
	}()
}

// tappableRow wraps list row content with a tap handler.
type tappableRow struct {
	widget.BaseWidget
	content  fyne.CanvasObject
	onTapped func()
}

func newTappableRow(content fyne.CanvasObject, onTapped func()) *tappableRow {
	r := &tappableRow{content: content, onTapped: onTapped}
	r.ExtendBaseWidget(r)
	return r
}

func (r *tappableRow) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(r.content)
}

func (r *tappableRow) Tapped(*fyne.PointEvent) {
	if r.onTapped != nil {
		r.onTapped()
	}
}
