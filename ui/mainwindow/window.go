// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/phuslu/log"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/internal/app"
	"github.com/pkukic/margo/internal/backend"
	"github.com/pkukic/margo/internal/capture"
	"github.com/pkukic/margo/internal/focus"
	"github.com/pkukic/margo/internal/ocr"
	"github.com/pkukic/margo/internal/pdfdoc"
	"github.com/pkukic/margo/internal/version"
	"github.com/pkukic/margo/ui/panel"
	"github.com/pkukic/margo/ui/pdfview"
	"github.com/pkukic/margo/ui/prefs"
)

const (
	prefKeyLastDir = "lastDirectory"
	prefKeyLastPDF = "lastDocument"
	prefKeyWinW    = "windowWidth"
	prefKeyWinH    = "windowHeight"
	prefKeyReopen  = "reopenLastDocument"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app     fyne.App
	state   *app.State
	config  *app.Config
	prefs   *prefs.Prefs
	view    *pdfview.View
	panel   *panel.Panel
	sidebar *Sidebar
	ocr     *ocr.Engine

	statusBar *widget.Label
	connLabel *widget.Label
	pageLabel *widget.Label
	zoomLabel *widget.Label
}

// New creates the main window and wires the view, side list and detail
// panel together.
func New(fyneApp fyne.App, state *app.State, cfg *app.Config) *MainWindow {
	win := fyneApp.NewWindow("Margo")

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		config: cfg,
		prefs:  prefs.Load(),
	}

	if cfg.OCR.Enabled {
		engine, err := ocr.NewEngine()
		if err != nil {
			log.Warn().Err(err).Msg("ocr unavailable")
		} else {
			mw.ocr = engine
		}
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()
	mw.setupKeyTracking()
	mw.restoreSession()

	return mw
}

func (mw *MainWindow) setupUI() {
	mw.view = pdfview.NewView(mw.state)

	ctrl := panel.NewController(mw.state.Store, mw.state.Backend)
	mw.panel = panel.NewPanel(mw.state, ctrl)
	mw.panel.SetWindow(mw.Window)
	mw.panel.OnPinChanged = func(pinned bool) {
		mw.view.Engine().SetPinned(pinned)
	}
	mw.panel.OnClosed = func() {
		mw.view.Engine().NotePanelClosed()
		mw.sidebar.SetFocused("")
	}

	mw.sidebar = NewSidebar(mw.state, mw.view, mw.panel)
	mw.sidebar.SetWindow(mw.Window)

	mw.view.OnRegionCaptured = mw.onRegionCaptured
	mw.view.OnNoteCaptured = mw.onNoteCaptured
	mw.view.OnTextCaptured = mw.onTextCaptured
	mw.view.OnDecision = mw.onDecision
	mw.view.OnAnchorTapped = mw.onAnchorTapped
	mw.view.OnLinkActivated = mw.onLinkActivated

	mw.statusBar = widget.NewLabel("Ready")
	mw.connLabel = widget.NewLabel("Backend: connecting...")
	mw.pageLabel = widget.NewLabel("")
	mw.zoomLabel = widget.NewLabel("100%")

	reconnectBtn := widget.NewButton("Reconnect", func() {
		mw.state.Monitor.CheckNow()
	})

	toolbar := mw.createToolbar()
	viewArea := container.NewBorder(toolbar, nil, nil, nil, mw.view.Container())

	panelWrap := mw.panel.Container()
	center := container.NewBorder(nil, nil, nil, panelWrap, viewArea)

	split := container.NewHSplit(mw.sidebar.Container(), center)
	split.SetOffset(0.22)

	statusRow := container.NewHBox(
		mw.connLabel, reconnectBtn,
		widget.NewSeparator(),
		mw.pageLabel,
		widget.NewSeparator(),
		mw.zoomLabel,
		widget.NewSeparator(),
		mw.statusBar,
	)

	mw.SetContent(container.NewBorder(nil, container.NewPadded(statusRow), nil, nil, split))

	w := mw.prefs.FloatWithFallback(prefKeyWinW, 1280)
	h := mw.prefs.FloatWithFallback(prefKeyWinH, 900)
	mw.Resize(fyne.NewSize(float32(w), float32(h)))
	mw.SetOnClosed(mw.saveSession)
}

func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	zoomOutBtn := widget.NewButton("-", mw.state.ZoomOut)
	zoomInBtn := widget.NewButton("+", mw.state.ZoomIn)
	resetBtn := widget.NewButton("100%", mw.state.ResetZoom)

	regionBtn := widget.NewButton("Capture Region", func() {
		mw.armCapture(app.ModeRegion, "Drag a region to annotate")
	})
	textBtn := widget.NewButton("Select Text", func() {
		mw.armCapture(app.ModeText, "Drag across text to select it")
	})
	noteBtn := widget.NewButton("Add Note", func() {
		mw.armCapture(app.ModeNote, "Drag a region to attach a note")
	})

	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		zoomOutBtn,
		zoomInBtn,
		resetBtn,
		widget.NewSeparator(),
		regionBtn,
		textBtn,
		noteBtn,
	)
}

func (mw *MainWindow) armCapture(mode app.CaptureMode, hint string) {
	if mw.state.Document() == nil {
		mw.updateStatus("Open a PDF first")
		return
	}
	mw.state.ArmCapture(mode)
	mw.updateStatus(hint)
}

func (mw *MainWindow) setupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open PDF...", mw.onOpenPDF),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Save Annotations", mw.onSaveAnnotations),
		fyne.NewMenuItem("Close Document", mw.onCloseDocument),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { mw.app.Quit() }),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Preferences...", mw.onPreferences),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", mw.state.ZoomIn),
		fyne.NewMenuItem("Zoom Out", mw.state.ZoomOut),
		fyne.NewMenuItem("Reset Zoom", mw.state.ResetZoom),
	)

	captureMenu := fyne.NewMenu("Capture",
		fyne.NewMenuItem("Capture Region", func() {
			mw.armCapture(app.ModeRegion, "Drag a region to annotate")
		}),
		fyne.NewMenuItem("Select Text", func() {
			mw.armCapture(app.ModeText, "Drag across text to select it")
		}),
		fyne.NewMenuItem("Add Note", func() {
			mw.armCapture(app.ModeNote, "Drag a region to attach a note")
		}),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, captureMenu, helpMenu))
}

func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventDocumentOpened, func(data interface{}) {
		fyne.Do(func() {
			if path, ok := data.(string); ok {
				mw.SetTitle("Margo - " + filepath.Base(path))
				mw.updateStatus("Opened " + path)
				mw.prefs.SetString(prefKeyLastPDF, path)
			}
			mw.sidebar.Rebuild()
		})
	})

	mw.state.On(app.EventDocumentClosed, func(interface{}) {
		fyne.Do(func() {
			mw.SetTitle("Margo")
			mw.panel.Hide()
			mw.sidebar.Rebuild()
			mw.updateStatus("Document closed")
		})
	})

	mw.state.On(app.EventConnectivityChanged, func(data interface{}) {
		connected, _ := data.(bool)
		fyne.Do(func() {
			if connected {
				mw.connLabel.SetText("Backend: connected")
			} else {
				mw.connLabel.SetText("Backend: offline")
			}
		})
	})

	mw.state.On(app.EventPageChanged, func(data interface{}) {
		page, _ := data.(int)
		doc := mw.state.Document()
		if doc == nil {
			return
		}
		fyne.Do(func() {
			mw.pageLabel.SetText(fmt.Sprintf("Page %d / %d", page, doc.PageCount()))
		})
	})

	mw.state.On(app.EventZoomChanged, func(data interface{}) {
		zoom, _ := data.(float64)
		fyne.Do(func() {
			mw.zoomLabel.SetText(fmt.Sprintf("%.0f%%", zoom*100))
		})
	})
}

// setupKeyTracking feeds Ctrl press state to the view so the wheel can zoom.
func (mw *MainWindow) setupKeyTracking() {
	deskCanvas, ok := mw.Canvas().(desktop.Canvas)
	if !ok {
		return
	}
	deskCanvas.SetOnKeyDown(func(ev *fyne.KeyEvent) {
		if isControlKey(ev.Name) {
			mw.view.SetCtrlHeld(true)
		}
	})
	deskCanvas.SetOnKeyUp(func(ev *fyne.KeyEvent) {
		if isControlKey(ev.Name) {
			mw.view.SetCtrlHeld(false)
		}
	})
}

func isControlKey(name fyne.KeyName) bool {
	return name == desktop.KeyControlLeft || name == desktop.KeyControlRight
}

// Capture and focus callbacks

func (mw *MainWindow) onRegionCaptured(region capture.Region, bitmap image.Image) {
	encoded, err := capture.EncodePNGBase64(bitmap)
	if err != nil {
		log.Warn().Err(err).Msg("capture encode failed")
		return
	}

	box := region.Normalized
	ann := &annotation.Annotation{
		ID:          annotation.NewAnnotationID(),
		PageNumber:  region.PageNumber,
		CreatedAt:   annotation.Timestamp(),
		BoundingBox: &box,
		ImageBase64: encoded,
	}
	if mw.ocr != nil {
		if text, err := mw.ocr.RecognizeImage(bitmap); err == nil {
			ann.SelectedText = text
		}
	}

	mw.state.Store.PutAnnotation(ann)
	mw.view.Engine().NotePanelOpened(ann.ID, false)
	mw.panel.Show(ann.ID)
	mw.sidebar.SetFocused(ann.ID)
	mw.updateStatus("Region captured")
}

func (mw *MainWindow) onTextCaptured(span capture.TextSpan) {
	box := span.Normalized
	ann := &annotation.Annotation{
		ID:           annotation.NewAnnotationID(),
		PageNumber:   span.PageNumber,
		CreatedAt:    annotation.Timestamp(),
		BoundingBox:  &box,
		SelectedText: span.Text,
	}

	mw.state.Store.PutAnnotation(ann)
	mw.view.Engine().NotePanelOpened(ann.ID, false)
	mw.panel.Show(ann.ID)
	mw.sidebar.SetFocused(ann.ID)
	mw.updateStatus("Text selected")
}

func (mw *MainWindow) onNoteCaptured(region capture.Region, _ image.Image) {
	doc := mw.state.Document()
	if doc == nil {
		return
	}
	selected := doc.TextInRect(region.PageNumber, region.Normalized)

	entry := widget.NewMultiLineEntry()
	entry.SetPlaceHolder("Write a note (markdown)...")
	entry.Wrapping = fyne.TextWrapWord

	dialog.ShowCustomConfirm("New Note", "Create", "Cancel",
		container.NewVScroll(entry), func(ok bool) {
			if !ok {
				return
			}
			mw.createNote(region, selected, entry.Text)
		}, mw.Window)
}

func (mw *MainWindow) createNote(region capture.Region, selected, content string) {
	if err := mw.state.EnsureConnected(); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	box := region.Normalized
	req := backend.CreateNoteRequest{
		PDFPath:      mw.state.Store.PDFPath(),
		NoteID:       annotation.NewNoteID(),
		PageNumber:   region.PageNumber,
		SelectedText: selected,
		BoundingBox:  &box,
		ContentType:  annotation.ContentText,
		Content:      content,
	}

	go func() {
		note, err := mw.state.Backend.CreateNote(context.Background(), req)
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, mw.Window)
				return
			}
			if note == nil {
				note = &annotation.Note{
					ID:           req.NoteID,
					PageNumber:   req.PageNumber,
					CreatedAt:    annotation.Timestamp(),
					SelectedText: req.SelectedText,
					BoundingBox:  req.BoundingBox,
					ContentType:  req.ContentType,
					Content:      req.Content,
				}
			}
			mw.state.Store.PutNote(note)
			mw.updateStatus("Note created")
		})
	}()
}

func (mw *MainWindow) onDecision(d focus.Decision) {
	fyne.Do(func() {
		mw.sidebar.ApplyDecision(d)
		switch d.Action {
		case focus.ActionOpen, focus.ActionSwitch:
			mw.panel.Show(d.Target)
			mw.sidebar.SetFocused(d.Target)
		case focus.ActionClose:
			mw.panel.Hide()
			mw.sidebar.SetFocused("")
		}
	})
}

func (mw *MainWindow) onAnchorTapped(id string) {
	mw.view.Engine().NotePanelOpened(id, false)
	mw.panel.Show(id)
	mw.sidebar.SetFocused(id)
}

func (mw *MainWindow) onLinkActivated(link pdfdoc.Link) {
	if link.URI != "" {
		u, err := url.Parse(link.URI)
		if err != nil {
			log.Debug().Str("uri", link.URI).Msg("unparseable link")
			return
		}
		if err := mw.app.OpenURL(u); err != nil {
			log.Warn().Err(err).Str("uri", link.URI).Msg("open link failed")
		}
		return
	}
	if link.PageNumber > 0 {
		mw.view.ScrollToPage(link.PageNumber)
	}
}

// Menu action handlers

func (mw *MainWindow) onOpenPDF() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		mw.openDocument(path)
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".pdf"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// OpenPDF opens a document given on the command line.
func (mw *MainWindow) OpenPDF(path string) {
	mw.saveLastDir(path)
	mw.openDocument(path)
}

func (mw *MainWindow) openDocument(path string) {
	mw.updateStatus("Opening " + filepath.Base(path) + "...")
	go func() {
		err := mw.state.OpenDocument(context.Background(), path)
		if err != nil {
			fyne.Do(func() {
				dialog.ShowError(err, mw.Window)
				mw.updateStatus("Open failed")
			})
		}
	}()
}

func (mw *MainWindow) onSaveAnnotations() {
	path := mw.state.Store.PDFPath()
	if path == "" {
		mw.updateStatus("Nothing to save")
		return
	}
	if err := mw.state.EnsureConnected(); err != nil {
		dialog.ShowError(err, mw.Window)
		return
	}
	snapshot := mw.state.Store.Snapshot()
	go func() {
		err := mw.state.Backend.SaveChat(context.Background(), path, snapshot)
		fyne.Do(func() {
			if err != nil {
				dialog.ShowError(err, mw.Window)
				return
			}
			mw.updateStatus("Annotations saved")
		})
	}()
}

func (mw *MainWindow) onCloseDocument() {
	mw.state.CloseDocument()
}

func (mw *MainWindow) onPreferences() {
	urlEntry := widget.NewEntry()
	urlEntry.SetText(mw.config.Backend.URL)
	ocrCheck := widget.NewCheck("Run OCR on captured regions", nil)
	ocrCheck.SetChecked(mw.config.OCR.Enabled)
	reopenCheck := widget.NewCheck("Reopen last document on startup", nil)
	reopenCheck.SetChecked(mw.prefs.Bool(prefKeyReopen, true))

	form := []*widget.FormItem{
		widget.NewFormItem("Backend URL", urlEntry),
		widget.NewFormItem("OCR", ocrCheck),
		widget.NewFormItem("Startup", reopenCheck),
	}

	dialog.ShowForm("Preferences", "Save", "Cancel", form, func(ok bool) {
		if !ok {
			return
		}
		mw.config.Backend.URL = urlEntry.Text
		mw.config.OCR.Enabled = ocrCheck.Checked
		mw.prefs.SetBool(prefKeyReopen, reopenCheck.Checked)
		if err := mw.config.Save(); err != nil {
			dialog.ShowError(err, mw.Window)
			return
		}
		if err := mw.prefs.Save(); err != nil {
			log.Warn().Err(err).Msg("save preferences failed")
		}
		mw.updateStatus("Preferences saved; backend changes apply on restart")
	}, mw.Window)
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Margo",
		fmt.Sprintf("Margo v%s\n\n"+
			"PDF annotation with a conversational assistant.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}

// Session helpers

func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	uri := storage.NewFileURI(path)
	listable, err := storage.ListerForURI(uri)
	if err != nil {
		return nil
	}
	return listable
}

func (mw *MainWindow) saveLastDir(filePath string) {
	mw.prefs.SetString(prefKeyLastDir, filepath.Dir(filePath))
}

func (mw *MainWindow) restoreSession() {
	if !mw.prefs.Bool(prefKeyReopen, true) {
		return
	}
	if path := mw.prefs.String(prefKeyLastPDF); path != "" {
		mw.openDocument(path)
	}
}

func (mw *MainWindow) saveSession() {
	size := mw.Canvas().Size()
	mw.prefs.SetFloat(prefKeyWinW, float64(size.Width))
	mw.prefs.SetFloat(prefKeyWinH, float64(size.Height))
	if err := mw.prefs.Save(); err != nil {
		log.Warn().Err(err).Msg("save preferences failed")
	}
	if mw.ocr != nil {
		if err := mw.ocr.Close(); err != nil {
			log.Debug().Err(err).Msg("ocr close")
		}
	}
}
