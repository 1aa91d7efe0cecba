// Package app provides application lifecycle management, configuration, and
// events.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/internal/backend"
	"github.com/pkukic/margo/internal/pdfdoc"
	"github.com/pkukic/margo/pkg/coords"
)

// CaptureMode is the armed selection gesture. Arming is one-shot: the next
// completed drag performs the capture and the mode reverts to ModeNone.
type CaptureMode int

const (
	ModeNone CaptureMode = iota
	ModeRegion
	ModeText
	ModeNote
)

// EventType identifies application events.
type EventType int

const (
	EventDocumentOpened EventType = iota
	EventDocumentClosed
	EventZoomChanged
	EventPageChanged
	EventCaptureModeChanged
	EventConnectivityChanged
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// State holds the open document, its annotation store, and view settings.
type State struct {
	mu sync.RWMutex

	Store   *annotation.Store
	Backend *backend.Client
	Monitor *backend.Monitor

	doc         *pdfdoc.Document
	zoom        float64
	currentPage int
	captureMode CaptureMode
	connected   bool

	listeners map[EventType][]EventListener
}

// NewState creates the application state around a backend client.
func NewState(client *backend.Client, monitor *backend.Monitor) *State {
	s := &State{
		Store:     annotation.NewStore(),
		Backend:   client,
		Monitor:   monitor,
		zoom:      1.0,
		listeners: make(map[EventType][]EventListener),
	}
	if monitor != nil {
		monitor.OnChange(s.setConnected)
	}
	return s
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// OpenDocument opens a PDF and loads its annotation sidecar from the
// collaborator. A missing sidecar starts an empty store.
func (s *State) OpenDocument(ctx context.Context, path string) error {
	doc, err := pdfdoc.Open(path, s.Backend)
	if err != nil {
		return err
	}

	file, err := s.Backend.LoadChat(ctx, path)
	if err != nil {
		doc.Close()
		return fmt.Errorf("load annotations: %w", err)
	}
	if file == nil {
		file = annotation.NewFile(path)
	}

	s.mu.Lock()
	old := s.doc
	s.doc = doc
	s.zoom = 1.0
	s.currentPage = 1
	s.captureMode = ModeNone
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}

	s.Store.Load(path, file)

	log.Info().Str("path", path).
		Int("annotations", len(file.Annotations)).
		Int("notes", len(file.Notes)).
		Msg("document ready")

	s.Emit(EventDocumentOpened, path)
	return nil
}

// CloseDocument closes the current document, if any.
func (s *State) CloseDocument() {
	s.mu.Lock()
	doc := s.doc
	s.doc = nil
	s.mu.Unlock()

	if doc == nil {
		return
	}
	doc.Close()
	s.Store.Load("", nil)
	s.Emit(EventDocumentClosed, nil)
}

// Document returns the open document, or nil.
func (s *State) Document() *pdfdoc.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Zoom returns the current zoom factor.
func (s *State) Zoom() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// SetZoom clamps and applies a zoom factor, emitting EventZoomChanged when
// the value actually changes.
func (s *State) SetZoom(zoom float64) {
	zoom = coords.ClampZoom(zoom)

	s.mu.Lock()
	if s.zoom == zoom {
		s.mu.Unlock()
		return
	}
	s.zoom = zoom
	s.mu.Unlock()

	s.Emit(EventZoomChanged, zoom)
}

// ZoomIn moves one step up the zoom scale.
func (s *State) ZoomIn() { s.SetZoom(coords.StepZoom(s.Zoom(), 1)) }

// ZoomOut moves one step down the zoom scale.
func (s *State) ZoomOut() { s.SetZoom(coords.StepZoom(s.Zoom(), -1)) }

// ResetZoom returns to 100%.
func (s *State) ResetZoom() { s.SetZoom(1.0) }

// CurrentPage returns the page the viewport currently rests on.
func (s *State) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentPage == 0 {
		return 1
	}
	return s.currentPage
}

// SetCurrentPage records the page derived from the scroll position.
func (s *State) SetCurrentPage(page int) {
	s.mu.Lock()
	if s.currentPage == page {
		s.mu.Unlock()
		return
	}
	s.currentPage = page
	s.mu.Unlock()

	s.Emit(EventPageChanged, page)
}

// CaptureMode returns the armed selection gesture.
func (s *State) CaptureMode() CaptureMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.captureMode
}

// ArmCapture arms a one-shot selection gesture.
func (s *State) ArmCapture(mode CaptureMode) {
	s.mu.Lock()
	if s.captureMode == mode {
		s.mu.Unlock()
		return
	}
	s.captureMode = mode
	s.mu.Unlock()

	s.Emit(EventCaptureModeChanged, mode)
}

// DisarmCapture reverts to no armed gesture. Called after a gesture
// completes or is cancelled.
func (s *State) DisarmCapture() { s.ArmCapture(ModeNone) }

// Connected reports collaborator reachability as last observed.
func (s *State) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// EnsureConnected fails fast before a collaborator round-trip would be
// attempted against a known-dead endpoint.
func (s *State) EnsureConnected() error {
	if !s.Connected() {
		return backend.ErrDisconnected
	}
	return nil
}

func (s *State) setConnected(connected bool) {
	s.mu.Lock()
	if s.connected == connected {
		s.mu.Unlock()
		return
	}
	s.connected = connected
	s.mu.Unlock()

	s.Emit(EventConnectivityChanged, connected)
}
