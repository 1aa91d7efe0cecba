package annotation

import (
	"sort"
	"sync"
)

// EventType identifies store change events.
type EventType int

const (
	EventLoaded EventType = iota
	EventAnnotationsChanged
	EventNotesChanged
	EventMessagesChanged
	EventTitleChanged
)

// EventListener is called when a store event occurs. The payload is the
// affected annotation or note identifier, or the PDF path for EventLoaded.
type EventListener func(id string)

// Store owns all annotation and note records for the currently open document.
// Records are discarded wholesale when a different document is opened. All
// mutation happens on the UI event loop; the mutex additionally guards reads
// from background goroutines (render fetches, request completions).
type Store struct {
	mu          sync.RWMutex
	pdfPath     string
	annotations map[string]*Annotation
	notes       map[string]*Note

	listeners map[EventType][]EventListener
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		annotations: make(map[string]*Annotation),
		notes:       make(map[string]*Note),
		listeners:   make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *Store) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

func (s *Store) emit(event EventType, id string) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(id)
	}
}

// Load replaces the store contents with the records of a sidecar document.
// A nil file clears the store (fresh document with no sidecar yet).
func (s *Store) Load(pdfPath string, file *File) {
	s.mu.Lock()
	s.pdfPath = pdfPath
	s.annotations = make(map[string]*Annotation)
	s.notes = make(map[string]*Note)
	if file != nil {
		for id, a := range file.Annotations {
			s.annotations[id] = a
		}
		for id, n := range file.Notes {
			s.notes[id] = n
		}
	}
	s.mu.Unlock()

	s.emit(EventLoaded, pdfPath)
}

// PDFPath returns the path of the document the store currently holds.
func (s *Store) PDFPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pdfPath
}

// Annotation returns the annotation with the given identifier, or nil.
func (s *Store) Annotation(id string) *Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.annotations[id]
}

// Note returns the note with the given identifier, or nil.
func (s *Store) Note(id string) *Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notes[id]
}

// Annotations returns all annotations ordered by creation time.
func (s *Store) Annotations() []*Annotation {
	s.mu.RLock()
	out := make([]*Annotation, 0, len(s.annotations))
	for _, a := range s.annotations {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Notes returns all notes ordered by creation time.
func (s *Store) Notes() []*Note {
	s.mu.RLock()
	out := make([]*Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, n)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PutAnnotation inserts or replaces an annotation.
func (s *Store) PutAnnotation(a *Annotation) {
	s.mu.Lock()
	s.annotations[a.ID] = a
	s.mu.Unlock()

	s.emit(EventAnnotationsChanged, a.ID)
}

// DeleteAnnotation removes an annotation. Returns false if it did not exist.
func (s *Store) DeleteAnnotation(id string) bool {
	s.mu.Lock()
	_, ok := s.annotations[id]
	delete(s.annotations, id)
	s.mu.Unlock()

	if ok {
		s.emit(EventAnnotationsChanged, id)
	}
	return ok
}

// AppendMessages adds messages to an annotation's conversation. Returns false
// if the annotation does not exist.
func (s *Store) AppendMessages(annotationID string, msgs ...*Message) bool {
	s.mu.Lock()
	a, ok := s.annotations[annotationID]
	if ok {
		a.Messages = append(a.Messages, msgs...)
	}
	s.mu.Unlock()

	if ok {
		s.emit(EventMessagesChanged, annotationID)
	}
	return ok
}

// ReconcileMessage swaps a pending message's temporary identifier for the
// server-assigned one and clears its pending flag. The message is matched by
// the temporary identifier, never by array position.
func (s *Store) ReconcileMessage(annotationID, tempID, serverID string) bool {
	s.mu.Lock()
	var reconciled bool
	if a, ok := s.annotations[annotationID]; ok {
		if m := a.Message(tempID); m != nil {
			if serverID != "" {
				m.ID = serverID
			}
			m.Pending = false
			reconciled = true
		}
	}
	s.mu.Unlock()

	if reconciled {
		s.emit(EventMessagesChanged, annotationID)
	}
	return reconciled
}

// EditMessage replaces a message's content. The caller must have confirmed
// the edit with the persistence collaborator first.
func (s *Store) EditMessage(annotationID, messageID, newContent string) bool {
	s.mu.Lock()
	var edited bool
	if a, ok := s.annotations[annotationID]; ok {
		if m := a.Message(messageID); m != nil {
			m.Content = newContent
			edited = true
		}
	}
	s.mu.Unlock()

	if edited {
		s.emit(EventMessagesChanged, annotationID)
	}
	return edited
}

// DeleteMessage removes a message from an annotation's conversation. The
// caller must have confirmed the deletion with the persistence collaborator
// first.
func (s *Store) DeleteMessage(annotationID, messageID string) bool {
	return s.deleteMessage(annotationID, messageID)
}

func (s *Store) deleteMessage(annotationID, messageID string) bool {
	s.mu.Lock()
	var deleted bool
	if a, ok := s.annotations[annotationID]; ok {
		kept := a.Messages[:0]
		for _, m := range a.Messages {
			if m.ID == messageID {
				deleted = true
				continue
			}
			kept = append(kept, m)
		}
		a.Messages = kept
	}
	s.mu.Unlock()

	if deleted {
		s.emit(EventMessagesChanged, annotationID)
	}
	return deleted
}

// SetAnnotationTitle stores a server-generated title.
func (s *Store) SetAnnotationTitle(id, title string) bool {
	s.mu.Lock()
	a, ok := s.annotations[id]
	if ok {
		a.Title = title
	}
	s.mu.Unlock()

	if ok {
		s.emit(EventTitleChanged, id)
	}
	return ok
}

// PutNote inserts or replaces a note.
func (s *Store) PutNote(n *Note) {
	s.mu.Lock()
	s.notes[n.ID] = n
	s.mu.Unlock()

	s.emit(EventNotesChanged, n.ID)
}

// UpdateNote replaces a note's content and optionally its title. Returns
// false if the note does not exist.
func (s *Store) UpdateNote(id, contentType, content, title string) bool {
	s.mu.Lock()
	n, ok := s.notes[id]
	if ok {
		if contentType != "" {
			n.ContentType = contentType
		}
		n.Content = content
		if title != "" {
			n.Title = title
		}
	}
	s.mu.Unlock()

	if ok {
		s.emit(EventNotesChanged, id)
	}
	return ok
}

// DeleteNote removes a note. Returns false if it did not exist.
func (s *Store) DeleteNote(id string) bool {
	s.mu.Lock()
	_, ok := s.notes[id]
	delete(s.notes, id)
	s.mu.Unlock()

	if ok {
		s.emit(EventNotesChanged, id)
	}
	return ok
}

// Snapshot assembles the current contents as a sidecar document for saving.
func (s *Store) Snapshot() *File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file := NewFile(s.pdfPath)
	for id, a := range s.annotations {
		file.Annotations[id] = a
	}
	for id, n := range s.notes {
		file.Notes[id] = n
	}
	return file
}
