// Package annotation defines the annotation, note, and message records for an
// open document and the in-memory store that owns them.
package annotation

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pkukic/margo/pkg/geometry"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Note content kinds.
const (
	ContentText    = "text"
	ContentDrawing = "drawing"
)

// Kind discriminates how an annotation was captured.
type Kind int

const (
	KindUnknown Kind = iota
	KindScreenshot
	KindTextSelection
)

// NewAnnotationID generates a prefixed annotation identifier.
func NewAnnotationID() string { return "ann_" + uuid.New().String() }

// NewNoteID generates a prefixed note identifier.
func NewNoteID() string { return "note_" + uuid.New().String() }

// NewMessageID generates a prefixed message identifier.
func NewMessageID() string { return "msg_" + uuid.New().String() }

// Timestamp returns the current time in the sidecar's timestamp format.
// Timestamps are stored as strings so that sidecar files written by other
// tooling round-trip byte-for-byte.
func Timestamp() string {
	return time.Now().Format(time.RFC3339)
}

// Message is a single entry in an annotation's conversation.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	// ImageBase64 carries the captured region for user messages that
	// included a screenshot.
	ImageBase64 string `json:"image_base64,omitempty"`

	// Pending marks an optimistically appended message whose identifier has
	// not yet been reconciled with the server. Never persisted.
	Pending bool `json:"-"`
}

// NewUserMessage creates a pending user message with a temporary identifier.
func NewUserMessage(content, imageBase64 string) *Message {
	return &Message{
		ID:          NewMessageID(),
		Role:        RoleUser,
		Content:     content,
		Timestamp:   Timestamp(),
		ImageBase64: imageBase64,
		Pending:     true,
	}
}

// NewAssistantMessage creates a committed assistant message.
func NewAssistantMessage(id, content string) *Message {
	if id == "" {
		id = NewMessageID()
	}
	return &Message{
		ID:        id,
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: Timestamp(),
	}
}

// Annotation is a region of a page with an attached conversation.
// BoundingBox is in normalized-page space (fractions of the intrinsic page
// size).
type Annotation struct {
	ID           string         `json:"id"`
	PageNumber   int            `json:"page_number"`
	CreatedAt    string         `json:"created_at"`
	Title        string         `json:"title,omitempty"`
	BoundingBox  *geometry.Rect `json:"bounding_box,omitempty"`
	ImageBase64  string         `json:"image_base64,omitempty"`
	SelectedText string         `json:"selected_text,omitempty"`
	Messages     []*Message     `json:"messages"`
}

// Kind reports whether the annotation anchors a screenshot or a text
// selection. Records with neither are legacy entries.
func (a *Annotation) Kind() Kind {
	switch {
	case a.ImageBase64 != "":
		return KindScreenshot
	case a.SelectedText != "":
		return KindTextSelection
	default:
		return KindUnknown
	}
}

// RendersOverlay reports whether the annotation should place a marker on its
// page. Legacy records without a bounding box still appear in list views but
// never render an overlay.
func (a *Annotation) RendersOverlay() bool {
	return a.BoundingBox != nil
}

// Message returns the message with the given identifier, or nil.
func (a *Annotation) Message(id string) *Message {
	for _, m := range a.Messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// History returns the committed conversation as role/content pairs, the shape
// the ask endpoint expects for chat_history.
func (a *Annotation) History() []map[string]string {
	history := make([]map[string]string, 0, len(a.Messages))
	for _, m := range a.Messages {
		if m.Pending {
			continue
		}
		history = append(history, map[string]string{
			"role":    m.Role,
			"content": m.Content,
		})
	}
	return history
}

// StrokePoint is one sample of a pen stroke, in note-canvas-local pixels.
type StrokePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is an ordered polyline drawn with the note pen tool.
type Stroke struct {
	Points []StrokePoint `json:"points"`
}

// Note is a freeform annotation anchored to selected page text. Content is
// either markdown text or a serialized stroke list, per ContentType.
type Note struct {
	ID           string         `json:"id"`
	PageNumber   int            `json:"page_number"`
	CreatedAt    string         `json:"created_at"`
	Title        string         `json:"title,omitempty"`
	SelectedText string         `json:"selected_text"`
	BoundingBox  *geometry.Rect `json:"bounding_box,omitempty"`
	ContentType  string         `json:"content_type"`
	Content      string         `json:"content"`
}

// Strokes decodes the pen strokes of a drawing note.
func (n *Note) Strokes() ([]Stroke, error) {
	if n.ContentType != ContentDrawing {
		return nil, fmt.Errorf("note %s has content type %q, not %q", n.ID, n.ContentType, ContentDrawing)
	}
	if strings.TrimSpace(n.Content) == "" {
		return nil, nil
	}
	var strokes []Stroke
	if err := json.Unmarshal([]byte(n.Content), &strokes); err != nil {
		return nil, fmt.Errorf("decode strokes for note %s: %w", n.ID, err)
	}
	return strokes, nil
}

// EncodeStrokes serializes pen strokes into note content form.
func EncodeStrokes(strokes []Stroke) (string, error) {
	data, err := json.Marshal(strokes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// File is the sidecar document persisted next to a PDF: every annotation and
// note for that file, keyed by identifier.
type File struct {
	PDFPath     string                 `json:"pdf_path"`
	PDFName     string                 `json:"pdf_name"`
	CreatedAt   string                 `json:"created_at"`
	UpdatedAt   string                 `json:"updated_at"`
	Annotations map[string]*Annotation `json:"annotations"`
	Notes       map[string]*Note       `json:"notes"`
}

// NewFile creates an empty sidecar document for a PDF path.
func NewFile(pdfPath string) *File {
	now := Timestamp()
	name := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	return &File{
		PDFPath:     pdfPath,
		PDFName:     name,
		CreatedAt:   now,
		UpdatedAt:   now,
		Annotations: make(map[string]*Annotation),
		Notes:       make(map[string]*Note),
	}
}
