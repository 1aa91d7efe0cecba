package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkukic/margo/pkg/geometry"
)

func newTestAnnotation(id string, createdAt string) *Annotation {
	box := geometry.NewRect(0.1, 0.1, 0.2, 0.1)
	return &Annotation{
		ID:          id,
		PageNumber:  1,
		CreatedAt:   createdAt,
		BoundingBox: &box,
		ImageBase64: "aGk=",
	}
}

func TestStoreAnnotationCRUD(t *testing.T) {
	s := NewStore()

	var changed []string
	s.On(EventAnnotationsChanged, func(id string) { changed = append(changed, id) })

	s.PutAnnotation(newTestAnnotation("ann_b", "2026-08-01T10:00:00Z"))
	s.PutAnnotation(newTestAnnotation("ann_a", "2026-08-01T09:00:00Z"))

	list := s.Annotations()
	require.Len(t, list, 2)
	assert.Equal(t, "ann_a", list[0].ID, "listing is ordered by creation time")

	assert.True(t, s.DeleteAnnotation("ann_b"))
	assert.False(t, s.DeleteAnnotation("ann_b"))
	assert.Nil(t, s.Annotation("ann_b"))

	assert.Equal(t, []string{"ann_b", "ann_a", "ann_b"}, changed)
}

func TestStoreLoadReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.PutAnnotation(newTestAnnotation("ann_old", "2026-08-01T08:00:00Z"))

	file := NewFile("/docs/other.pdf")
	file.Annotations["ann_new"] = newTestAnnotation("ann_new", "2026-08-01T10:00:00Z")

	var loaded string
	s.On(EventLoaded, func(id string) { loaded = id })
	s.Load("/docs/other.pdf", file)

	assert.Equal(t, "/docs/other.pdf", loaded)
	assert.Nil(t, s.Annotation("ann_old"))
	assert.NotNil(t, s.Annotation("ann_new"))

	// Loading nil clears the store.
	s.Load("/docs/fresh.pdf", nil)
	assert.Empty(t, s.Annotations())
	assert.Equal(t, "/docs/fresh.pdf", s.PDFPath())
}

func TestPendingMessageReconciliation(t *testing.T) {
	s := NewStore()
	s.PutAnnotation(newTestAnnotation("ann_1", "2026-08-01T10:00:00Z"))

	pending := NewUserMessage("what is this?", "")
	tempID := pending.ID
	require.True(t, s.AppendMessages("ann_1", pending))

	require.True(t, s.ReconcileMessage("ann_1", tempID, "msg_server_7"))

	a := s.Annotation("ann_1")
	require.Len(t, a.Messages, 1)
	assert.Equal(t, "msg_server_7", a.Messages[0].ID)
	assert.False(t, a.Messages[0].Pending)

	// The temporary identifier no longer matches anything.
	assert.False(t, s.ReconcileMessage("ann_1", tempID, "msg_other"))
}

func TestSequentialCompletionsAppendInCompletionOrder(t *testing.T) {
	s := NewStore()
	s.PutAnnotation(newTestAnnotation("ann_1", "2026-08-01T10:00:00Z"))

	// Two sends; the second request completes before the first.
	first := NewUserMessage("first question", "")
	second := NewUserMessage("second question", "")
	s.AppendMessages("ann_1", first)
	s.AppendMessages("ann_1", second)

	s.ReconcileMessage("ann_1", second.ID, "msg_u2")
	s.AppendMessages("ann_1", NewAssistantMessage("msg_a2", "second answer"))
	s.ReconcileMessage("ann_1", first.ID, "msg_u1")
	s.AppendMessages("ann_1", NewAssistantMessage("msg_a1", "first answer"))

	a := s.Annotation("ann_1")
	require.Len(t, a.Messages, 4)
	assert.Equal(t, "msg_a2", a.Messages[2].ID, "responses append in completion order")
	assert.Equal(t, "msg_a1", a.Messages[3].ID)
}

func TestEditAndDeleteMessage(t *testing.T) {
	s := NewStore()
	s.PutAnnotation(newTestAnnotation("ann_1", "2026-08-01T10:00:00Z"))
	s.AppendMessages("ann_1",
		&Message{ID: "m1", Role: RoleUser, Content: "typo"},
		&Message{ID: "m2", Role: RoleAssistant, Content: "answer"},
	)

	assert.True(t, s.EditMessage("ann_1", "m1", "fixed"))
	assert.Equal(t, "fixed", s.Annotation("ann_1").Message("m1").Content)
	assert.False(t, s.EditMessage("ann_1", "missing", "x"))

	assert.True(t, s.DeleteMessage("ann_1", "m2"))
	assert.Len(t, s.Annotation("ann_1").Messages, 1)
	assert.False(t, s.DeleteMessage("ann_1", "m2"))
}

func TestStoreNotes(t *testing.T) {
	s := NewStore()

	var events []string
	s.On(EventNotesChanged, func(id string) { events = append(events, id) })

	box := geometry.NewRect(0.2, 0.3, 0.1, 0.05)
	s.PutNote(&Note{
		ID:           "note_1",
		PageNumber:   2,
		CreatedAt:    "2026-08-01T10:00:00Z",
		SelectedText: "gradient descent",
		BoundingBox:  &box,
		ContentType:  ContentText,
	})

	assert.True(t, s.UpdateNote("note_1", "", "my thoughts", "Gradient notes"))
	n := s.Note("note_1")
	assert.Equal(t, "my thoughts", n.Content)
	assert.Equal(t, "Gradient notes", n.Title)
	assert.Equal(t, ContentText, n.ContentType, "empty content type leaves kind unchanged")

	assert.False(t, s.UpdateNote("missing", "", "x", ""))
	assert.True(t, s.DeleteNote("note_1"))
	assert.Equal(t, []string{"note_1", "note_1", "note_1"}, events)
}

func TestSnapshot(t *testing.T) {
	s := NewStore()
	s.Load("/docs/p.pdf", nil)
	s.PutAnnotation(newTestAnnotation("ann_1", "2026-08-01T10:00:00Z"))

	snap := s.Snapshot()
	assert.Equal(t, "/docs/p.pdf", snap.PDFPath)
	assert.Len(t, snap.Annotations, 1)
	assert.Empty(t, snap.Notes)
}
