package annotation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkukic/margo/pkg/geometry"
)

// sidecarFixture mirrors the layout written by the persistence collaborator.
const sidecarFixture = `{
  "pdf_path": "/papers/attention.pdf",
  "pdf_name": "attention",
  "created_at": "2026-08-01T10:00:00Z",
  "updated_at": "2026-08-02T11:30:00Z",
  "annotations": {
    "ann_1": {
      "id": "ann_1",
      "page_number": 3,
      "created_at": "2026-08-01T10:05:00Z",
      "title": "Scaled dot-product attention",
      "bounding_box": {"x": 0.1, "y": 0.2, "width": 0.5, "height": 0.12},
      "image_base64": "aGVsbG8=",
      "messages": [
        {"id": "msg_1", "role": "user", "content": "What is this figure?", "timestamp": "2026-08-01T10:05:01Z"},
        {"id": "msg_2", "role": "assistant", "content": "It shows $$QK^T/\\sqrt{d_k}$$.", "timestamp": "2026-08-01T10:05:05Z"}
      ]
    },
    "ann_legacy": {
      "id": "ann_legacy",
      "page_number": 1,
      "created_at": "2026-08-01T09:00:00Z",
      "image_base64": "aGVsbG8=",
      "messages": []
    }
  },
  "notes": {
    "note_1": {
      "id": "note_1",
      "page_number": 2,
      "created_at": "2026-08-01T10:10:00Z",
      "selected_text": "multi-head attention",
      "bounding_box": {"x": 0.3, "y": 0.4, "width": 0.2, "height": 0.03},
      "content_type": "text",
      "content": "Revisit this definition."
    }
  }
}`

func TestFileRoundTrip(t *testing.T) {
	var file File
	require.NoError(t, json.Unmarshal([]byte(sidecarFixture), &file))

	assert.Equal(t, "/papers/attention.pdf", file.PDFPath)
	assert.Len(t, file.Annotations, 2)
	assert.Len(t, file.Notes, 1)

	a := file.Annotations["ann_1"]
	require.NotNil(t, a)
	assert.Equal(t, 3, a.PageNumber)
	require.NotNil(t, a.BoundingBox)
	assert.Equal(t, geometry.NewRect(0.1, 0.2, 0.5, 0.12), *a.BoundingBox)
	require.Len(t, a.Messages, 2)
	assert.Equal(t, RoleAssistant, a.Messages[1].Role)

	// Re-encode and decode again; nothing may be lost.
	data, err := json.Marshal(&file)
	require.NoError(t, err)
	var again File
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, file.Annotations["ann_1"], again.Annotations["ann_1"])
	assert.Equal(t, file.Notes["note_1"], again.Notes["note_1"])
}

func TestLegacyAnnotationRendersNoOverlay(t *testing.T) {
	var file File
	require.NoError(t, json.Unmarshal([]byte(sidecarFixture), &file))

	legacy := file.Annotations["ann_legacy"]
	require.NotNil(t, legacy)
	assert.Equal(t, KindScreenshot, legacy.Kind())
	assert.False(t, legacy.RendersOverlay())

	// It must still appear in list views.
	store := NewStore()
	store.Load(file.PDFPath, &file)
	assert.Len(t, store.Annotations(), 2)
}

func TestAnnotationKind(t *testing.T) {
	assert.Equal(t, KindScreenshot, (&Annotation{ImageBase64: "x"}).Kind())
	assert.Equal(t, KindTextSelection, (&Annotation{SelectedText: "quote"}).Kind())
	assert.Equal(t, KindUnknown, (&Annotation{}).Kind())
}

func TestHistorySkipsPending(t *testing.T) {
	a := &Annotation{ID: "ann_x"}
	a.Messages = append(a.Messages,
		&Message{ID: "m1", Role: RoleUser, Content: "q"},
		&Message{ID: "m2", Role: RoleAssistant, Content: "a"},
		NewUserMessage("unconfirmed", ""),
	)

	history := a.History()
	require.Len(t, history, 2)
	assert.Equal(t, "q", history[0]["content"])
	assert.Equal(t, RoleAssistant, history[1]["role"])
}

func TestNoteStrokes(t *testing.T) {
	content, err := EncodeStrokes([]Stroke{
		{Points: []StrokePoint{{X: 1, Y: 2}, {X: 3, Y: 4}}},
	})
	require.NoError(t, err)

	n := &Note{ID: "note_d", ContentType: ContentDrawing, Content: content}
	strokes, err := n.Strokes()
	require.NoError(t, err)
	require.Len(t, strokes, 1)
	assert.Equal(t, StrokePoint{X: 3, Y: 4}, strokes[0].Points[1])

	// Text notes do not decode as strokes.
	_, err = (&Note{ID: "note_t", ContentType: ContentText}).Strokes()
	assert.Error(t, err)
}

func TestNewFile(t *testing.T) {
	f := NewFile("/docs/paper.pdf")
	assert.Equal(t, "paper", f.PDFName)
	assert.NotEmpty(t, f.CreatedAt)
	assert.NotNil(t, f.Annotations)
	assert.NotNil(t, f.Notes)
}
