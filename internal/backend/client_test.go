package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/pkg/geometry"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/health", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "ai_configured": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.AIConfigured)
}

func TestLoadChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/load-chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/docs/paper.pdf", req["pdf_path"])

		json.NewEncoder(w).Encode(map[string]any{
			"chat_data": map[string]any{
				"pdf_path": "/docs/paper.pdf",
				"pdf_name": "paper.pdf",
				"annotations": map[string]any{
					"ann_1": map[string]any{
						"id":          "ann_1",
						"page_number": 2,
						"title":       "Figure 3",
					},
				},
				"notes": map[string]any{},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	file, err := c.LoadChat(context.Background(), "/docs/paper.pdf")
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.Equal(t, "paper.pdf", file.PDFName)
	require.Contains(t, file.Annotations, "ann_1")
	assert.Equal(t, 2, file.Annotations["ann_1"].PageNumber)
}

func TestLoadChatNoSidecar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"chat_data": nil})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	file, err := c.LoadChat(context.Background(), "/docs/fresh.pdf")
	require.NoError(t, err)
	assert.Nil(t, file)
}

func TestAsk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ask", r.URL.Path)

		var req AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ann_42", req.AnnotationID)
		assert.Equal(t, "What is this figure?", req.Question)
		assert.Equal(t, 3, req.PageNumber)
		require.NotNil(t, req.BoundingBox)
		assert.InDelta(t, 0.25, req.BoundingBox.X, 1e-9)
		require.Len(t, req.ChatHistory, 1)
		assert.Equal(t, "user", req.ChatHistory[0]["role"])

		json.NewEncoder(w).Encode(AskResponse{
			Response:           "It shows the pipeline.",
			AnnotationID:       "ann_42",
			UserMessageID:      "msg_u1",
			AssistantMessageID: "msg_a1",
			Title:              "Pipeline figure",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.Ask(context.Background(), AskRequest{
		PDFPath:      "/docs/paper.pdf",
		AnnotationID: "ann_42",
		Question:     "What is this figure?",
		PageNumber:   3,
		BoundingBox:  &geometry.Rect{X: 0.25, Y: 0.1, Width: 0.5, Height: 0.2},
		ChatHistory:  []map[string]string{{"role": "user", "content": "earlier"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "It shows the pipeline.", resp.Response)
	assert.Equal(t, "msg_u1", resp.UserMessageID)
	assert.Equal(t, "msg_a1", resp.AssistantMessageID)
	assert.Equal(t, "Pipeline figure", resp.Title)
}

func TestEditAndDeleteMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	require.NoError(t, c.EditMessage(context.Background(), "/p.pdf", "ann_1", "msg_1", "fixed"))
	assert.Equal(t, "/edit-message", gotPath)
	assert.Equal(t, "fixed", gotBody["new_content"])

	require.NoError(t, c.DeleteMessage(context.Background(), "/p.pdf", "ann_1", "msg_1"))
	assert.Equal(t, "/delete-message", gotPath)
	assert.Equal(t, "msg_1", gotBody["message_id"])

	require.NoError(t, c.DeleteAnnotation(context.Background(), "/p.pdf", "ann_1"))
	assert.Equal(t, "/delete-annotation", gotPath)
	assert.Equal(t, "ann_1", gotBody["annotation_id"])
}

func TestNoteLifecycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/create-note":
			var req CreateNoteRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "note_1", req.NoteID)
			assert.Equal(t, annotation.ContentText, req.ContentType)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"note": annotation.Note{
					ID: req.NoteID, PageNumber: req.PageNumber,
					ContentType: req.ContentType, Content: req.Content,
				},
			})
		case "/update-note":
			var req UpdateNoteRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.GenerateTitle)
			json.NewEncoder(w).Encode(UpdateNoteResponse{
				Title: "Margin remark",
				Note:  &annotation.Note{ID: req.NoteID, Content: req.Content},
			})
		case "/delete-note":
			json.NewEncoder(w).Encode(map[string]string{"status": "success"})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	note, err := c.CreateNote(ctx, CreateNoteRequest{
		PDFPath: "/p.pdf", NoteID: "note_1", PageNumber: 1,
		ContentType: annotation.ContentText, Content: "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "note_1", note.ID)

	upd, err := c.UpdateNote(ctx, UpdateNoteRequest{
		PDFPath: "/p.pdf", NoteID: "note_1", Content: "hello again", GenerateTitle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Margin remark", upd.Title)

	require.NoError(t, c.DeleteNote(ctx, "/p.pdf", "note_1"))
}

func TestExtractPageImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract-page-image", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/docs/paper.pdf", r.FormValue("pdf_path"))
		assert.Equal(t, "4", r.FormValue("page_number"))
		assert.Equal(t, "2", r.FormValue("scale"))
		json.NewEncoder(w).Encode(map[string]string{"image_base64": "aGVsbG8="})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	img, err := c.ExtractPageImage(context.Background(), "/docs/paper.pdf", 4, 2.0)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", img)
}

func TestAPIErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Annotation not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	err := c.DeleteAnnotation(context.Background(), "/p.pdf", "ann_missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Annotation not found", apiErr.Detail)
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Health(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Internal Server Error", apiErr.Detail)
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Health(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
