package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/phuslu/log"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/pkg/geometry"
)

// server implements the collaborator contract against sidecar storage, with
// canned answers standing in for the AI.
type server struct {
	storage *storage
	mux     *http.ServeMux
}

func newServer(st *storage) *server {
	s := &server{storage: st, mux: http.NewServeMux()}

	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/load-chat", s.handleLoadChat)
	s.mux.HandleFunc("/save-chat", s.handleSaveChat)
	s.mux.HandleFunc("/ask", s.handleAsk)
	s.mux.HandleFunc("/edit-message", s.handleEditMessage)
	s.mux.HandleFunc("/delete-message", s.handleDeleteMessage)
	s.mux.HandleFunc("/delete-annotation", s.handleDeleteAnnotation)
	s.mux.HandleFunc("/create-note", s.handleCreateNote)
	s.mux.HandleFunc("/update-note", s.handleUpdateNote)
	s.mux.HandleFunc("/delete-note", s.handleDeleteNote)
	s.mux.HandleFunc("/extract-page-image", s.handleExtractPageImage)

	return s
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"ai_configured": false,
	})
}

func (s *server) handleLoadChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath string `json:"pdf_path"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	file, err := s.storage.load(req.PDFPath)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chat_data": file})
}

func (s *server) handleSaveChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath  string           `json:"pdf_path"`
		ChatData *annotation.File `json:"chat_data"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ChatData == nil {
		writeDetail(w, http.StatusBadRequest, "chat_data is required")
		return
	}

	s.storage.replace(req.PDFPath, req.ChatData)
	if err := s.storage.save(req.PDFPath); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath      string              `json:"pdf_path"`
		AnnotationID string              `json:"annotation_id"`
		Question     string              `json:"question"`
		ImageBase64  string              `json:"image_base64"`
		BoundingBox  *geometry.Rect      `json:"bounding_box"`
		SelectedText string              `json:"selected_text"`
		PageNumber   int                 `json:"page_number"`
		ChatHistory  []map[string]string `json:"chat_history"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.AnnotationID == "" || req.Question == "" {
		writeDetail(w, http.StatusBadRequest, "annotation_id and question are required")
		return
	}

	ann, err := s.storage.getOrCreateAnnotation(req.PDFPath, req.AnnotationID,
		req.PageNumber, req.BoundingBox, req.ImageBase64, req.SelectedText)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	userMsg := annotation.NewUserMessage(req.Question, req.ImageBase64)
	userMsg.Pending = false
	assistantMsg := annotation.NewAssistantMessage("", cannedAnswer(req.Question, req.SelectedText))
	ann.Messages = append(ann.Messages, userMsg, assistantMsg)

	var title string
	if ann.Title == "" && len(req.ChatHistory) == 0 {
		title = titleFromQuestion(req.Question)
		ann.Title = title
	}

	if err := s.storage.save(req.PDFPath); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"response":             assistantMsg.Content,
		"annotation_id":        req.AnnotationID,
		"user_message_id":      userMsg.ID,
		"assistant_message_id": assistantMsg.ID,
		"title":                title,
	})
}

func (s *server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath      string `json:"pdf_path"`
		AnnotationID string `json:"annotation_id"`
		MessageID    string `json:"message_id"`
		NewContent   string `json:"new_content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ann, ok := s.findAnnotation(w, req.PDFPath, req.AnnotationID)
	if !ok {
		return
	}
	msg := ann.Message(req.MessageID)
	if msg == nil {
		writeDetail(w, http.StatusNotFound, "message not found")
		return
	}
	msg.Content = req.NewContent

	if err := s.storage.save(req.PDFPath); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath      string `json:"pdf_path"`
		AnnotationID string `json:"annotation_id"`
		MessageID    string `json:"message_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	ann, ok := s.findAnnotation(w, req.PDFPath, req.AnnotationID)
	if !ok {
		return
	}
	for i, m := range ann.Messages {
		if m.ID == req.MessageID {
			ann.Messages = append(ann.Messages[:i], ann.Messages[i+1:]...)
			if err := s.storage.save(req.PDFPath); err != nil {
				writeDetail(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "message not found")
}

func (s *server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath      string `json:"pdf_path"`
		AnnotationID string `json:"annotation_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	file, err := s.storage.getOrCreate(req.PDFPath)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, ok := file.Annotations[req.AnnotationID]; !ok {
		writeDetail(w, http.StatusNotFound, "annotation not found")
		return
	}
	delete(file.Annotations, req.AnnotationID)

	if err := s.storage.save(req.PDFPath); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath      string         `json:"pdf_path"`
		NoteID       string         `json:"note_id"`
		PageNumber   int            `json:"page_number"`
		SelectedText string         `json:"selected_text"`
		BoundingBox  *geometry.Rect `json:"bounding_box"`
		ContentType  string         `json:"content_type"`
		Content      string         `json:"content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NoteID == "" {
		writeDetail(w, http.StatusBadRequest, "note_id is required")
		return
	}

	file, err := s.storage.getOrCreate(req.PDFPath)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	note := &annotation.Note{
		ID:           req.NoteID,
		PageNumber:   req.PageNumber,
		CreatedAt:    annotation.Timestamp(),
		SelectedText: req.SelectedText,
		BoundingBox:  req.BoundingBox,
		ContentType:  req.ContentType,
		Content:      req.Content,
	}
	file.Notes[note.ID] = note

	if err := s.storage.save(req.PDFPath); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "note": note})
}

func (s *server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath       string `json:"pdf_path"`
		NoteID        string `json:"note_id"`
		ContentType   string `json:"content_type"`
		Content       string `json:"content"`
		GenerateTitle bool   `json:"generate_title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	file, err := s.storage.getOrCreate(req.PDFPath)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	note, ok := file.Notes[req.NoteID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "note not found")
		return
	}

	if req.ContentType != "" {
		note.ContentType = req.ContentType
	}
	note.Content = req.Content

	var title string
	if req.GenerateTitle && note.Title == "" {
		source := note.SelectedText
		if source == "" {
			source = req.Content
		}
		title = titleFromQuestion(source)
		note.Title = title
	}

	if err := s.storage.save(req.PDFPath); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "title": title, "note": note})
}

func (s *server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PDFPath string `json:"pdf_path"`
		NoteID  string `json:"note_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	file, err := s.storage.getOrCreate(req.PDFPath)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, ok := file.Notes[req.NoteID]; !ok {
		writeDetail(w, http.StatusNotFound, "note not found")
		return
	}
	delete(file.Notes, req.NoteID)

	if err := s.storage.save(req.PDFPath); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExtractPageImage serves a synthetic page bitmap, letter-sized at the
// requested scale. The real backend rasterizes the PDF here.
func (s *server) handleExtractPageImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form body")
		return
	}
	pageNumber, err := strconv.Atoi(r.FormValue("page_number"))
	if err != nil || pageNumber < 1 {
		writeDetail(w, http.StatusBadRequest, "invalid page_number")
		return
	}
	scale, err := strconv.ParseFloat(r.FormValue("scale"), 64)
	if err != nil || scale <= 0 {
		scale = 2.0
	}

	img := syntheticPage(int(612*scale), int(792*scale))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"image_base64": base64.StdEncoding.EncodeToString(buf.Bytes()),
	})
}

// syntheticPage draws a white page with a gray border.
func syntheticPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	white := color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	gray := color.RGBA{0xB0, 0xB0, 0xB0, 0xFF}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < 2 || y < 2 || x >= w-2 || y >= h-2 {
				img.SetRGBA(x, y, gray)
			} else {
				img.SetRGBA(x, y, white)
			}
		}
	}
	return img
}

func (s *server) findAnnotation(w http.ResponseWriter, pdfPath, annID string) (*annotation.Annotation, bool) {
	file, err := s.storage.getOrCreate(pdfPath)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	ann, ok := file.Annotations[annID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "annotation not found")
		return nil, false
	}
	return ann, true
}

// cannedAnswer produces a deterministic stand-in response.
func cannedAnswer(question, selectedText string) string {
	if selectedText != "" {
		return fmt.Sprintf("Mock answer about the selected passage (%d chars): you asked %q.",
			len(selectedText), question)
	}
	return fmt.Sprintf("Mock answer for the captured region: you asked %q.", question)
}

// titleFromQuestion takes the first few words as a stand-in for AI title
// generation.
func titleFromQuestion(question string) string {
	words := strings.Fields(question)
	if len(words) > 6 {
		words = words[:6]
	}
	title := strings.Join(words, " ")
	if len(title) > 48 {
		title = title[:48]
	}
	return title
}
