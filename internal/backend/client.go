// Package backend is the HTTP client for the chat and persistence
// collaborator: conversation requests, sidecar load/save, and page-image
// rendering.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/pkg/geometry"
)

const (
	// DefaultBaseURL is where the bundled collaborator listens.
	DefaultBaseURL = "http://127.0.0.1:8765"

	// DefaultTimeout bounds a single request. Ask calls can take a while;
	// everything else returns quickly.
	DefaultTimeout = 2 * time.Minute
)

// ErrDisconnected is returned by operations attempted while the collaborator
// is known to be unreachable. Such operations fail fast instead of queuing.
var ErrDisconnected = errors.New("backend disconnected")

// APIError is a non-2xx response from the collaborator.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %d %s", e.StatusCode, e.Detail)
}

// Client talks to the chat/persistence service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a custom request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a client for the given base URL. An empty URL selects
// DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doJSON performs a request with a JSON body and decodes the JSON response
// into out (unless out is nil).
func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Detail != "" {
		apiErr.Detail = payload.Detail
	} else {
		apiErr.Detail = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status       string `json:"status"`
	AIConfigured bool   `json:"ai_configured"`
}

// Health checks collaborator reachability.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadChat fetches the sidecar document for a PDF. Returns nil when the PDF
// has no sidecar yet.
func (c *Client) LoadChat(ctx context.Context, pdfPath string) (*annotation.File, error) {
	var out struct {
		ChatData *annotation.File `json:"chat_data"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/load-chat", map[string]string{"pdf_path": pdfPath}, &out)
	if err != nil {
		return nil, err
	}
	return out.ChatData, nil
}

// SaveChat explicitly persists the current chat data. The collaborator
// auto-saves after every mutation; this exists for save-on-demand.
func (c *Client) SaveChat(ctx context.Context, pdfPath string, file *annotation.File) error {
	req := map[string]any{"pdf_path": pdfPath, "chat_data": file}
	return c.doJSON(ctx, http.MethodPost, "/save-chat", req, nil)
}

// AskRequest is a conversation turn. BoundingBox is in normalized-page
// space; ChatHistory carries the full prior committed conversation.
type AskRequest struct {
	PDFPath      string              `json:"pdf_path"`
	AnnotationID string              `json:"annotation_id"`
	Question     string              `json:"question"`
	ImageBase64  string              `json:"image_base64,omitempty"`
	BoundingBox  *geometry.Rect      `json:"bounding_box,omitempty"`
	SelectedText string              `json:"selected_text,omitempty"`
	PageNumber   int                 `json:"page_number"`
	ChatHistory  []map[string]string `json:"chat_history,omitempty"`
}

// AskResponse is the collaborator's answer, including the server-assigned
// message identifiers used to reconcile the optimistic local copies, and an
// AI-generated title on the first exchange.
type AskResponse struct {
	Response           string `json:"response"`
	AnnotationID       string `json:"annotation_id"`
	UserMessageID      string `json:"user_message_id"`
	AssistantMessageID string `json:"assistant_message_id"`
	Title              string `json:"title"`
}

// Ask sends a question about an annotation.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	var out AskResponse
	if err := c.doJSON(ctx, http.MethodPost, "/ask", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EditMessage persists a message edit. Local state is only updated after
// this succeeds.
func (c *Client) EditMessage(ctx context.Context, pdfPath, annotationID, messageID, newContent string) error {
	req := map[string]string{
		"pdf_path":      pdfPath,
		"annotation_id": annotationID,
		"message_id":    messageID,
		"new_content":   newContent,
	}
	return c.doJSON(ctx, http.MethodPost, "/edit-message", req, nil)
}

// DeleteMessage persists a message deletion.
func (c *Client) DeleteMessage(ctx context.Context, pdfPath, annotationID, messageID string) error {
	req := map[string]string{
		"pdf_path":      pdfPath,
		"annotation_id": annotationID,
		"message_id":    messageID,
	}
	return c.doJSON(ctx, http.MethodPost, "/delete-message", req, nil)
}

// DeleteAnnotation removes an annotation and its conversation.
func (c *Client) DeleteAnnotation(ctx context.Context, pdfPath, annotationID string) error {
	req := map[string]string{
		"pdf_path":      pdfPath,
		"annotation_id": annotationID,
	}
	return c.doJSON(ctx, http.MethodPost, "/delete-annotation", req, nil)
}

// CreateNoteRequest registers a new note with the collaborator.
type CreateNoteRequest struct {
	PDFPath      string         `json:"pdf_path"`
	NoteID       string         `json:"note_id"`
	PageNumber   int            `json:"page_number"`
	SelectedText string         `json:"selected_text"`
	BoundingBox  *geometry.Rect `json:"bounding_box,omitempty"`
	ContentType  string         `json:"content_type"`
	Content      string         `json:"content"`
}

// CreateNote persists a new note and returns the stored record.
func (c *Client) CreateNote(ctx context.Context, req CreateNoteRequest) (*annotation.Note, error) {
	var out struct {
		Note *annotation.Note `json:"note"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/create-note", req, &out); err != nil {
		return nil, err
	}
	return out.Note, nil
}

// UpdateNoteRequest updates a note's content, optionally asking the
// collaborator to generate a title.
type UpdateNoteRequest struct {
	PDFPath       string `json:"pdf_path"`
	NoteID        string `json:"note_id"`
	ContentType   string `json:"content_type,omitempty"`
	Content       string `json:"content"`
	GenerateTitle bool   `json:"generate_title"`
}

// UpdateNoteResponse carries the generated title, when one was requested and
// produced.
type UpdateNoteResponse struct {
	Title string           `json:"title"`
	Note  *annotation.Note `json:"note"`
}

// UpdateNote persists a note update.
func (c *Client) UpdateNote(ctx context.Context, req UpdateNoteRequest) (*UpdateNoteResponse, error) {
	var out UpdateNoteResponse
	if err := c.doJSON(ctx, http.MethodPost, "/update-note", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, pdfPath, noteID string) error {
	req := map[string]string{
		"pdf_path": pdfPath,
		"note_id":  noteID,
	}
	return c.doJSON(ctx, http.MethodPost, "/delete-note", req, nil)
}

// ExtractPageImage renders a page at the given scale and returns the base64
// PNG payload. The endpoint takes form fields rather than JSON.
func (c *Client) ExtractPageImage(ctx context.Context, pdfPath string, pageNumber int, scale float64) (string, error) {
	form := url.Values{
		"pdf_path":    {pdfPath},
		"page_number": {strconv.Itoa(pageNumber)},
		"scale":       {strconv.FormatFloat(scale, 'f', -1, 64)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract-page-image",
		bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", decodeAPIError(resp)
	}

	var out struct {
		ImageBase64 string `json:"image_base64"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return out.ImageBase64, nil
}
