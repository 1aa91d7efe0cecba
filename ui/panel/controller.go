// Package panel is the annotation detail panel: the conversation thread for
// one anchor, message editing, and optimistic sends.
package panel

import (
	"context"
	"sync"

	"github.com/phuslu/log"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/internal/backend"
)

// Conversation is the collaborator surface the controller needs. The
// backend client satisfies it.
type Conversation interface {
	Ask(ctx context.Context, req backend.AskRequest) (*backend.AskResponse, error)
	EditMessage(ctx context.Context, pdfPath, annotationID, messageID, newContent string) error
	DeleteMessage(ctx context.Context, pdfPath, annotationID, messageID string) error
	DeleteAnnotation(ctx context.Context, pdfPath, annotationID string) error
}

// Controller owns the panel's conversation state for the currently shown
// annotation. Widget code renders from the store; the controller mediates
// every mutation through the collaborator first.
type Controller struct {
	store *annotation.Store
	conv  Conversation

	mu         sync.Mutex
	shownID    string
	generation int
	sending    bool

	// OnRefresh is invoked (from the calling goroutine) whenever panel
	// content should re-render for reasons the store does not broadcast.
	OnRefresh func()
}

// NewController creates a panel controller over the store and collaborator.
func NewController(store *annotation.Store, conv Conversation) *Controller {
	return &Controller{store: store, conv: conv}
}

// Show switches the panel to an annotation. Any in-flight response for the
// previous annotation is ignored when it lands.
func (c *Controller) Show(annotationID string) {
	c.mu.Lock()
	c.shownID = annotationID
	c.generation++
	c.sending = false
	c.mu.Unlock()
	c.refresh()
}

// Hide clears the panel.
func (c *Controller) Hide() {
	c.Show("")
}

// ShownID returns the annotation currently displayed, or empty.
func (c *Controller) ShownID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shownID
}

// Sending reports whether a question is awaiting its answer.
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

func (c *Controller) refresh() {
	if c.OnRefresh != nil {
		c.OnRefresh()
	}
}

// SendQuestion appends the user's message optimistically and asks the
// collaborator. The pending message is reconciled to its server identity on
// success; on failure it stays in the thread and the error arrives as a
// locally-synthesized assistant message, so the question is never lost.
// Responses that land after the panel moved to another annotation are not
// re-rendered here.
func (c *Controller) SendQuestion(ctx context.Context, question string) {
	c.mu.Lock()
	annID := c.shownID
	gen := c.generation
	if annID == "" || c.sending {
		c.mu.Unlock()
		return
	}
	c.sending = true
	c.mu.Unlock()

	ann := c.store.Annotation(annID)
	if ann == nil {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
		return
	}

	pending := annotation.NewUserMessage(question, "")
	c.store.AppendMessages(annID, pending)
	c.refresh()

	req := backend.AskRequest{
		PDFPath:      c.store.PDFPath(),
		AnnotationID: annID,
		Question:     question,
		ImageBase64:  ann.ImageBase64,
		BoundingBox:  ann.BoundingBox,
		SelectedText: ann.SelectedText,
		PageNumber:   ann.PageNumber,
		ChatHistory:  ann.History(),
	}

	go func() {
		resp, err := c.conv.Ask(ctx, req)
		c.finishSend(gen, annID, pending.ID, resp, err)
	}()
}

func (c *Controller) finishSend(gen int, annID, tempID string, resp *backend.AskResponse, err error) {
	c.mu.Lock()
	stale := gen != c.generation
	if !stale {
		c.sending = false
	}
	c.mu.Unlock()

	if err != nil {
		// The collaborator never recorded the exchange. The question stays
		// in the thread; the failure is answered by a local assistant
		// message instead of discarding the user's input.
		c.store.ReconcileMessage(annID, tempID, "")
		c.store.AppendMessages(annID, annotation.NewAssistantMessage("",
			"Request failed: "+err.Error()))
		log.Warn().Err(err).Str("annotation", annID).Msg("ask failed")
		if stale {
			return
		}
		c.refresh()
		return
	}

	c.store.ReconcileMessage(annID, tempID, resp.UserMessageID)
	c.store.AppendMessages(annID, annotation.NewAssistantMessage(resp.AssistantMessageID, resp.Response))
	if resp.Title != "" {
		c.store.SetAnnotationTitle(annID, resp.Title)
	}

	if stale {
		// Committed to the store, just not rendered by this panel anymore.
		return
	}
	c.refresh()
}

// EditMessage persists an edit through the collaborator, then mutates the
// store. The UI keeps showing the old content until the round-trip
// succeeds.
func (c *Controller) EditMessage(ctx context.Context, messageID, newContent string) error {
	c.mu.Lock()
	annID := c.shownID
	c.mu.Unlock()
	if annID == "" {
		return nil
	}

	if err := c.conv.EditMessage(ctx, c.store.PDFPath(), annID, messageID, newContent); err != nil {
		return err
	}
	c.store.EditMessage(annID, messageID, newContent)
	return nil
}

// DeleteMessage persists a deletion through the collaborator, then mutates
// the store.
func (c *Controller) DeleteMessage(ctx context.Context, messageID string) error {
	c.mu.Lock()
	annID := c.shownID
	c.mu.Unlock()
	if annID == "" {
		return nil
	}

	if err := c.conv.DeleteMessage(ctx, c.store.PDFPath(), annID, messageID); err != nil {
		return err
	}
	c.store.DeleteMessage(annID, messageID)
	return nil
}

// DeleteAnnotation removes the shown annotation entirely.
func (c *Controller) DeleteAnnotation(ctx context.Context) error {
	c.mu.Lock()
	annID := c.shownID
	c.mu.Unlock()
	if annID == "" {
		return nil
	}

	if err := c.conv.DeleteAnnotation(ctx, c.store.PDFPath(), annID); err != nil {
		return err
	}
	c.store.DeleteAnnotation(annID)
	c.Hide()
	return nil
}
