package panel

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/internal/app"
)

// Panel is the detail panel widget: context preview, conversation thread and
// question entry for one annotation. It renders whatever the controller says
// is shown and rebuilds on store events.
type Panel struct {
	state  *app.State
	ctrl   *Controller
	window fyne.Window

	root     *fyne.Container
	title    *widget.Label
	pinCheck *widget.Check
	context  *fyne.Container
	messages *fyne.Container
	scroll   *container.Scroll
	entry    *widget.Entry
	sendBtn  *widget.Button

	// OnPinChanged is invoked when the user toggles the pin control.
	OnPinChanged func(bool)
	// OnClosed is invoked when the user dismisses the panel.
	OnClosed func()
}

// NewPanel creates the detail panel. It starts hidden.
func NewPanel(state *app.State, ctrl *Controller) *Panel {
	p := &Panel{state: state, ctrl: ctrl}

	p.title = widget.NewLabel("")
	p.title.TextStyle = fyne.TextStyle{Bold: true}
	p.title.Wrapping = fyne.TextWrapWord

	p.pinCheck = widget.NewCheck("Pin", func(checked bool) {
		if p.OnPinChanged != nil {
			p.OnPinChanged(checked)
		}
	})

	closeBtn := widget.NewButtonWithIcon("", theme.CancelIcon(), func() {
		p.Hide()
		if p.OnClosed != nil {
			p.OnClosed()
		}
	})

	deleteBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		p.confirmDeleteAnnotation()
	})

	p.context = container.NewVBox()
	p.messages = container.NewVBox()
	p.scroll = container.NewVScroll(container.NewVBox(p.context, p.messages))

	p.entry = widget.NewMultiLineEntry()
	p.entry.SetPlaceHolder("Ask about this region...")
	p.entry.Wrapping = fyne.TextWrapWord

	p.sendBtn = widget.NewButtonWithIcon("", theme.MailSendIcon(), p.onSend)

	header := container.NewBorder(nil, nil, nil,
		container.NewHBox(p.pinCheck, deleteBtn, closeBtn), p.title)
	footer := container.NewBorder(nil, nil, nil, p.sendBtn, p.entry)

	p.root = container.NewBorder(header, footer, nil, nil, p.scroll)
	p.root.Hide()

	ctrl.OnRefresh = func() {
		fyne.Do(p.rebuild)
	}
	for _, ev := range []annotation.EventType{
		annotation.EventMessagesChanged,
		annotation.EventTitleChanged,
		annotation.EventAnnotationsChanged,
	} {
		state.Store.On(ev, func(id string) {
			if id == ctrl.ShownID() {
				fyne.Do(p.rebuild)
			}
		})
	}

	return p
}

// Container returns the panel's root object.
func (p *Panel) Container() fyne.CanvasObject {
	return p.root
}

// SetWindow sets the parent window for confirmation dialogs.
func (p *Panel) SetWindow(w fyne.Window) {
	p.window = w
}

// Show displays the panel for an annotation.
func (p *Panel) Show(annotationID string) {
	p.ctrl.Show(annotationID)
	p.root.Show()
	p.rebuild()
	p.scroll.ScrollToBottom()
}

// Hide dismisses the panel.
func (p *Panel) Hide() {
	p.ctrl.Hide()
	p.root.Hide()
}

// Visible reports whether the panel is showing.
func (p *Panel) Visible() bool {
	return p.root.Visible()
}

// SetPinned updates the pin control without firing its callback.
func (p *Panel) SetPinned(pinned bool) {
	cb := p.pinCheck.OnChanged
	p.pinCheck.OnChanged = nil
	p.pinCheck.SetChecked(pinned)
	p.pinCheck.OnChanged = cb
}

func (p *Panel) onSend() {
	text := strings.TrimSpace(p.entry.Text)
	if text == "" || p.ctrl.Sending() {
		return
	}
	if err := p.state.EnsureConnected(); err != nil {
		dialog.ShowError(err, p.window)
		return
	}
	p.entry.SetText("")
	p.ctrl.SendQuestion(context.Background(), text)
}

func (p *Panel) rebuild() {
	ann := p.state.Store.Annotation(p.ctrl.ShownID())
	if ann == nil {
		p.root.Hide()
		return
	}

	p.title.SetText(annotationHeading(ann))
	p.rebuildContext(ann)
	p.rebuildMessages(ann)
	if p.ctrl.Sending() {
		p.sendBtn.Disable()
	} else {
		p.sendBtn.Enable()
	}
	p.scroll.Refresh()
	p.scroll.ScrollToBottom()
}

func (p *Panel) rebuildContext(ann *annotation.Annotation) {
	p.context.RemoveAll()
	switch ann.Kind() {
	case annotation.KindScreenshot:
		if img := decodePreview(ann.ImageBase64); img != nil {
			img.FillMode = fynecanvas.ImageFillContain
			img.SetMinSize(fyne.NewSize(0, 120))
			p.context.Add(img)
		}
	case annotation.KindTextSelection:
		quote := widget.NewLabel("“" + ann.SelectedText + "”")
		quote.Wrapping = fyne.TextWrapWord
		quote.TextStyle = fyne.TextStyle{Italic: true}
		p.context.Add(quote)
	}
	p.context.Add(widget.NewSeparator())
}

func (p *Panel) rebuildMessages(ann *annotation.Annotation) {
	p.messages.RemoveAll()
	for _, m := range ann.Messages {
		p.messages.Add(p.messageRow(m))
	}
	if p.ctrl.Sending() {
		thinking := widget.NewLabel("Thinking...")
		thinking.TextStyle = fyne.TextStyle{Italic: true}
		p.messages.Add(thinking)
	}
}

func (p *Panel) messageRow(m *annotation.Message) fyne.CanvasObject {
	if m.Role == annotation.RoleAssistant {
		body := widget.NewRichTextFromMarkdown(m.Content)
		body.Wrapping = fyne.TextWrapWord
		return body
	}

	who := widget.NewLabel("You")
	who.TextStyle = fyne.TextStyle{Bold: true}
	body := widget.NewLabel(m.Content)
	body.Wrapping = fyne.TextWrapWord
	if m.Pending {
		body.Importance = widget.LowImportance
		return container.NewVBox(who, body)
	}

	msgID := m.ID
	current := m.Content
	edit := widget.NewButtonWithIcon("", theme.DocumentCreateIcon(), func() {
		p.promptEditMessage(msgID, current)
	})
	del := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		p.confirmDeleteMessage(msgID)
	})
	header := container.NewBorder(nil, nil, who, container.NewHBox(edit, del))
	return container.NewVBox(header, body)
}

func (p *Panel) promptEditMessage(messageID, current string) {
	entry := widget.NewMultiLineEntry()
	entry.SetText(current)
	entry.Wrapping = fyne.TextWrapWord
	dialog.ShowCustomConfirm("Edit Message", "Save", "Cancel",
		container.NewVScroll(entry), func(ok bool) {
			if !ok {
				return
			}
			newContent := strings.TrimSpace(entry.Text)
			if newContent == "" || newContent == current {
				return
			}
			go func() {
				if err := p.ctrl.EditMessage(context.Background(), messageID, newContent); err != nil {
					fyne.Do(func() { dialog.ShowError(err, p.window) })
				}
			}()
		}, p.window)
}

func (p *Panel) confirmDeleteMessage(messageID string) {
	dialog.ShowConfirm("Delete Message",
		"Remove this message from the conversation?", func(ok bool) {
			if !ok {
				return
			}
			go func() {
				if err := p.ctrl.DeleteMessage(context.Background(), messageID); err != nil {
					fyne.Do(func() { dialog.ShowError(err, p.window) })
				}
			}()
		}, p.window)
}

func (p *Panel) confirmDeleteAnnotation() {
	dialog.ShowConfirm("Delete Annotation",
		"Delete this annotation and its whole conversation?", func(ok bool) {
			if !ok {
				return
			}
			go func() {
				err := p.ctrl.DeleteAnnotation(context.Background())
				fyne.Do(func() {
					if err != nil {
						dialog.ShowError(err, p.window)
						return
					}
					p.root.Hide()
					if p.OnClosed != nil {
						p.OnClosed()
					}
				})
			}()
		}, p.window)
}

func annotationHeading(ann *annotation.Annotation) string {
	if ann.Title != "" {
		return ann.Title
	}
	switch ann.Kind() {
	case annotation.KindTextSelection:
		return fmt.Sprintf("Selection on page %d", ann.PageNumber)
	default:
		return fmt.Sprintf("Annotation on page %d", ann.PageNumber)
	}
}

func decodePreview(imageBase64 string) *fynecanvas.Image {
	raw, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	return fynecanvas.NewImageFromImage(img)
}
