// Package ocr recovers text from captured regions of scanned pages, where
// the PDF carries no text layer to select from.
package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/pkukic/margo/pkg/geometry"
)

// Engine wraps a Tesseract client. Tesseract is not reentrant, so calls are
// serialized.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewEngine creates an OCR engine for English body text.
func NewEngine() (*Engine, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage("eng"); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	return &Engine{client: client}, nil
}

// Close releases Tesseract resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// RecognizeImage runs OCR over a whole captured bitmap and returns the
// cleaned-up text.
func (e *Engine) RecognizeImage(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", fmt.Errorf("empty image")
	}

	prepared := prepareForOCR(img)
	var buf bytes.Buffer
	if err := png.Encode(&buf, prepared); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return "", fmt.Errorf("engine closed")
	}

	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("set page segmentation: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return collapseWhitespace(text), nil
}

// RecognizeRegion runs OCR over a sub-rectangle of a bitmap in pixel
// coordinates.
func (e *Engine) RecognizeRegion(img image.Image, bounds geometry.RectInt) (string, error) {
	if img == nil {
		return "", fmt.Errorf("empty image")
	}
	region := image.Rect(bounds.X, bounds.Y, bounds.X+bounds.Width, bounds.Y+bounds.Height).
		Intersect(img.Bounds())
	if region.Empty() {
		return "", fmt.Errorf("invalid region bounds")
	}
	return e.RecognizeImage(cropImage(img, region))
}

// collapseWhitespace keeps paragraph breaks but folds runs of spaces and
// joins wrapped lines within a paragraph.
func collapseWhitespace(text string) string {
	paragraphs := strings.Split(text, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		joined := strings.Join(strings.Fields(p), " ")
		if joined != "" {
			out = append(out, joined)
		}
	}
	return strings.Join(out, "\n\n")
}
