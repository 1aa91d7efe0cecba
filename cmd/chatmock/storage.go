package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkukic/margo/internal/annotation"
	"github.com/pkukic/margo/pkg/geometry"
)

// storage persists sidecar documents as .chat files next to their PDFs,
// with a write-through in-memory cache per PDF path.
type storage struct {
	mu    sync.Mutex
	cache map[string]*annotation.File
}

func newStorage() *storage {
	return &storage{cache: map[string]*annotation.File{}}
}

// chatPath maps a PDF path to its sidecar path.
func chatPath(pdfPath string) string {
	ext := filepath.Ext(pdfPath)
	return strings.TrimSuffix(pdfPath, ext) + ".chat"
}

// load returns the sidecar for a PDF, or nil when none exists yet.
func (s *storage) load(pdfPath string) (*annotation.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(pdfPath)
}

func (s *storage) loadLocked(pdfPath string) (*annotation.File, error) {
	if file, ok := s.cache[pdfPath]; ok {
		return file, nil
	}

	data, err := os.ReadFile(chatPath(pdfPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var file annotation.File
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if file.Annotations == nil {
		file.Annotations = map[string]*annotation.Annotation{}
	}
	if file.Notes == nil {
		file.Notes = map[string]*annotation.Note{}
	}
	s.cache[pdfPath] = &file
	return &file, nil
}

// getOrCreate returns the cached sidecar, creating an empty one if needed.
func (s *storage) getOrCreate(pdfPath string) (*annotation.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.loadLocked(pdfPath)
	if err != nil {
		return nil, err
	}
	if file == nil {
		file = annotation.NewFile(pdfPath)
		s.cache[pdfPath] = file
	}
	return file, nil
}

// save writes the cached sidecar to disk, bumping its updated timestamp.
func (s *storage) save(pdfPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, ok := s.cache[pdfPath]
	if !ok {
		return nil
	}
	file.UpdatedAt = annotation.Timestamp()

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(chatPath(pdfPath), data, 0o644)
}

// replace swaps the cached sidecar wholesale, as /save-chat does.
func (s *storage) replace(pdfPath string, file *annotation.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if file.Annotations == nil {
		file.Annotations = map[string]*annotation.Annotation{}
	}
	if file.Notes == nil {
		file.Notes = map[string]*annotation.Note{}
	}
	s.cache[pdfPath] = file
}

// getOrCreateAnnotation finds or registers the annotation a question is
// about.
func (s *storage) getOrCreateAnnotation(pdfPath, annID string, page int, box *geometry.Rect, imageBase64, selectedText string) (*annotation.Annotation, error) {
	file, err := s.getOrCreate(pdfPath)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ann, ok := file.Annotations[annID]; ok {
		return ann, nil
	}
	ann := &annotation.Annotation{
		ID:           annID,
		PageNumber:   page,
		CreatedAt:    annotation.Timestamp(),
		BoundingBox:  box,
		ImageBase64:  imageBase64,
		SelectedText: selectedText,
	}
	file.Annotations[annID] = ann
	return ann, nil
}
