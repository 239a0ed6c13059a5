package render

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
)

// Store keeps uploaded certificate template images on disk, one PNG per
// event. Paths recorded on the event are relative to the store root so the
// data directory can move between deployments.
type Store struct {
	dir string
}

// NewStore creates the template directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save validates and stores an event's template image, returning the
// relative path to record on the event. Re-uploading overwrites.
func (s *Store) Save(eventID string, data []byte) (string, error) {
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("template is not a valid PNG: %w", err)
	}
	rel := eventID + ".png"
	if err := os.WriteFile(filepath.Join(s.dir, rel), data, 0o644); err != nil {
		return "", fmt.Errorf("write template: %w", err)
	}
	return rel, nil
}

// Load reads a stored template by its recorded relative path.
func (s *Store) Load(rel string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(rel)))
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", rel, err)
	}
	return data, nil
}

// Certificate renders one participant's certificate from the event's stored
// template. Satisfies delivery.RenderFunc.
func (s *Store) Certificate(_ context.Context, event *domain.Event, p domain.Participant) ([]byte, error) {
	if event.TemplatePath == "" {
		return nil, fmt.Errorf("event %s has no certificate template", event.ID)
	}
	tpl, err := s.Load(event.TemplatePath)
	if err != nil {
		return nil, err
	}
	return Certificate(tpl, p, event.NameConfig, event.IDConfig)
}
