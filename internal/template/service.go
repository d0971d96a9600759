package template

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/certdesk/certdesk/backend-go/internal/document"
	"github.com/certdesk/certdesk/backend-go/internal/typeid"
)

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create stores raw as a new template owned by ownerID. An empty raw
// document seeds a blank Letter canvas.
func (s *Service) Create(ctx context.Context, ownerID, name string, raw []byte) (*Template, error) {
	doc, err := s.canonical(raw)
	if err != nil {
		return nil, err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &Template{
		ID:        typeid.NewTemplateID(),
		Name:      displayName(name),
		OwnerID:   ownerID,
		Width:     doc.Width,
		Height:    doc.Height,
		Document:  data,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, id, userID string) (*Template, error) {
	if typeid.Validate(id, typeid.PrefixTemplate) != nil {
		return nil, ErrNotFound
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.OwnerID != userID {
		return nil, ErrForbidden
	}
	return t, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Template, error) {
	return s.store.List(ctx, userID)
}

// Save replaces the document and, when name is non-empty, the name.
func (s *Service) Save(ctx context.Context, id, userID, name string, raw []byte) (*Template, error) {
	t, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, &document.ValidationError{Problems: []string{"document is required"}}
	}
	doc, err := s.canonical(raw)
	if err != nil {
		return nil, err
	}
	data, err := document.Marshal(doc)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(name) != "" {
		t.Name = displayName(name)
	}
	t.Width, t.Height = doc.Width, doc.Height
	t.Document = data
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save template: %w", err)
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) canonical(raw []byte) (*document.Document, error) {
	if len(raw) == 0 || string(raw) == "null" {
		p, err := document.LookupPreset(document.PresetLetter)
		if err != nil {
			return nil, err
		}
		return document.Blank(p), nil
	}
	return document.Unmarshal(raw)
}

func displayName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return "Untitled certificate"
	}
	return name
}
