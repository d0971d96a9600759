package template

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/certdesk/certdesk/backend-go/internal/db"
)

var (
	ErrNotFound  = errors.New("template not found")
	ErrForbidden = errors.New("forbidden")
)

// Template is a stored canonical document plus its listing metadata.
type Template struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	OwnerID   string          `json:"ownerId"`
	Width     int             `json:"width"`
	Height    int             `json:"height"`
	Document  json.RawMessage `json:"document,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store persists templates. List omits documents.
type Store interface {
	Create(ctx context.Context, t *Template) error
	Get(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context, ownerID string) ([]Template, error)
	Save(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open picks a store from the URL scheme: sqlite:// (or a bare path) or postgres://.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pool, err := db.NewPool(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		store, err := NewPGStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return NewSQLiteStore(strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.Contains(databaseURL, "://"):
		return nil, fmt.Errorf("unsupported database url scheme: %q", databaseURL)
	default:
		return NewSQLiteStore(databaseURL)
	}
}
