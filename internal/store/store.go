// Package store persists assessed claim records.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/claimlink/internal/model"
)

// ErrNotFound is returned when no claim matches the lookup
var ErrNotFound = errors.New("claim not found")

// Store persists claim records
type Store interface {
	// Save inserts or replaces the record keyed by its claim ID and sets
	// its UpdatedAt. CreatedAt is set on first save and kept on later ones.
	Save(ctx context.Context, rec *model.ClaimRecord) error
	Get(ctx context.Context, claimID string) (*model.ClaimRecord, error)
	GetByReference(ctx context.Context, reference string) (*model.ClaimRecord, error)
	// List returns records newest first
	List(ctx context.Context, filter Filter) ([]*model.ClaimRecord, error)
	Close() error
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status model.Status
	Limit  int
}

// Option configures a store
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the clock used for record timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open creates the store described by cfg
func Open(ctx context.Context, cfg model.StoreConfig, opts ...Option) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemoryStore(opts...), nil
	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.DSN, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, cfg.DSN, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// stamp sets the record timestamps before a save
func stamp(rec *model.ClaimRecord, now time.Time) {
	now = now.UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
}
