// Package ops implements run and item operations over the SQLite database.
// Store satisfies dispatch.Store, so voice commands and the CLI, MCP and web
// surfaces all mutate runs through the same code.
package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/martruns/martruns/internal/config"
	"github.com/martruns/martruns/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Store runs operations against a database opened by db.Init.
type Store struct {
	db  *sql.DB
	cfg *config.Config
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for timestamps, dates and default titles.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store over database. A nil cfg uses the defaults.
func NewStore(database *sql.DB, cfg *config.Config, opts ...Option) *Store {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Store{db: database, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newID generates a ULID stamped with the store clock.
func (s *Store) newID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(s.now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id.String(), nil
}

// withTx runs fn in a transaction, committing only if fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}
