package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"smart-scheduler/internal/db"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Store is the relational persistence layer. Every query is scoped by the
// owning user id.
type Store struct {
	db  *db.DB
	log zerolog.Logger

	// Now is the clock used for created_at and status timestamps.
	Now func() time.Time
}

func New(d *db.DB, log zerolog.Logger) *Store {
	return &Store{
		db:  d,
		log: log.With().Str("component", "store").Logger(),
		Now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) DB() *db.DB { return s.db }

func (s *Store) q(query string) string { return s.db.Rebind(query) }

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
