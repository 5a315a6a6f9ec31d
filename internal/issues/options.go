package issues

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/cobs/internal/cob"
)

// Option configures a Store.
type Option func(*Store)

// WithJournal persists every new action before it becomes visible.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithNow sets the wall clock used to timestamp local actions.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// ApplyOption configures a single Apply call.
type ApplyOption func(*applyConfig)

type applyConfig struct {
	parents []cob.ActionID
}

// WithParents roots the new action at the given actions instead of the
// current heads. Used to record an edit made concurrently with others.
func WithParents(ids ...cob.ActionID) ApplyOption {
	return func(c *applyConfig) { c.parents = ids }
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
