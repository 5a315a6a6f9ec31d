package issues

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/roach88/cobs/internal/cob"
)

// RepoID namespaces issues. Issues never reference across repositories.
type RepoID string

func (r RepoID) String() string {
	return string(r)
}

// NewIssue is the input to Create. It only seeds the Create action and is
// not persisted.
type NewIssue struct {
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Labels      []string        `json:"labels,omitempty" yaml:"labels,omitempty"`
	Assignees   []cob.PublicKey `json:"assignees,omitempty" yaml:"assignees,omitempty"`
	Embeds      []cob.Embed     `json:"embeds,omitempty" yaml:"embeds,omitempty"`
}

// Op returns the Create op for the new issue.
func (n NewIssue) Op() cob.Create {
	return cob.Create{
		Title:       n.Title,
		Description: n.Description,
		Labels:      n.Labels,
		Assignees:   n.Assignees,
		Embeds:      n.Embeds,
	}
}

// Journal persists actions. WriteAction must be idempotent for an action
// already written; an error aborts the append that triggered it.
type Journal interface {
	WriteAction(ctx context.Context, repo RepoID, issueID cob.ActionID, a cob.Action) error
}

// RepoIDGenerator mints repository ids.
type RepoIDGenerator interface {
	Generate() RepoID
}

// UUIDv7Generator generates time-sortable UUIDv7 repository ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 id in hyphenated form.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() RepoID {
	return RepoID(uuid.Must(uuid.NewV7()).String())
}

// FixedGenerator returns predetermined repository ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []RepoID
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...RepoID) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, to catch test misconfiguration.
func (g *FixedGenerator) Generate() RepoID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
