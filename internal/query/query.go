// Package query filters, orders and decorates materialized issues for
// presentation. Everything here is pure: inputs are never modified.
package query

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/issues"
)

// Status is a lifecycle filter. The zero value matches every issue.
type Status string

const (
	StatusAny    Status = ""
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// ParseStatus accepts "", "all", "open" and "closed".
func ParseStatus(s string) (Status, error) {
	switch s {
	case "", "all":
		return StatusAny, nil
	case "open":
		return StatusOpen, nil
	case "closed":
		return StatusClosed, nil
	}
	return "", fmt.Errorf("invalid status %q: must be one of all, open, closed", s)
}

func (s Status) String() string {
	if s == StatusAny {
		return "all"
	}
	return string(s)
}

// Matches reports whether the issue's state satisfies the filter.
func (s Status) Matches(issue cob.Issue) bool {
	switch s {
	case StatusOpen:
		return issue.State.Status == cob.StatusOpen
	case StatusClosed:
		return issue.State.Status == cob.StatusClosed
	}
	return true
}

// Query keeps the issues matching status and orders them most recently
// touched first, breaking timestamp ties by id.
func Query(all iter.Seq[cob.Issue], status Status) []cob.Issue {
	out := []cob.Issue{}
	for issue := range all {
		if status.Matches(issue) {
			out = append(out, issue)
		}
	}
	slices.SortFunc(out, func(a, b cob.Issue) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Getter is the read side of the issue store.
type Getter interface {
	Get(repo issues.RepoID, id cob.ActionID) (cob.Issue, bool)
}

// ByID returns one issue straight from the store.
func ByID(src Getter, repo issues.RepoID, id cob.ActionID) (cob.Issue, bool) {
	return src.Get(repo, id)
}
