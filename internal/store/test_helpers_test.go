package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/testutil"
)

const testRepo issues.RepoID = "repo-1"

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createJournaledIssue creates an issue through an issues.Store journaling
// into s, applies ops in order, and returns the issue store.
func createJournaledIssue(t *testing.T, s *Store, title string, ops ...cob.Op) (*issues.Store, cob.Issue) {
	t.Helper()
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()
	signer := testutil.NewSigner("alice")

	is := issues.New(issues.WithJournal(s), issues.WithNow(clock.Now))
	issue, err := is.Create(ctx, testRepo, issues.NewIssue{Title: title, Labels: []string{"bug"}}, signer)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	for _, op := range ops {
		issue, err = is.Apply(ctx, testRepo, issue.ID, op, signer)
		if err != nil {
			t.Fatalf("Apply(%s) failed: %v", op.Kind(), err)
		}
	}
	return is, issue
}
