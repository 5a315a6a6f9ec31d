package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/issues"
)

// Replay calls fn for every journaled action in seq order.
// Stops at the first error fn returns.
func (s *Store) Replay(ctx context.Context, fn func(Record) error) error {
	records, err := s.ReadAllActions(ctx)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return fmt.Errorf("replay seq %d: %w", r.Seq, err)
		}
	}
	return nil
}

// Load rebuilds an issue store from the journal. Repositories are
// registered even when they hold no issues. Actions are restored without
// being journaled again.
func (s *Store) Load(ctx context.Context, target *issues.Store) (int, error) {
	repos, err := s.ReadRepos(ctx)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	for _, r := range repos {
		target.AddRepo(r.ID)
	}

	n := 0
	err = s.Replay(ctx, func(r Record) error {
		if _, err := target.Restore(ctx, r.Repo, r.IssueID, r.Action); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("load: %w", err)
	}
	return n, nil
}

// IssueDigest is the snapshot digest of one issue after replay.
type IssueDigest struct {
	Repo    issues.RepoID `json:"repo"`
	IssueID cob.ActionID  `json:"issue_id"`
	Actions int           `json:"actions"`
	Forward string        `json:"forward"`
	Reverse string        `json:"reverse"`
}

// Converged reports whether both replays produced the same issue.
func (d IssueDigest) Converged() bool {
	return d.Forward == d.Reverse
}

// VerifyResult holds the outcome of a replay verification.
type VerifyResult struct {
	Issues    []IssueDigest `json:"issues"`
	Actions   int           `json:"actions"`
	Converged bool          `json:"converged"`
}

// Verify replays the journal twice into fresh stores, once in seq order and
// once in reverse seq order through an inbox, and compares the snapshot
// digest of every issue. Any difference means materialization depends on
// delivery order.
func (s *Store) Verify(ctx context.Context) (VerifyResult, error) {
	records, err := s.ReadAllActions(ctx)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verify: %w", err)
	}

	forward := issues.New()
	for _, r := range records {
		if _, err := forward.Restore(ctx, r.Repo, r.IssueID, r.Action); err != nil {
			return VerifyResult{}, fmt.Errorf("verify: forward replay seq %d: %w", r.Seq, err)
		}
	}

	reverse := issues.New()
	inbox := issues.NewInbox(reverse)
	for _, r := range slices.Backward(records) {
		if err := inbox.Deliver(ctx, r.Repo, r.IssueID, r.Action); err != nil {
			return VerifyResult{}, fmt.Errorf("verify: reverse replay seq %d: %w", r.Seq, err)
		}
	}
	if n := inbox.Pending(); n > 0 {
		return VerifyResult{}, fmt.Errorf("verify: %d actions never became deliverable", n)
	}

	result := VerifyResult{Issues: []IssueDigest{}, Actions: len(records), Converged: true}
	for _, repo := range forward.Repos() {
		for _, issue := range sortedIssues(forward, repo) {
			d := IssueDigest{Repo: repo, IssueID: issue.ID, Actions: issue.Actions}
			if d.Forward, err = cob.Digest(issue); err != nil {
				return VerifyResult{}, fmt.Errorf("verify: %w", err)
			}
			if other, ok := reverse.Get(repo, issue.ID); ok {
				if d.Reverse, err = cob.Digest(other); err != nil {
					return VerifyResult{}, fmt.Errorf("verify: %w", err)
				}
			}
			if !d.Converged() {
				result.Converged = false
			}
			result.Issues = append(result.Issues, d)
		}
	}
	return result, nil
}

func sortedIssues(s *issues.Store, repo issues.RepoID) []cob.Issue {
	all := slices.Collect(s.List(repo))
	slices.SortFunc(all, func(a, b cob.Issue) int { return cmp.Compare(a.ID, b.ID) })
	return all
}
