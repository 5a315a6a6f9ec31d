package issues

import (
	"context"
	"fmt"

	"github.com/roach88/cobs/internal/cob"
)

// Inbox delivers actions from another replica to a Store in whatever order
// they arrive. Actions whose parents (or whose issue's Create) have not
// arrived yet are held back and retried after every successful delivery.
//
// Thread-safety: Inbox is not safe for concurrent use.
type Inbox struct {
	target  *Store
	pending []pendingAction
}

type pendingAction struct {
	repo    RepoID
	issueID cob.ActionID
	action  cob.Action
}

// NewInbox creates an inbox delivering to target.
func NewInbox(target *Store) *Inbox {
	return &Inbox{target: target}
}

// Deliver hands an action to the store, buffering it if it cannot be
// applied yet. Errors other than missing predecessors are returned; an
// invalid action is never buffered.
func (in *Inbox) Deliver(ctx context.Context, repo RepoID, issueID cob.ActionID, a cob.Action) error {
	applied, err := in.try(ctx, pendingAction{repo: repo, issueID: issueID, action: a})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	return in.drain(ctx)
}

// Pending returns the number of buffered actions.
func (in *Inbox) Pending() int {
	return len(in.pending)
}

func (in *Inbox) try(ctx context.Context, p pendingAction) (bool, error) {
	_, err := in.target.Receive(ctx, p.repo, p.issueID, p.action)
	switch {
	case err == nil:
		return true, nil
	case cob.IsCausality(err), cob.IsMissingCreate(err):
		in.pending = append(in.pending, p)
		return false, nil
	default:
		return false, fmt.Errorf("deliver %s: %w", p.action.ID.Short(), err)
	}
}

// drain retries buffered actions until a full pass makes no progress.
// On error the actions not yet retried stay buffered, and so does the
// failing one unless it is invalid.
func (in *Inbox) drain(ctx context.Context) error {
	for progress := true; progress && len(in.pending) > 0; {
		progress = false
		waiting := in.pending
		in.pending = nil
		for i, p := range waiting {
			applied, err := in.try(ctx, p)
			if err != nil {
				if !cob.IsInvalidAction(err) {
					in.pending = append(in.pending, p)
				}
				in.pending = append(in.pending, waiting[i+1:]...)
				return err
			}
			progress = progress || applied
		}
	}
	return nil
}
