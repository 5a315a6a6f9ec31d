package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/issues"
)

// WriteRepo registers a repository.
// Uses ON CONFLICT(id) DO NOTHING - registering twice keeps the first name.
func (s *Store) WriteRepo(ctx context.Context, id issues.RepoID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repos (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, string(id), name, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write repo: %w", err)
	}
	return nil
}

// WriteAction appends an action to the journal.
// Uses ON CONFLICT(repo_id, id) DO NOTHING for idempotency - an action
// already journaled is silently ignored. The repository is registered
// implicitly so received actions never fail on the foreign key.
//
// WriteAction implements issues.Journal.
func (s *Store) WriteAction(ctx context.Context, repo issues.RepoID, issueID cob.ActionID, a cob.Action) error {
	opJSON, err := marshalOp(a.Op)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	parentsJSON, err := marshalParents(a.Parents)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write action: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO repos (id, name, created_at)
		VALUES (?, '', ?)
		ON CONFLICT(id) DO NOTHING
	`, string(repo), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("write action: register repo: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO actions
		(id, repo_id, issue_id, author, timestamp, parents, op, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, id) DO NOTHING
	`,
		string(a.ID),
		string(repo),
		string(issueID),
		string(a.Author),
		a.Timestamp,
		parentsJSON,
		opJSON,
		a.Signature,
	); err != nil {
		return fmt.Errorf("write action: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write action: commit: %w", err)
	}
	return nil
}
