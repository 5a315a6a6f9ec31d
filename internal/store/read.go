package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/issues"
)

// Repo is a registered repository.
type Repo struct {
	ID        issues.RepoID `json:"id"`
	Name      string        `json:"name"`
	CreatedAt int64         `json:"created_at"`
}

// Record is a journaled action with its location.
type Record struct {
	Seq     int64
	Repo    issues.RepoID
	IssueID cob.ActionID
	Action  cob.Action
}

// ReadRepos returns every registered repository, ordered by id.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadRepos(ctx context.Context) ([]Repo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at
		FROM repos
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query repos: %w", err)
	}
	defer rows.Close()

	repos := []Repo{}
	for rows.Next() {
		var r Repo
		var id string
		if err := rows.Scan(&id, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan repo: %w", err)
		}
		r.ID = issues.RepoID(id)
		repos = append(repos, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repos: %w", err)
	}
	return repos, nil
}

// HasRepo reports whether a repository is registered.
func (s *Store) HasRepo(ctx context.Context, id issues.RepoID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM repos WHERE id = ?`, string(id)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has repo: %w", err)
	}
	return n > 0, nil
}

// ReadIssueActions returns the journaled actions of one issue in seq order.
// Returns an empty slice (not nil) if the issue is unknown.
func (s *Store) ReadIssueActions(ctx context.Context, repo issues.RepoID, issueID cob.ActionID) ([]cob.Action, error) {
	records, err := s.queryRecords(ctx, `
		SELECT seq, repo_id, issue_id, id, author, timestamp, parents, op, signature
		FROM actions
		WHERE repo_id = ? AND issue_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, string(repo), string(issueID))
	if err != nil {
		return nil, fmt.Errorf("read issue actions: %w", err)
	}
	actions := make([]cob.Action, 0, len(records))
	for _, r := range records {
		actions = append(actions, r.Action)
	}
	return actions, nil
}

// ReadAllActions returns every journaled action in seq order.
func (s *Store) ReadAllActions(ctx context.Context) ([]Record, error) {
	records, err := s.queryRecords(ctx, `
		SELECT seq, repo_id, issue_id, id, author, timestamp, parents, op, signature
		FROM actions
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read all actions: %w", err)
	}
	return records, nil
}

// CountActions returns the number of journaled actions.
func (s *Store) CountActions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM actions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count actions: %w", err)
	}
	return n, nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r                         Record
		repo, issueID, id, author string
		parentsJSON, opJSON       string
		signature                 []byte
	)
	if err := rows.Scan(&r.Seq, &repo, &issueID, &id, &author, &r.Action.Timestamp, &parentsJSON, &opJSON, &signature); err != nil {
		return Record{}, fmt.Errorf("scan action: %w", err)
	}

	parents, err := unmarshalParents(parentsJSON)
	if err != nil {
		return Record{}, fmt.Errorf("action %s: %w", id, err)
	}
	op, err := unmarshalOp(opJSON)
	if err != nil {
		return Record{}, fmt.Errorf("action %s: %w", id, err)
	}

	r.Repo = issues.RepoID(repo)
	r.IssueID = cob.ActionID(issueID)
	r.Action.ID = cob.ActionID(id)
	r.Action.Author = cob.PublicKey(author)
	r.Action.Parents = parents
	r.Action.Op = op
	r.Action.Signature = signature
	return r, nil
}
