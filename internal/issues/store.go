package issues

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/cobs/internal/cob"
)

// Store holds the action logs of every known issue, grouped by repository.
type Store struct {
	mu    sync.RWMutex
	repos map[RepoID]*repo

	journal Journal
	logger  *slog.Logger
	now     func() time.Time
	clock   *cob.Clock
}

// repo holds the issues of one repository. reserved marks Create actions
// being journaled; the channel closes when the insert settles.
type repo struct {
	mu       sync.RWMutex
	issues   map[cob.ActionID]*entry
	reserved map[cob.ActionID]chan struct{}
}

// entry pairs a log with its materialization. mu is held for the whole of a
// write, which serializes writers on the same issue.
type entry struct {
	mu    sync.RWMutex
	log   *cob.Log
	issue cob.Issue
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		repos:  make(map[RepoID]*repo),
		logger: discardLogger(),
		now:    time.Now,
		clock:  cob.NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddRepo registers a repository with no issues. Adding an existing
// repository is a no-op.
func (s *Store) AddRepo(id RepoID) {
	s.repo(id, true)
}

// Repos returns the known repositories, sorted.
func (s *Store) Repos() []RepoID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.repos))
}

// Create signs a Create action for n and stores the new issue.
// Returns DUPLICATE_ID if an issue with the resulting id already exists.
func (s *Store) Create(ctx context.Context, repoID RepoID, n NewIssue, signer cob.Signer) (cob.Issue, error) {
	if err := ctx.Err(); err != nil {
		return cob.Issue{}, err
	}

	ts := s.clock.Tick(s.now().UnixMilli(), 0)
	a, err := cob.NewAction(n.Op(), nil, ts, signer)
	if err != nil {
		return cob.Issue{}, fmt.Errorf("create issue: %w", err)
	}

	e, created, err := s.insert(ctx, repoID, a, true)
	if err != nil {
		return cob.Issue{}, fmt.Errorf("create issue: %w", err)
	}
	if !created {
		return cob.Issue{}, cob.NewDuplicateIDError(a.ID)
	}

	s.logger.Debug("issue created", "repo", repoID, "issue", a.ID.Short(), "author", a.Author.Short())
	return e.issue, nil
}

// Apply signs an action carrying op and appends it to the issue's log.
//
// The action's parents are the current heads unless WithParents is given.
// Returns NOT_FOUND for an unknown issue and CAUSALITY if a named parent is
// not in the log. On error the issue is unchanged.
func (s *Store) Apply(ctx context.Context, repoID RepoID, id cob.ActionID, op cob.Op, signer cob.Signer, opts ...ApplyOption) (cob.Issue, error) {
	var cfg applyConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := ctx.Err(); err != nil {
		return cob.Issue{}, err
	}
	if _, ok := op.(cob.Create); ok {
		return cob.Issue{}, withIssue(cob.NewInvalidActionError("", "create cannot be applied to an existing issue"), id)
	}

	e, ok := s.entry(repoID, id)
	if !ok {
		return cob.Issue{}, cob.NewNotFoundError(id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	parents := cfg.parents
	if len(parents) == 0 {
		parents = e.log.Heads()
	}
	ts := s.clock.Tick(s.now().UnixMilli(), e.log.MaxTimestamp(parents...))

	a, err := cob.NewAction(op, parents, ts, signer)
	if err != nil {
		return cob.Issue{}, fmt.Errorf("apply %s: %w", op.Kind(), withIssue(err, id))
	}

	next, err := s.commit(ctx, repoID, id, e.log, a, true)
	if err != nil {
		return cob.Issue{}, fmt.Errorf("apply %s: %w", op.Kind(), err)
	}
	e.log, e.issue = next.log, next.issue

	s.logger.Debug("action applied",
		"repo", repoID,
		"issue", id.Short(),
		"action", a.ID.Short(),
		"op", op.Kind(),
		"parents", len(a.Parents),
	)
	return e.issue, nil
}

// Receive ingests an action signed elsewhere and journals it.
//
// A Create action starts a new issue whose id must equal the action id.
// Any other action for an issue this store has not seen returns
// MISSING_CREATE; callers buffer it until the Create arrives. Receiving an
// action already present is a no-op.
func (s *Store) Receive(ctx context.Context, repoID RepoID, issueID cob.ActionID, a cob.Action) (cob.Issue, error) {
	return s.receive(ctx, repoID, issueID, a, true)
}

// Restore is Receive without journaling. Used when rebuilding the store
// from the journal itself.
func (s *Store) Restore(ctx context.Context, repoID RepoID, issueID cob.ActionID, a cob.Action) (cob.Issue, error) {
	return s.receive(ctx, repoID, issueID, a, false)
}

func (s *Store) receive(ctx context.Context, repoID RepoID, issueID cob.ActionID, a cob.Action, journal bool) (cob.Issue, error) {
	if err := ctx.Err(); err != nil {
		return cob.Issue{}, err
	}
	if err := a.Verify(); err != nil {
		return cob.Issue{}, withIssue(err, issueID)
	}

	if a.IsCreate() {
		if a.ID != issueID {
			return cob.Issue{}, withIssue(cob.NewInvalidActionError(a.ID, "create action id does not match issue id"), issueID)
		}
		e, created, err := s.insert(ctx, repoID, a, journal)
		if err != nil {
			return cob.Issue{}, fmt.Errorf("receive: %w", err)
		}
		if !created {
			e.mu.RLock()
			defer e.mu.RUnlock()
			return e.issue, nil
		}
		s.clock.Observe(a.Timestamp)
		s.logger.Debug("issue received", "repo", repoID, "issue", issueID.Short())
		return e.issue, nil
	}

	e, ok := s.entry(repoID, issueID)
	if !ok {
		return cob.Issue{}, withIssue(cob.NewMissingCreateError(a.ID), issueID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.log.Has(a.ID) {
		return e.issue, nil
	}
	next, err := s.commit(ctx, repoID, issueID, e.log, a, journal)
	if err != nil {
		return cob.Issue{}, fmt.Errorf("receive: %w", err)
	}
	e.log, e.issue = next.log, next.issue
	s.clock.Observe(a.Timestamp)

	s.logger.Debug("action received", "repo", repoID, "issue", issueID.Short(), "action", a.ID.Short(), "op", a.Op.Kind())
	return e.issue, nil
}

// insert stores the issue rooted at the Create action a. The repository
// lock is held only to reserve the id, never across the journal write.
// created is false when the issue already exists; e is then the existing
// entry.
func (s *Store) insert(ctx context.Context, repoID RepoID, a cob.Action, journal bool) (e *entry, created bool, err error) {
	r := s.repo(repoID, true)
	for {
		r.mu.Lock()
		if e, ok := r.issues[a.ID]; ok {
			r.mu.Unlock()
			return e, false, nil
		}
		settled, busy := r.reserved[a.ID]
		if !busy {
			break
		}
		r.mu.Unlock()
		select {
		case <-settled:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	done := make(chan struct{})
	r.reserved[a.ID] = done
	r.mu.Unlock()

	e, err = s.commit(ctx, repoID, a.ID, cob.NewLog(), a, journal)

	r.mu.Lock()
	delete(r.reserved, a.ID)
	if err == nil {
		r.issues[a.ID] = e
	}
	r.mu.Unlock()
	close(done)
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// commit appends a to a clone of log, materializes it and journals a.
// The returned entry is not yet visible; the caller swaps it in.
func (s *Store) commit(ctx context.Context, repoID RepoID, issueID cob.ActionID, log *cob.Log, a cob.Action, journal bool) (*entry, error) {
	next := log.Clone()
	if err := next.Append(a); err != nil {
		return nil, withIssue(err, issueID)
	}
	issue, err := cob.Materialize(next)
	if err != nil {
		return nil, withIssue(err, issueID)
	}
	if journal && s.journal != nil {
		if err := s.journal.WriteAction(ctx, repoID, issueID, a); err != nil {
			s.logger.Error("journal write failed",
				"repo", repoID,
				"issue", issueID.Short(),
				"action", a.ID.Short(),
				"error", err,
			)
			return nil, fmt.Errorf("journal action %s: %w", a.ID.Short(), err)
		}
	}
	return &entry{log: next, issue: issue}, nil
}

// Get returns the current materialization of an issue.
func (s *Store) Get(repoID RepoID, id cob.ActionID) (cob.Issue, bool) {
	e, ok := s.entry(repoID, id)
	if !ok {
		return cob.Issue{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.issue, true
}

// List returns the issues of a repository as they are at the time of the
// call. The sequence is restartable and unordered; use the query package to
// filter and sort.
func (s *Store) List(repoID RepoID) iter.Seq[cob.Issue] {
	r := s.repo(repoID, false)
	if r == nil {
		return func(func(cob.Issue) bool) {}
	}

	r.mu.RLock()
	entries := slices.Collect(maps.Values(r.issues))
	r.mu.RUnlock()

	snapshot := make([]cob.Issue, 0, len(entries))
	for _, e := range entries {
		e.mu.RLock()
		snapshot = append(snapshot, e.issue)
		e.mu.RUnlock()
	}
	return slices.Values(snapshot)
}

// Log returns the actions of an issue in fold order.
func (s *Store) Log(repoID RepoID, id cob.ActionID) ([]cob.Action, error) {
	e, ok := s.entry(repoID, id)
	if !ok {
		return nil, cob.NewNotFoundError(id)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Actions(), nil
}

// Heads returns the current heads of an issue's log.
func (s *Store) Heads(repoID RepoID, id cob.ActionID) ([]cob.ActionID, error) {
	e, ok := s.entry(repoID, id)
	if !ok {
		return nil, cob.NewNotFoundError(id)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.log.Heads(), nil
}

// repo returns the repository, creating it when create is set.
func (s *Store) repo(id RepoID, create bool) *repo {
	s.mu.RLock()
	r, ok := s.repos[id]
	s.mu.RUnlock()
	if ok || !create {
		return r
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.repos[id]; ok {
		return r
	}
	r = &repo{
		issues:   make(map[cob.ActionID]*entry),
		reserved: make(map[cob.ActionID]chan struct{}),
	}
	s.repos[id] = r
	return r
}

func (s *Store) entry(repoID RepoID, id cob.ActionID) (*entry, bool) {
	r := s.repo(repoID, false)
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.issues[id]
	return e, ok
}

// withIssue fills in the issue id of a cob error that lacks one.
func withIssue(err error, id cob.ActionID) error {
	var e *cob.Error
	if errors.As(err, &e) && e.IssueID == "" {
		e.IssueID = id
	}
	return err
}
