package cob

import (
	"container/heap"
	"fmt"
	"iter"
	"maps"
	"slices"
)

// Log is the append-only action graph of one issue.
//
// Invariants, enforced by Append:
//   - the first action is a Create with no parents
//   - every other action names at least one parent, and every parent is
//     already in the log
//   - actions are never removed or replaced
type Log struct {
	root    ActionID
	actions map[ActionID]Action
	heads   map[ActionID]struct{}
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{
		actions: make(map[ActionID]Action),
		heads:   make(map[ActionID]struct{}),
	}
}

// Len returns the number of actions in the log.
func (l *Log) Len() int {
	return len(l.actions)
}

// Root returns the id of the Create action, if the log has one.
func (l *Log) Root() (ActionID, bool) {
	return l.root, l.root != ""
}

// Has reports whether the action is in the log.
func (l *Log) Has(id ActionID) bool {
	_, ok := l.actions[id]
	return ok
}

// Get returns an action by id.
func (l *Log) Get(id ActionID) (Action, bool) {
	a, ok := l.actions[id]
	return a, ok
}

// Heads returns the ids of actions no other action builds on, sorted.
// New local actions use the heads as parents.
func (l *Log) Heads() []ActionID {
	return slices.Sorted(maps.Keys(l.heads))
}

// MaxTimestamp returns the largest timestamp among the given actions.
func (l *Log) MaxTimestamp(ids ...ActionID) int64 {
	var ts int64
	for _, id := range ids {
		if a, ok := l.actions[id]; ok && a.Timestamp > ts {
			ts = a.Timestamp
		}
	}
	return ts
}

// Check reports whether a could be appended, without mutating the log.
// A nil error for an action already present means Append is a no-op.
func (l *Log) Check(a Action) error {
	if err := a.Verify(); err != nil {
		return err
	}
	if l.Has(a.ID) {
		return nil
	}

	if a.IsCreate() {
		if l.root != "" {
			return NewInvalidActionError(a.ID, fmt.Sprintf("log already has create action %s", l.root.Short()))
		}
		if len(a.Parents) > 0 {
			return NewInvalidActionError(a.ID, "create action cannot have parents")
		}
		return nil
	}

	if l.root == "" {
		return NewMissingCreateError(a.ID)
	}
	if len(a.Parents) == 0 {
		return NewCausalityError(a.ID, "")
	}
	for _, p := range a.Parents {
		if !l.Has(p) {
			return NewCausalityError(a.ID, p)
		}
	}
	return nil
}

// Append adds an action to the log. Appending an action that is already
// present is a no-op. On error the log is unchanged.
func (l *Log) Append(a Action) error {
	if err := l.Check(a); err != nil {
		return err
	}
	if l.Has(a.ID) {
		return nil
	}

	a.Parents = normalizeParents(a.Parents)
	l.actions[a.ID] = a
	if a.IsCreate() {
		l.root = a.ID
	}
	for _, p := range a.Parents {
		delete(l.heads, p)
	}
	l.heads[a.ID] = struct{}{}
	return nil
}

// Clone returns an independent copy. Actions are immutable values, so the
// copy shares them.
func (l *Log) Clone() *Log {
	return &Log{
		root:    l.root,
		actions: maps.Clone(l.actions),
		heads:   maps.Clone(l.heads),
	}
}

// Iterate yields the actions in causal order, breaking ties between
// concurrent actions by (author, timestamp, id), lowest first.
//
// The sequence is lazy and restartable: each range computes the order from
// the log's content at that moment.
func (l *Log) Iterate() iter.Seq[Action] {
	return func(yield func(Action) bool) {
		for _, id := range l.order() {
			if !yield(l.actions[id]) {
				return
			}
		}
	}
}

// Actions returns the actions in Iterate order.
func (l *Log) Actions() []Action {
	return slices.Collect(l.Iterate())
}

// order is Kahn's topological sort with a priority queue over the ready set.
// The result depends only on the set of actions, not on insertion order.
func (l *Log) order() []ActionID {
	pending := make(map[ActionID]int, len(l.actions))
	children := make(map[ActionID][]ActionID, len(l.actions))
	ready := &readyQueue{log: l}

	for id, a := range l.actions {
		pending[id] = len(a.Parents)
		for _, p := range a.Parents {
			children[p] = append(children[p], id)
		}
		if len(a.Parents) == 0 {
			ready.ids = append(ready.ids, id)
		}
	}
	heap.Init(ready)

	out := make([]ActionID, 0, len(l.actions))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(ActionID)
		out = append(out, id)
		for _, c := range children[id] {
			pending[c]--
			if pending[c] == 0 {
				heap.Push(ready, c)
			}
		}
	}
	return out
}

// readyQueue is a min-heap of action ids ordered by compareActions.
type readyQueue struct {
	log *Log
	ids []ActionID
}

func (q *readyQueue) Len() int { return len(q.ids) }

func (q *readyQueue) Less(i, j int) bool {
	return compareActions(q.log.actions[q.ids[i]], q.log.actions[q.ids[j]]) < 0
}

func (q *readyQueue) Swap(i, j int) { q.ids[i], q.ids[j] = q.ids[j], q.ids[i] }

func (q *readyQueue) Push(x any) { q.ids = append(q.ids, x.(ActionID)) }

func (q *readyQueue) Pop() any {
	n := len(q.ids)
	id := q.ids[n-1]
	q.ids = q.ids[:n-1]
	return id
}
