// Package issues is the issue store: a per-repository collection of action
// logs and their materialized issues.
//
// The store is the only writer of issue logs. Local edits go through Create
// and Apply, which sign a new action; actions from other replicas or from
// the journal go through Receive and Restore. Every write follows the same
// path: append to a clone of the log, materialize the clone, journal the
// action, then swap the clone in. A failed write leaves nothing behind.
//
// Concurrency: writes to the same issue are serialized by a per-issue lock;
// writes to different issues proceed in parallel. Reads return snapshots.
package issues
