// Package cob implements the issue collaborative object: an issue whose
// current value is a deterministic fold over an append-only log of signed
// actions.
//
// The package has three layers:
//   - Op and Action: the closed set of operations and the signed, content
//     addressed envelope that carries one of them
//   - Log: the per-issue action graph, with causal append rules and a
//     deterministic iteration order
//   - Materialize: the pure fold from a Log to an Issue view
//
// # Ordering
//
// Log.Iterate yields actions in topological order. When several actions are
// ready at once (none depends on another) the one with the lowest
// (author, timestamp, id) triple comes first. The order depends only on the
// set of actions in the log, never on arrival order, so every replica that
// holds the same actions materializes the same Issue.
//
// Last-writer-wins fields take the value of the last action in that order.
// Set fields apply adds and removes in that order, so the later operation
// wins a concurrent add/remove race.
//
// # Concurrency
//
// Log is not safe for concurrent mutation. Callers (the issues store) hold a
// per-issue lock while appending and publish appended logs as immutable
// snapshots.
package cob
