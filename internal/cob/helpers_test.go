package cob

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testSigner signs with its own name, so authors order alphabetically.
type testSigner PublicKey

func (s testSigner) PublicKey() PublicKey { return PublicKey(s) }

func (s testSigner) Sign(payload []byte) ([]byte, error) {
	return []byte("sig:" + string(s)), nil
}

const (
	alice = testSigner("alice")
	bob   = testSigner("bob")
	carol = testSigner("carol")
)

func mustAction(t *testing.T, signer Signer, ts int64, op Op, parents ...ActionID) Action {
	t.Helper()
	a, err := NewAction(op, parents, ts, signer)
	require.NoError(t, err)
	return a
}

func mustAppend(t *testing.T, log *Log, actions ...Action) {
	t.Helper()
	for _, a := range actions {
		require.NoError(t, log.Append(a), "append %s", a.Op.Kind())
	}
}

func mustMaterialize(t *testing.T, log *Log) Issue {
	t.Helper()
	issue, err := Materialize(log)
	require.NoError(t, err)
	return issue
}

// deliver appends actions in the given order, buffering any whose parents
// have not arrived yet, until no more progress is possible.
func deliver(t *testing.T, actions []Action) *Log {
	t.Helper()
	log := NewLog()
	pending := append([]Action(nil), actions...)
	for len(pending) > 0 {
		var next []Action
		for _, a := range pending {
			err := log.Append(a)
			switch {
			case err == nil:
			case IsCausality(err), IsMissingCreate(err):
				next = append(next, a)
			default:
				require.NoError(t, err)
			}
		}
		require.Less(t, len(next), len(pending), "delivery made no progress")
		pending = next
	}
	return log
}

// permutations returns every ordering of actions.
func permutations(actions []Action) [][]Action {
	if len(actions) <= 1 {
		return [][]Action{append([]Action(nil), actions...)}
	}
	var out [][]Action
	for i := range actions {
		rest := make([]Action, 0, len(actions)-1)
		rest = append(rest, actions[:i]...)
		rest = append(rest, actions[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]Action{actions[i]}, p...))
		}
	}
	return out
}
