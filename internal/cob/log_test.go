package cob

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendCreate(t *testing.T) {
	log := NewLog()
	root := mustAction(t, alice, 1, Create{Title: "T"})

	require.NoError(t, log.Append(root))

	id, ok := log.Root()
	assert.True(t, ok)
	assert.Equal(t, root.ID, id)
	assert.Equal(t, 1, log.Len())
	assert.Equal(t, []ActionID{root.ID}, log.Heads())
}

func TestLog_MissingCreate(t *testing.T) {
	log := NewLog()
	root := mustAction(t, alice, 1, Create{Title: "T"})
	edit := mustAction(t, alice, 2, SetTitle{Title: "U"}, root.ID)

	err := log.Append(edit)
	require.Error(t, err)
	assert.True(t, IsMissingCreate(err))
	assert.Equal(t, 0, log.Len())
}

func TestLog_SecondCreateRejected(t *testing.T) {
	log := NewLog()
	mustAppend(t, log, mustAction(t, alice, 1, Create{Title: "T"}))

	err := log.Append(mustAction(t, bob, 1, Create{Title: "T"}))
	assert.True(t, IsInvalidAction(err))
	assert.Equal(t, 1, log.Len())
}

func TestLog_CreateWithParentsRejected(t *testing.T) {
	other := mustAction(t, alice, 1, Create{Title: "other"})
	create := mustAction(t, alice, 2, Create{Title: "T"}, other.ID)

	err := NewLog().Append(create)
	assert.True(t, IsInvalidAction(err))
}

func TestLog_CausalRejectionLeavesLogUnchanged(t *testing.T) {
	log := NewLog()
	root := mustAction(t, alice, 1, Create{Title: "T"})
	mustAppend(t, log, root)

	phantom := mustAction(t, bob, 2, SetTitle{Title: "phantom"}, root.ID)
	orphan := mustAction(t, bob, 3, AddLabel{Label: "x"}, phantom.ID)

	before := log.Clone()
	err := log.Append(orphan)
	require.Error(t, err)
	assert.True(t, IsCausality(err))

	var cobErr *Error
	require.ErrorAs(t, err, &cobErr)
	assert.Equal(t, orphan.ID, cobErr.ActionID)

	assert.Equal(t, before, log)
	assert.False(t, log.Has(orphan.ID))
}

func TestLog_NoParentsIsCausality(t *testing.T) {
	log := NewLog()
	mustAppend(t, log, mustAction(t, alice, 1, Create{Title: "T"}))

	err := log.Append(mustAction(t, alice, 2, SetTitle{Title: "U"}))
	assert.True(t, IsCausality(err))
	assert.Equal(t, 1, log.Len())
}

func TestLog_DuplicateAppendIsNoop(t *testing.T) {
	log := NewLog()
	root := mustAction(t, alice, 1, Create{Title: "T"})
	edit := mustAction(t, alice, 2, SetTitle{Title: "U"}, root.ID)
	mustAppend(t, log, root, edit, edit, root)

	assert.Equal(t, 2, log.Len())
	assert.Equal(t, []ActionID{edit.ID}, log.Heads())
}

func TestLog_TamperedActionRejected(t *testing.T) {
	log := NewLog()
	root := mustAction(t, alice, 1, Create{Title: "T"})
	root.Timestamp = 99

	assert.True(t, IsInvalidAction(log.Append(root)))
	assert.Equal(t, 0, log.Len())
}

func TestLog_Heads(t *testing.T) {
	log := NewLog()
	root := mustAction(t, alice, 1, Create{Title: "T"})
	a := mustAction(t, alice, 2, AddLabel{Label: "a"}, root.ID)
	b := mustAction(t, bob, 2, AddLabel{Label: "b"}, root.ID)
	mustAppend(t, log, root, a, b)

	heads := log.Heads()
	assert.ElementsMatch(t, []ActionID{a.ID, b.ID}, heads)
	assert.True(t, slices.IsSorted(heads))
	assert.Equal(t, int64(2), log.MaxTimestamp(heads...))

	merge := mustAction(t, carol, 3, AddLabel{Label: "c"}, heads...)
	mustAppend(t, log, merge)
	assert.Equal(t, []ActionID{merge.ID}, log.Heads())
}

func TestLog_IterateTieBreak(t *testing.T) {
	root := mustAction(t, carol, 1, Create{Title: "T"})
	// bob's action is older but alice sorts first.
	fromBob := mustAction(t, bob, 10, SetTitle{Title: "B"}, root.ID)
	fromAlice := mustAction(t, alice, 20, SetTitle{Title: "A"}, root.ID)
	child := mustAction(t, alice, 30, SetTitle{Title: "C"}, fromBob.ID)

	log := NewLog()
	mustAppend(t, log, root, fromBob, child, fromAlice)

	var order []ActionID
	for a := range log.Iterate() {
		order = append(order, a.ID)
	}
	assert.Equal(t, []ActionID{root.ID, fromAlice.ID, fromBob.ID, child.ID}, order)
}

func TestLog_IterateIndependentOfInsertionOrder(t *testing.T) {
	root := mustAction(t, alice, 1, Create{Title: "T"})
	actions := []Action{
		root,
		mustAction(t, alice, 2, AddLabel{Label: "a"}, root.ID),
		mustAction(t, bob, 2, AddLabel{Label: "b"}, root.ID),
		mustAction(t, carol, 2, AddLabel{Label: "c"}, root.ID),
	}

	want := deliver(t, actions).Actions()
	for _, order := range permutations(actions) {
		assert.Equal(t, want, deliver(t, order).Actions())
	}
}

func TestLog_IterateRestartable(t *testing.T) {
	log := NewLog()
	root := mustAction(t, alice, 1, Create{Title: "T"})
	mustAppend(t, log, root)

	seq := log.Iterate()
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, 1, count())

	mustAppend(t, log, mustAction(t, alice, 2, AddLabel{Label: "x"}, root.ID))
	assert.Equal(t, 2, count(), "each range reflects the current content")

	for range seq {
		break
	}
}

func TestLog_CloneIsIndependent(t *testing.T) {
	log := NewLog()
	root := mustAction(t, alice, 1, Create{Title: "T"})
	mustAppend(t, log, root)

	clone := log.Clone()
	mustAppend(t, clone, mustAction(t, alice, 2, AddLabel{Label: "x"}, root.ID))

	assert.Equal(t, 1, log.Len())
	assert.Equal(t, 2, clone.Len())
	assert.Equal(t, []ActionID{root.ID}, log.Heads())
}
