package query

import (
	"testing"

	"github.com/roach88/cobs/internal/cob"
	"github.com/stretchr/testify/assert"
)

type mapResolver map[cob.PublicKey]string

func (m mapResolver) Resolve(k cob.PublicKey) (string, bool) {
	a, ok := m[k]
	return a, ok
}

func TestDecorate(t *testing.T) {
	in := cob.Issue{
		ID:        "i1",
		Author:    "key-alice",
		Assignees: []cob.PublicKey{"key-bob", "key-unknown"},
		Comments:  []cob.CommentEntry{{ID: "c1", Author: "key-bob"}},
	}
	before := in

	v := Decorate(in, mapResolver{"key-alice": "alice", "key-bob": "bob"})

	assert.Equal(t, Identity{Key: "key-alice", Alias: "alice"}, v.AuthorIdentity)
	assert.Equal(t, []Identity{
		{Key: "key-bob", Alias: "bob"},
		{Key: "key-unknown"},
	}, v.AssigneeIdentities)
	assert.Equal(t, Identity{Key: "key-bob", Alias: "bob"}, v.CommentAuthors["c1"])
	assert.Equal(t, before, v.Issue)
	assert.Equal(t, before, in, "decoration never touches the issue")
}

func TestDecorate_NilResolver(t *testing.T) {
	v := Decorate(cob.Issue{Author: "key"}, nil)
	assert.Equal(t, Identity{Key: "key"}, v.AuthorIdentity)
	assert.Empty(t, v.AssigneeIdentities)
	assert.Nil(t, v.CommentAuthors)
}

func TestIdentity_Label(t *testing.T) {
	assert.Equal(t, "alice", Identity{Key: "abcdef0123456789", Alias: "alice"}.Label())
	assert.Equal(t, "abcdef…456789", Identity{Key: "abcdef0123456789"}.Label())
	assert.Equal(t, "short", Identity{Key: "short"}.Label())
}

func TestDecorateAll(t *testing.T) {
	all := []cob.Issue{{ID: "a"}, {ID: "b"}}
	views := DecorateAll(all, nil)
	assert.Len(t, views, 2)
	assert.Equal(t, cob.ActionID("b"), views[1].ID)
}
