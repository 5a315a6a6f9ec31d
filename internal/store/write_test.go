package store

import (
	"context"
	"testing"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ issues.Journal = (*Store)(nil)

func TestWriteRepo(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.WriteRepo(ctx, "r2", "second"))
	require.NoError(t, s.WriteRepo(ctx, "r1", "first"))
	require.NoError(t, s.WriteRepo(ctx, "r1", "renamed"))

	repos, err := s.ReadRepos(ctx)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, issues.RepoID("r1"), repos[0].ID)
	assert.Equal(t, "first", repos[0].Name, "first registration wins")
	assert.Positive(t, repos[0].CreatedAt)

	ok, err := s.HasRepo(ctx, "r2")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasRepo(ctx, "r3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteAction_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	_, issue := createJournaledIssue(t, s, "Bug A",
		cob.AddLabel{Label: "urgent"},
		cob.AddEmbed{Embed: cob.Embed{Name: "<trace>.txt", Content: "sha256:01&02"}},
		cob.Comment{Body: "see trace"},
		cob.SetStatus{State: cob.Closed(cob.ReasonSolved)},
	)

	actions, err := s.ReadIssueActions(ctx, testRepo, issue.ID)
	require.NoError(t, err)
	require.Len(t, actions, 5)

	log := cob.NewLog()
	for _, a := range actions {
		require.NoError(t, a.Verify(), "stored action must keep its content address")
		require.NoError(t, log.Append(a))
	}
	got, err := cob.Materialize(log)
	require.NoError(t, err)
	assert.Equal(t, issue, got)
}

func TestWriteAction_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	signer := testutil.NewSigner("alice")

	a, err := cob.NewAction(cob.Create{Title: "T"}, nil, 1, signer)
	require.NoError(t, err)

	require.NoError(t, s.WriteAction(ctx, testRepo, a.ID, a))
	require.NoError(t, s.WriteAction(ctx, testRepo, a.ID, a))

	n, err := s.CountActions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := s.HasRepo(ctx, testRepo)
	require.NoError(t, err)
	assert.True(t, ok, "writing an action registers its repository")
}

func TestWriteAction_SameActionDifferentRepos(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	a, err := cob.NewAction(cob.Create{Title: "T"}, nil, 1, testutil.NewSigner("alice"))
	require.NoError(t, err)
	require.NoError(t, s.WriteAction(ctx, "r1", a.ID, a))
	require.NoError(t, s.WriteAction(ctx, "r2", a.ID, a))

	n, err := s.CountActions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestReadIssueActions_Unknown(t *testing.T) {
	s := createTestStore(t)
	actions, err := s.ReadIssueActions(context.Background(), testRepo, "nope")
	require.NoError(t, err)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)
}

func TestMarshalOp_NoHTMLEscaping(t *testing.T) {
	data, err := marshalOp(cob.SetTitle{Title: "a < b & c"})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"title.set","title":"a < b & c"}`, data)

	op, err := unmarshalOp(data)
	require.NoError(t, err)
	assert.Equal(t, cob.SetTitle{Title: "a < b & c"}, op)
}

func TestUnmarshalOp_RejectsUnknownFields(t *testing.T) {
	_, err := unmarshalOp(`{"type":"title.set","title":"x","color":"red"}`)
	assert.Error(t, err)
}
