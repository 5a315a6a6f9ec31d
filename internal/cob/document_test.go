package cob

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpDocument_Op(t *testing.T) {
	closed := Closed(ReasonSolved)
	active := false

	tests := []struct {
		name string
		doc  OpDocument
		want Op
	}{
		{"create", OpDocument{Type: KindCreate, Title: "T", Labels: []string{"bug"}}, Create{Title: "T", Labels: []string{"bug"}}},
		{"title", OpDocument{Type: KindSetTitle, Title: "T"}, SetTitle{Title: "T"}},
		{"description", OpDocument{Type: KindSetDescription}, SetDescription{}},
		{"lifecycle", OpDocument{Type: KindSetStatus, State: &closed}, SetStatus{State: closed}},
		{"label add", OpDocument{Type: KindAddLabel, Label: "x"}, AddLabel{Label: "x"}},
		{"label remove", OpDocument{Type: KindRemoveLabel, Label: "x"}, RemoveLabel{Label: "x"}},
		{"assignee add", OpDocument{Type: KindAddAssignee, Assignee: "bob"}, AddAssignee{Assignee: "bob"}},
		{"assignee remove", OpDocument{Type: KindRemoveAssignee, Assignee: "bob"}, RemoveAssignee{Assignee: "bob"}},
		{"embed add", OpDocument{Type: KindAddEmbed, Embed: &Embed{Name: "a", Content: "b"}}, AddEmbed{Embed: Embed{Name: "a", Content: "b"}}},
		{"embed remove", OpDocument{Type: KindRemoveEmbed, Name: "a"}, RemoveEmbed{Name: "a"}},
		{"comment", OpDocument{Type: KindComment, Body: "hi", ReplyTo: "c1"}, Comment{Body: "hi", ReplyTo: "c1"}},
		{"comment edit", OpDocument{Type: KindEditComment, ID: "c1", Body: "hi"}, EditComment{ID: "c1", Body: "hi"}},
		{"comment redact", OpDocument{Type: KindRedactComment, ID: "c1"}, RedactComment{ID: "c1"}},
		{"react default active", OpDocument{Type: KindReactComment, ID: "c1", Reaction: "+1"}, ReactComment{ID: "c1", Reaction: "+1", Active: true}},
		{"react inactive", OpDocument{Type: KindReactComment, ID: "c1", Reaction: "+1", Active: &active}, ReactComment{ID: "c1", Reaction: "+1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.doc.Op()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.doc.Type, got.Kind())
		})
	}
}

func TestOpDocument_Op_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  OpDocument
	}{
		{"missing type", OpDocument{}},
		{"unknown type", OpDocument{Type: "merge"}},
		{"empty title", OpDocument{Type: KindSetTitle}},
		{"missing state", OpDocument{Type: KindSetStatus}},
		{"bad status", OpDocument{Type: KindSetStatus, State: &State{Status: "archived"}}},
		{"closed without reason", OpDocument{Type: KindSetStatus, State: &State{Status: StatusClosed}}},
		{"open with reason", OpDocument{Type: KindSetStatus, State: &State{Status: StatusOpen, Reason: ReasonSolved}}},
		{"blank label", OpDocument{Type: KindAddLabel, Label: "  "}},
		{"missing embed", OpDocument{Type: KindAddEmbed}},
		{"embed without content", OpDocument{Type: KindAddEmbed, Embed: &Embed{Name: "a"}}},
		{"empty comment", OpDocument{Type: KindComment}},
		{"edit without id", OpDocument{Type: KindEditComment, Body: "x"}},
		{"react without reaction", OpDocument{Type: KindReactComment, ID: "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.doc.Op()
			require.Error(t, err)
			assert.True(t, IsInvalidAction(err))
		})
	}
}

func TestOpDocument_JSONShape(t *testing.T) {
	doc := DocumentOf(SetStatus{State: Closed(ReasonOther)})
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"lifecycle","state":{"status":"closed","reason":"other"}}`, string(data))
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "bug", NormalizeLabel("  bug\n"))
	assert.Equal(t, "\u00e9t\u00e9", NormalizeLabel("e\u0301te\u0301"))
}
