package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validID = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestOpTypes(t *testing.T) {
	types, err := OpTypes()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"assignee.add", "assignee.remove",
		"comment", "comment.edit", "comment.react", "comment.redact",
		"create", "description.set",
		"embed.add", "embed.remove",
		"label.add", "label.remove",
		"lifecycle", "title.set",
	}, types)
}

func TestValidateOp_Valid(t *testing.T) {
	docs := []string{
		`{"type":"create","title":"Bug A","labels":["bug"]}`,
		`{"type":"title.set","title":"New"}`,
		`{"type":"description.set","description":""}`,
		`{"type":"description.set"}`,
		`{"type":"lifecycle","state":{"status":"open"}}`,
		`{"type":"lifecycle","state":{"status":"closed","reason":"solved"}}`,
		`{"type":"label.add","label":"urgent"}`,
		`{"type":"assignee.remove","assignee":"abc123"}`,
		`{"type":"embed.add","embed":{"name":"a.png","content":"sha256:00"}}`,
		`{"type":"embed.remove","name":"a.png"}`,
		`{"type":"comment","body":"hi","reply_to":"` + validID + `"}`,
		`{"type":"comment.edit","id":"` + validID + `","body":"hi"}`,
		`{"type":"comment.edit","id":"` + validID + `","body":"hi","embeds":[{"name":"b.png","content":"sha256:bb"}]}`,
		`{"type":"comment.redact","id":"` + validID + `"}`,
		`{"type":"comment.react","id":"` + validID + `","reaction":"+1","active":false}`,
	}
	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			assert.NoError(t, ValidateOp([]byte(doc)))
		})
	}
}

func TestValidateOp_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"not json", `{"type":`, ErrCodeSyntax},
		{"array", `["title.set"]`, ErrCodeSyntax},
		{"missing type", `{"title":"x"}`, ErrCodeType},
		{"unknown type", `{"type":"merge"}`, ErrCodeType},
		{"blank title", `{"type":"title.set","title":"  "}`, ErrCodeInvalid},
		{"missing title", `{"type":"title.set"}`, ErrCodeInvalid},
		{"extra field", `{"type":"label.add","label":"x","color":"red"}`, ErrCodeInvalid},
		{"bad status", `{"type":"lifecycle","state":{"status":"archived"}}`, ErrCodeInvalid},
		{"closed without reason", `{"type":"lifecycle","state":{"status":"closed"}}`, ErrCodeInvalid},
		{"short comment id", `{"type":"comment.redact","id":"abc"}`, ErrCodeInvalid},
		{"edit embed without content", `{"type":"comment.edit","id":"` + validID + `","body":"hi","embeds":[{"name":"b.png"}]}`, ErrCodeInvalid},
		{"wrong field type", `{"type":"comment.react","id":"` + validID + `","reaction":"+1","active":"yes"}`, ErrCodeInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOp([]byte(tt.doc))
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.Equal(t, tt.code, verr.Code)
		})
	}
}

func TestValidateOp_DetailsNameField(t *testing.T) {
	err := ValidateOp([]byte(`{"type":"label.add","label":"x","color":"red"}`))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.Details)
	assert.Contains(t, err.Error(), "color")
}

func TestValidateNewIssue(t *testing.T) {
	assert.NoError(t, ValidateNewIssue([]byte(`{"title":"Bug A","description":"d","labels":["bug"],"assignees":["k1"],"embeds":[{"name":"a","content":"b"}]}`)))
	assert.NoError(t, ValidateNewIssue([]byte(`{"title":"Bug A"}`)))

	for _, doc := range []string{
		`{}`,
		`{"title":""}`,
		`{"title":"x","labels":[""]}`,
		`{"title":"x","type":"create"}`,
		`{"title":"x","embeds":[{"name":"a"}]}`,
	} {
		t.Run(doc, func(t *testing.T) {
			assert.Error(t, ValidateNewIssue([]byte(doc)))
		})
	}
}
