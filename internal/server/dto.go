package server

import (
	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/query"
)

// ApplyRequest is the body of an edit: one operation and, optionally, the
// actions it follows. Without parents the action follows the current heads.
type ApplyRequest struct {
	Op      cob.OpDocument `json:"op"`
	Parents []cob.ActionID `json:"parents,omitempty"`
}

// IssueResponse is an issue with its identities resolved.
type IssueResponse struct {
	ID          cob.ActionID      `json:"id"`
	Author      query.Identity    `json:"author"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	State       cob.State         `json:"state"`
	Labels      []string          `json:"labels"`
	Assignees   []query.Identity  `json:"assignees"`
	Embeds      []cob.EmbedEntry  `json:"embeds"`
	Comments    []CommentResponse `json:"comments"`
	Timestamp   int64             `json:"timestamp"`
	Actions     int               `json:"actions"`
}

type CommentResponse struct {
	ID        cob.ActionID      `json:"id"`
	Author    query.Identity    `json:"author"`
	Body      string            `json:"body"`
	ReplyTo   cob.ActionID      `json:"reply_to,omitempty"`
	Embeds    []cob.Embed       `json:"embeds"`
	Edits     []cob.CommentEdit `json:"edits"`
	Reactions []cob.Reaction    `json:"reactions"`
	Redacted  bool              `json:"redacted"`
	Timestamp int64             `json:"timestamp"`
}

// ActionResponse is one entry of an issue's history.
type ActionResponse struct {
	ID        cob.ActionID   `json:"id"`
	Author    query.Identity `json:"author"`
	Timestamp int64          `json:"timestamp"`
	Parents   []cob.ActionID `json:"parents"`
	Op        cob.OpDocument `json:"op"`
}

type issueList struct {
	Items []IssueResponse `json:"items"`
}

type actionList struct {
	Items []ActionResponse `json:"items"`
}

func issueResponse(v query.View) IssueResponse {
	resp := IssueResponse{
		ID:          v.ID,
		Author:      v.AuthorIdentity,
		Title:       v.Title,
		Description: v.Description,
		State:       v.State,
		Labels:      nonNil(v.Labels),
		Assignees:   nonNil(v.AssigneeIdentities),
		Embeds:      nonNil(v.Embeds),
		Comments:    make([]CommentResponse, 0, len(v.Comments)),
		Timestamp:   v.Timestamp,
		Actions:     v.Actions,
	}
	for _, c := range v.Comments {
		author, ok := v.CommentAuthors[c.ID]
		if !ok {
			author = query.Identity{Key: c.Author}
		}
		resp.Comments = append(resp.Comments, CommentResponse{
			ID:        c.ID,
			Author:    author,
			Body:      c.Body,
			ReplyTo:   c.ReplyTo,
			Embeds:    nonNil(c.Embeds),
			Edits:     nonNil(c.Edits),
			Reactions: nonNil(c.Reactions),
			Redacted:  c.Redacted,
			Timestamp: c.Timestamp,
		})
	}
	return resp
}

func actionResponse(a cob.Action, r query.Resolver) ActionResponse {
	author := query.Identity{Key: a.Author}
	if r != nil {
		author.Alias, _ = r.Resolve(a.Author)
	}
	return ActionResponse{
		ID:        a.ID,
		Author:    author,
		Timestamp: a.Timestamp,
		Parents:   nonNil(a.Parents),
		Op:        cob.DocumentOf(a.Op),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
