package cob

import (
	"slices"

	"github.com/roach88/cobs/internal/ir"
)

// Issue is the materialized view of an issue log. It is derived, never
// stored; Materialize returns equal values for logs with equal content.
type Issue struct {
	ID          ActionID       `json:"id"`
	Author      PublicKey      `json:"author"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	State       State          `json:"state"`
	Labels      []string       `json:"labels"`
	Assignees   []PublicKey    `json:"assignees"`
	Embeds      []EmbedEntry   `json:"embeds"`
	Comments    []CommentEntry `json:"comments"`
	Timestamp   int64          `json:"timestamp"`
	Actions     int            `json:"actions"`
}

// EmbedEntry is an attachment reference in insertion order. Removed entries
// stay in place so the positions of the others never shift.
type EmbedEntry struct {
	Embed
	Removed bool `json:"removed,omitempty"`
}

// CommentEntry is a comment in the issue thread.
type CommentEntry struct {
	ID        ActionID      `json:"id"`
	Author    PublicKey     `json:"author"`
	Body      string        `json:"body"`
	ReplyTo   ActionID      `json:"reply_to,omitempty"`
	Embeds    []Embed       `json:"embeds,omitempty"`
	Edits     []CommentEdit `json:"edits,omitempty"`
	Reactions []Reaction    `json:"reactions,omitempty"`
	Redacted  bool          `json:"redacted,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// CommentEdit records one applied edit of a comment.
type CommentEdit struct {
	Action    ActionID `json:"action"`
	Body      string   `json:"body"`
	Embeds    []Embed  `json:"embeds,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Reaction is one author's reaction to a comment.
type Reaction struct {
	Author   PublicKey `json:"author"`
	Reaction string    `json:"reaction"`
}

// LiveEmbeds returns the embeds that have not been removed.
func (i Issue) LiveEmbeds() []Embed {
	var out []Embed
	for _, e := range i.Embeds {
		if !e.Removed {
			out = append(out, e.Embed)
		}
	}
	return out
}

// HasLabel reports whether the issue carries label.
func (i Issue) HasLabel(label string) bool {
	_, ok := slices.BinarySearch(i.Labels, NormalizeLabel(label))
	return ok
}

// IsAssigned reports whether key is an assignee.
func (i Issue) IsAssigned(key PublicKey) bool {
	_, ok := slices.BinarySearch(i.Assignees, key)
	return ok
}

// Comment returns the comment with the given id.
func (i Issue) Comment(id ActionID) (CommentEntry, bool) {
	for _, c := range i.Comments {
		if c.ID == id {
			return c, true
		}
	}
	return CommentEntry{}, false
}

// Digest returns a content hash of the materialized issue. Two replicas
// holding the same actions produce the same digest.
func Digest(issue Issue) (string, error) {
	return ir.HashCanonical(ir.DomainSnapshot, issue.canonical())
}

func (i Issue) canonical() map[string]any {
	embeds := make([]any, 0, len(i.Embeds))
	for _, e := range i.Embeds {
		m := e.Embed.payload()
		m["removed"] = e.Removed
		embeds = append(embeds, m)
	}

	comments := make([]any, 0, len(i.Comments))
	for _, c := range i.Comments {
		edits := make([]any, 0, len(c.Edits))
		for _, e := range c.Edits {
			edits = append(edits, map[string]any{
				"action":    string(e.Action),
				"body":      e.Body,
				"timestamp": e.Timestamp,
			})
		}
		reactions := make([]any, 0, len(c.Reactions))
		for _, r := range c.Reactions {
			reactions = append(reactions, map[string]any{
				"author":   string(r.Author),
				"reaction": r.Reaction,
			})
		}
		comments = append(comments, map[string]any{
			"id":        string(c.ID),
			"author":    string(c.Author),
			"body":      c.Body,
			"reply_to":  string(c.ReplyTo),
			"embeds":    embedList(c.Embeds),
			"edits":     edits,
			"reactions": reactions,
			"redacted":  c.Redacted,
			"timestamp": c.Timestamp,
		})
	}

	return map[string]any{
		"id":          string(i.ID),
		"author":      string(i.Author),
		"title":       i.Title,
		"description": i.Description,
		"state":       i.State.payload(),
		"labels":      slices.Clone(i.Labels),
		"assignees":   keySet(i.Assignees),
		"embeds":      embeds,
		"comments":    comments,
		"timestamp":   i.Timestamp,
		"actions":     i.Actions,
	}
}
