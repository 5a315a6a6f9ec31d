package cob

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// Materialize folds a log into its current Issue.
//
// Actions are applied in Iterate order. Scalars take the value of the
// last-ordered writer; label and assignee adds and removes apply in order, so
// of a racing add and remove the later-ordered one wins. Embeds are
// tombstoned, never deleted.
//
// A log without a Create action yields INCOMPLETE_LOG and no partial value.
func Materialize(log *Log) (Issue, error) {
	if _, ok := log.Root(); !ok {
		return Issue{}, NewIncompleteLogError()
	}

	f := folder{
		labels:    make(map[string]struct{}),
		assignees: make(map[PublicKey]struct{}),
		comments:  make(map[ActionID]int),
	}
	for a := range log.Iterate() {
		if err := f.apply(a); err != nil {
			return Issue{}, err
		}
	}
	if f.issue.ID == "" {
		return Issue{}, NewIncompleteLogError()
	}
	return f.result(log.Len()), nil
}

type folder struct {
	issue     Issue
	labels    map[string]struct{}
	assignees map[PublicKey]struct{}
	comments  map[ActionID]int
}

func (f *folder) apply(a Action) error {
	if f.issue.ID == "" {
		if _, ok := a.Op.(Create); !ok {
			return NewIncompleteLogError()
		}
	}

	switch op := a.Op.(type) {
	case Create:
		f.issue.ID = a.ID
		f.issue.Author = a.Author
		f.issue.Title = op.Title
		f.issue.Description = op.Description
		f.issue.State = Open()
		for _, l := range op.Labels {
			f.labels[NormalizeLabel(l)] = struct{}{}
		}
		for _, k := range op.Assignees {
			f.assignees[k] = struct{}{}
		}
		for _, e := range op.Embeds {
			f.addEmbed(e)
		}
	case SetTitle:
		f.issue.Title = op.Title
	case SetDescription:
		f.issue.Description = op.Description
	case SetStatus:
		f.issue.State = op.State
	case AddLabel:
		f.labels[NormalizeLabel(op.Label)] = struct{}{}
	case RemoveLabel:
		delete(f.labels, NormalizeLabel(op.Label))
	case AddAssignee:
		f.assignees[op.Assignee] = struct{}{}
	case RemoveAssignee:
		delete(f.assignees, op.Assignee)
	case AddEmbed:
		f.addEmbed(op.Embed)
	case RemoveEmbed:
		for i := range f.issue.Embeds {
			if f.issue.Embeds[i].Name == op.Name {
				f.issue.Embeds[i].Removed = true
			}
		}
	case Comment:
		f.comments[a.ID] = len(f.issue.Comments)
		f.issue.Comments = append(f.issue.Comments, CommentEntry{
			ID:        a.ID,
			Author:    a.Author,
			Body:      op.Body,
			ReplyTo:   op.ReplyTo,
			Embeds:    cloneEmbeds(op.Embeds),
			Timestamp: a.Timestamp,
		})
	case EditComment:
		if c := f.ownComment(op.ID, a.Author); c != nil {
			c.Body = op.Body
			if len(op.Embeds) > 0 {
				c.Embeds = cloneEmbeds(op.Embeds)
			}
			c.Edits = append(c.Edits, CommentEdit{
				Action:    a.ID,
				Body:      op.Body,
				Embeds:    cloneEmbeds(op.Embeds),
				Timestamp: a.Timestamp,
			})
		}
	case RedactComment:
		if c := f.ownComment(op.ID, a.Author); c != nil {
			c.Body = ""
			c.Embeds = nil
			c.Edits = nil
			c.Redacted = true
		}
	case ReactComment:
		if c := f.comment(op.ID); c != nil && !c.Redacted {
			r := Reaction{Author: a.Author, Reaction: op.Reaction}
			c.Reactions = slices.DeleteFunc(c.Reactions, func(x Reaction) bool { return x == r })
			if op.Active {
				c.Reactions = append(c.Reactions, r)
				slices.SortFunc(c.Reactions, compareReactions)
			}
		}
	default:
		return NewInvalidActionError(a.ID, fmt.Sprintf("unhandled op %T", op))
	}

	f.issue.Timestamp = a.Timestamp
	return nil
}

// addEmbed appends e unless an identical live entry already exists.
func (f *folder) addEmbed(e Embed) {
	for _, x := range f.issue.Embeds {
		if !x.Removed && x.Embed == e {
			return
		}
	}
	f.issue.Embeds = append(f.issue.Embeds, EmbedEntry{Embed: e})
}

func (f *folder) comment(id ActionID) *CommentEntry {
	i, ok := f.comments[id]
	if !ok {
		return nil
	}
	return &f.issue.Comments[i]
}

// ownComment returns the comment if author wrote it and it is not redacted.
func (f *folder) ownComment(id ActionID, author PublicKey) *CommentEntry {
	c := f.comment(id)
	if c == nil || c.Redacted || c.Author != author {
		return nil
	}
	return c
}

func (f *folder) result(actions int) Issue {
	issue := f.issue
	issue.Labels = slices.Sorted(maps.Keys(f.labels))
	issue.Assignees = slices.Sorted(maps.Keys(f.assignees))
	issue.Actions = actions
	if issue.Labels == nil {
		issue.Labels = []string{}
	}
	if issue.Assignees == nil {
		issue.Assignees = []PublicKey{}
	}
	if issue.Embeds == nil {
		issue.Embeds = []EmbedEntry{}
	}
	if issue.Comments == nil {
		issue.Comments = []CommentEntry{}
	}
	return issue
}

// cloneEmbeds returns nil for an empty list so that locally built and
// decoded actions materialize identically.
func cloneEmbeds(embeds []Embed) []Embed {
	if len(embeds) == 0 {
		return nil
	}
	return slices.Clone(embeds)
}

func compareReactions(a, b Reaction) int {
	if c := cmp.Compare(a.Author, b.Author); c != 0 {
		return c
	}
	return cmp.Compare(a.Reaction, b.Reaction)
}
