package query

import (
	"github.com/roach88/cobs/internal/cob"
)

// Resolver maps public keys to display aliases.
type Resolver interface {
	Resolve(key cob.PublicKey) (string, bool)
}

// Identity is a public key with its alias, if one is known.
type Identity struct {
	Key   cob.PublicKey `json:"key"`
	Alias string        `json:"alias,omitempty"`
}

// Label returns the alias, or the shortened key when there is none.
func (i Identity) Label() string {
	if i.Alias != "" {
		return i.Alias
	}
	return i.Key.Short()
}

// View is an issue decorated for display. It embeds a copy of the issue;
// aliases live only here.
type View struct {
	cob.Issue
	AuthorIdentity     Identity                  `json:"author_identity"`
	AssigneeIdentities []Identity                `json:"assignee_identities"`
	CommentAuthors     map[cob.ActionID]Identity `json:"comment_authors,omitempty"`
}

// Decorate resolves the identities of an issue. A nil resolver leaves every
// alias empty.
func Decorate(issue cob.Issue, r Resolver) View {
	v := View{
		Issue:              issue,
		AuthorIdentity:     resolve(r, issue.Author),
		AssigneeIdentities: make([]Identity, 0, len(issue.Assignees)),
	}
	for _, k := range issue.Assignees {
		v.AssigneeIdentities = append(v.AssigneeIdentities, resolve(r, k))
	}
	if len(issue.Comments) > 0 {
		v.CommentAuthors = make(map[cob.ActionID]Identity, len(issue.Comments))
		for _, c := range issue.Comments {
			v.CommentAuthors[c.ID] = resolve(r, c.Author)
		}
	}
	return v
}

// DecorateAll decorates issues in order.
func DecorateAll(all []cob.Issue, r Resolver) []View {
	out := make([]View, 0, len(all))
	for _, issue := range all {
		out = append(out, Decorate(issue, r))
	}
	return out
}

func resolve(r Resolver, key cob.PublicKey) Identity {
	id := Identity{Key: key}
	if r != nil {
		if alias, ok := r.Resolve(key); ok {
			id.Alias = alias
		}
	}
	return id
}
