package cob

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// OpKind is the wire tag of an operation.
type OpKind string

// Operation kinds. The tag is part of the hashed payload, so these values
// are frozen once actions using them exist.
const (
	KindCreate         OpKind = "create"
	KindSetTitle       OpKind = "title.set"
	KindSetDescription OpKind = "description.set"
	KindSetStatus      OpKind = "lifecycle"
	KindAddLabel       OpKind = "label.add"
	KindRemoveLabel    OpKind = "label.remove"
	KindAddAssignee    OpKind = "assignee.add"
	KindRemoveAssignee OpKind = "assignee.remove"
	KindAddEmbed       OpKind = "embed.add"
	KindRemoveEmbed    OpKind = "embed.remove"
	KindComment        OpKind = "comment"
	KindEditComment    OpKind = "comment.edit"
	KindRedactComment  OpKind = "comment.redact"
	KindReactComment   OpKind = "comment.react"
)

// Op is a sealed interface over the operations an action can carry.
// Only the types in this file implement it; Materialize switches over all
// of them.
type Op interface {
	Kind() OpKind

	// payload returns the canonical form hashed into the action id.
	payload() map[string]any

	validate() error
}

// Status is the coarse lifecycle of an issue.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// CloseReason qualifies a closed issue.
type CloseReason string

const (
	ReasonOther  CloseReason = "other"
	ReasonSolved CloseReason = "solved"
)

// State is the lifecycle state of an issue. Reason is set only when the
// issue is closed.
type State struct {
	Status Status      `json:"status"`
	Reason CloseReason `json:"reason,omitempty"`
}

// Open returns the open state.
func Open() State {
	return State{Status: StatusOpen}
}

// Closed returns a closed state with the given reason.
func Closed(reason CloseReason) State {
	return State{Status: StatusClosed, Reason: reason}
}

// IsOpen reports whether the state is open.
func (s State) IsOpen() bool {
	return s.Status == StatusOpen
}

func (s State) String() string {
	if s.Status == StatusClosed && s.Reason != "" {
		return fmt.Sprintf("closed (%s)", s.Reason)
	}
	return string(s.Status)
}

func (s State) validate() error {
	switch s.Status {
	case StatusOpen:
		if s.Reason != "" {
			return fmt.Errorf("open state cannot carry a close reason")
		}
	case StatusClosed:
		switch s.Reason {
		case ReasonOther, ReasonSolved:
		default:
			return fmt.Errorf("invalid close reason %q: must be one of other, solved", s.Reason)
		}
	default:
		return fmt.Errorf("invalid status %q: must be one of open, closed", s.Status)
	}
	return nil
}

func (s State) payload() map[string]any {
	m := map[string]any{"status": string(s.Status)}
	if s.Reason != "" {
		m["reason"] = string(s.Reason)
	}
	return m
}

// Embed references an attachment by name. Content is an opaque reference
// (a content hash or a data URI); the core never dereferences it.
type Embed struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (e Embed) validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("embed name is required")
	}
	if e.Content == "" {
		return fmt.Errorf("embed %q: content is required", e.Name)
	}
	return nil
}

func (e Embed) payload() map[string]any {
	return map[string]any{"name": e.Name, "content": e.Content}
}

// NormalizeLabel returns the canonical form of a label: NFC normalized with
// surrounding whitespace removed.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(norm.NFC.String(label))
}

// Create is the root operation of every issue.
type Create struct {
	Title       string
	Description string
	Labels      []string
	Assignees   []PublicKey
	Embeds      []Embed
}

// SetTitle replaces the issue title.
type SetTitle struct {
	Title string
}

// SetDescription replaces the issue description.
type SetDescription struct {
	Description string
}

// SetStatus moves the issue to a new lifecycle state.
type SetStatus struct {
	State State
}

// AddLabel adds a label to the label set.
type AddLabel struct {
	Label string
}

// RemoveLabel removes a label from the label set.
type RemoveLabel struct {
	Label string
}

// AddAssignee adds an identity to the assignee set.
type AddAssignee struct {
	Assignee PublicKey
}

// RemoveAssignee removes an identity from the assignee set.
type RemoveAssignee struct {
	Assignee PublicKey
}

// AddEmbed appends an attachment reference.
type AddEmbed struct {
	Embed Embed
}

// RemoveEmbed tombstones every live attachment with the given name.
type RemoveEmbed struct {
	Name string
}

// Comment adds a comment to the issue thread. The comment id is the id of
// the action carrying it.
type Comment struct {
	Body    string
	ReplyTo ActionID
	Embeds  []Embed
}

// EditComment replaces the body of an existing comment. Embeds, when
// given, replace the comment's attachments; an edit without embeds keeps
// them.
type EditComment struct {
	ID     ActionID
	Body   string
	Embeds []Embed
}

// RedactComment hides the body of an existing comment.
type RedactComment struct {
	ID ActionID
}

// ReactComment toggles a reaction on a comment.
type ReactComment struct {
	ID       ActionID
	Reaction string
	Active   bool
}

func (Create) Kind() OpKind         { return KindCreate }
func (SetTitle) Kind() OpKind       { return KindSetTitle }
func (SetDescription) Kind() OpKind { return KindSetDescription }
func (SetStatus) Kind() OpKind      { return KindSetStatus }
func (AddLabel) Kind() OpKind       { return KindAddLabel }
func (RemoveLabel) Kind() OpKind    { return KindRemoveLabel }
func (AddAssignee) Kind() OpKind    { return KindAddAssignee }
func (RemoveAssignee) Kind() OpKind { return KindRemoveAssignee }
func (AddEmbed) Kind() OpKind       { return KindAddEmbed }
func (RemoveEmbed) Kind() OpKind    { return KindRemoveEmbed }
func (Comment) Kind() OpKind        { return KindComment }
func (EditComment) Kind() OpKind    { return KindEditComment }
func (RedactComment) Kind() OpKind  { return KindRedactComment }
func (ReactComment) Kind() OpKind   { return KindReactComment }

func (o Create) validate() error {
	if strings.TrimSpace(o.Title) == "" {
		return fmt.Errorf("title is required")
	}
	for _, l := range o.Labels {
		if NormalizeLabel(l) == "" {
			return fmt.Errorf("labels cannot be empty")
		}
	}
	for _, a := range o.Assignees {
		if a == "" {
			return fmt.Errorf("assignees cannot be empty")
		}
	}
	return validateEmbeds(o.Embeds)
}

func (o SetTitle) validate() error {
	if strings.TrimSpace(o.Title) == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

func (SetDescription) validate() error { return nil }

func (o SetStatus) validate() error { return o.State.validate() }

func (o AddLabel) validate() error    { return validateLabel(o.Label) }
func (o RemoveLabel) validate() error { return validateLabel(o.Label) }

func (o AddAssignee) validate() error    { return validateAssignee(o.Assignee) }
func (o RemoveAssignee) validate() error { return validateAssignee(o.Assignee) }

func (o AddEmbed) validate() error { return o.Embed.validate() }

func (o RemoveEmbed) validate() error {
	if strings.TrimSpace(o.Name) == "" {
		return fmt.Errorf("embed name is required")
	}
	return nil
}

func (o Comment) validate() error {
	if strings.TrimSpace(o.Body) == "" {
		return fmt.Errorf("comment body is required")
	}
	return validateEmbeds(o.Embeds)
}

func (o EditComment) validate() error {
	if o.ID == "" {
		return fmt.Errorf("comment id is required")
	}
	if strings.TrimSpace(o.Body) == "" {
		return fmt.Errorf("comment body is required")
	}
	return validateEmbeds(o.Embeds)
}

func (o RedactComment) validate() error {
	if o.ID == "" {
		return fmt.Errorf("comment id is required")
	}
	return nil
}

func (o ReactComment) validate() error {
	if o.ID == "" {
		return fmt.Errorf("comment id is required")
	}
	if strings.TrimSpace(o.Reaction) == "" {
		return fmt.Errorf("reaction is required")
	}
	return nil
}

func validateLabel(label string) error {
	if NormalizeLabel(label) == "" {
		return fmt.Errorf("label is required")
	}
	return nil
}

func validateAssignee(key PublicKey) error {
	if key == "" {
		return fmt.Errorf("assignee is required")
	}
	return nil
}

func validateEmbeds(embeds []Embed) error {
	for _, e := range embeds {
		if err := e.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o Create) payload() map[string]any {
	return map[string]any{
		"type":        string(KindCreate),
		"title":       o.Title,
		"description": o.Description,
		"labels":      labelSet(o.Labels),
		"assignees":   keySet(o.Assignees),
		"embeds":      embedList(o.Embeds),
	}
}

func (o SetTitle) payload() map[string]any {
	return map[string]any{"type": string(KindSetTitle), "title": o.Title}
}

func (o SetDescription) payload() map[string]any {
	return map[string]any{"type": string(KindSetDescription), "description": o.Description}
}

func (o SetStatus) payload() map[string]any {
	return map[string]any{"type": string(KindSetStatus), "state": o.State.payload()}
}

func (o AddLabel) payload() map[string]any {
	return map[string]any{"type": string(KindAddLabel), "label": NormalizeLabel(o.Label)}
}

func (o RemoveLabel) payload() map[string]any {
	return map[string]any{"type": string(KindRemoveLabel), "label": NormalizeLabel(o.Label)}
}

func (o AddAssignee) payload() map[string]any {
	return map[string]any{"type": string(KindAddAssignee), "assignee": string(o.Assignee)}
}

func (o RemoveAssignee) payload() map[string]any {
	return map[string]any{"type": string(KindRemoveAssignee), "assignee": string(o.Assignee)}
}

func (o AddEmbed) payload() map[string]any {
	return map[string]any{"type": string(KindAddEmbed), "embed": o.Embed.payload()}
}

func (o RemoveEmbed) payload() map[string]any {
	return map[string]any{"type": string(KindRemoveEmbed), "name": o.Name}
}

func (o Comment) payload() map[string]any {
	m := map[string]any{
		"type":   string(KindComment),
		"body":   o.Body,
		"embeds": embedList(o.Embeds),
	}
	if o.ReplyTo != "" {
		m["reply_to"] = string(o.ReplyTo)
	}
	return m
}

func (o EditComment) payload() map[string]any {
	m := map[string]any{"type": string(KindEditComment), "id": string(o.ID), "body": o.Body}
	if len(o.Embeds) > 0 {
		m["embeds"] = embedList(o.Embeds)
	}
	return m
}

func (o RedactComment) payload() map[string]any {
	return map[string]any{"type": string(KindRedactComment), "id": string(o.ID)}
}

func (o ReactComment) payload() map[string]any {
	return map[string]any{
		"type":     string(KindReactComment),
		"id":       string(o.ID),
		"reaction": o.Reaction,
		"active":   o.Active,
	}
}

// labelSet returns labels normalized, deduplicated and sorted.
func labelSet(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		out = append(out, NormalizeLabel(l))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func keySet(keys []PublicKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, string(k))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func embedList(embeds []Embed) []any {
	out := make([]any, 0, len(embeds))
	for _, e := range embeds {
		out = append(out, e.payload())
	}
	return out
}
