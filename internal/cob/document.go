package cob

import (
	"fmt"
)

// OpDocument is the flat wire form of an Op. The CLI, the HTTP API and the
// journal all exchange operations in this shape; only the fields that
// belong to Type are meaningful.
type OpDocument struct {
	Type        OpKind      `json:"type" yaml:"type"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Labels      []string    `json:"labels,omitempty" yaml:"labels,omitempty"`
	Assignees   []PublicKey `json:"assignees,omitempty" yaml:"assignees,omitempty"`
	Embeds      []Embed     `json:"embeds,omitempty" yaml:"embeds,omitempty"`
	State       *State      `json:"state,omitempty" yaml:"state,omitempty"`
	Label       string      `json:"label,omitempty" yaml:"label,omitempty"`
	Assignee    PublicKey   `json:"assignee,omitempty" yaml:"assignee,omitempty"`
	Embed       *Embed      `json:"embed,omitempty" yaml:"embed,omitempty"`
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Body        string      `json:"body,omitempty" yaml:"body,omitempty"`
	ReplyTo     ActionID    `json:"reply_to,omitempty" yaml:"reply_to,omitempty"`
	ID          ActionID    `json:"id,omitempty" yaml:"id,omitempty"`
	Reaction    string      `json:"reaction,omitempty" yaml:"reaction,omitempty"`
	Active      *bool       `json:"active,omitempty" yaml:"active,omitempty"`
}

// Op converts the document into a validated Op with its text NFC
// normalized. Returns an INVALID_ACTION error for unknown types or invalid
// fields.
func (d OpDocument) Op() (Op, error) {
	var op Op
	switch d.Type {
	case KindCreate:
		op = Create{
			Title:       d.Title,
			Description: d.Description,
			Labels:      d.Labels,
			Assignees:   d.Assignees,
			Embeds:      d.Embeds,
		}
	case KindSetTitle:
		op = SetTitle{Title: d.Title}
	case KindSetDescription:
		op = SetDescription{Description: d.Description}
	case KindSetStatus:
		if d.State == nil {
			return nil, NewInvalidActionError("", "lifecycle: state is required")
		}
		op = SetStatus{State: *d.State}
	case KindAddLabel:
		op = AddLabel{Label: d.Label}
	case KindRemoveLabel:
		op = RemoveLabel{Label: d.Label}
	case KindAddAssignee:
		op = AddAssignee{Assignee: d.Assignee}
	case KindRemoveAssignee:
		op = RemoveAssignee{Assignee: d.Assignee}
	case KindAddEmbed:
		if d.Embed == nil {
			return nil, NewInvalidActionError("", "embed.add: embed is required")
		}
		op = AddEmbed{Embed: *d.Embed}
	case KindRemoveEmbed:
		op = RemoveEmbed{Name: d.Name}
	case KindComment:
		op = Comment{Body: d.Body, ReplyTo: d.ReplyTo, Embeds: d.Embeds}
	case KindEditComment:
		op = EditComment{ID: d.ID, Body: d.Body, Embeds: d.Embeds}
	case KindRedactComment:
		op = RedactComment{ID: d.ID}
	case KindReactComment:
		active := true
		if d.Active != nil {
			active = *d.Active
		}
		op = ReactComment{ID: d.ID, Reaction: d.Reaction, Active: active}
	case "":
		return nil, NewInvalidActionError("", "op type is required")
	default:
		return nil, NewInvalidActionError("", fmt.Sprintf("unknown op type %q", d.Type))
	}

	op = normalizeOp(op)
	if err := validateOp(op); err != nil {
		return nil, NewInvalidActionError("", fmt.Sprintf("%s: %v", d.Type, err))
	}
	return op, nil
}

// DocumentOf converts an Op into its wire document.
func DocumentOf(op Op) OpDocument {
	switch o := op.(type) {
	case Create:
		return OpDocument{
			Type:        KindCreate,
			Title:       o.Title,
			Description: o.Description,
			Labels:      o.Labels,
			Assignees:   o.Assignees,
			Embeds:      o.Embeds,
		}
	case SetTitle:
		return OpDocument{Type: KindSetTitle, Title: o.Title}
	case SetDescription:
		return OpDocument{Type: KindSetDescription, Description: o.Description}
	case SetStatus:
		state := o.State
		return OpDocument{Type: KindSetStatus, State: &state}
	case AddLabel:
		return OpDocument{Type: KindAddLabel, Label: o.Label}
	case RemoveLabel:
		return OpDocument{Type: KindRemoveLabel, Label: o.Label}
	case AddAssignee:
		return OpDocument{Type: KindAddAssignee, Assignee: o.Assignee}
	case RemoveAssignee:
		return OpDocument{Type: KindRemoveAssignee, Assignee: o.Assignee}
	case AddEmbed:
		embed := o.Embed
		return OpDocument{Type: KindAddEmbed, Embed: &embed}
	case RemoveEmbed:
		return OpDocument{Type: KindRemoveEmbed, Name: o.Name}
	case Comment:
		return OpDocument{Type: KindComment, Body: o.Body, ReplyTo: o.ReplyTo, Embeds: o.Embeds}
	case EditComment:
		return OpDocument{Type: KindEditComment, ID: o.ID, Body: o.Body, Embeds: o.Embeds}
	case RedactComment:
		return OpDocument{Type: KindRedactComment, ID: o.ID}
	case ReactComment:
		active := o.Active
		return OpDocument{Type: KindReactComment, ID: o.ID, Reaction: o.Reaction, Active: &active}
	default:
		panic(fmt.Sprintf("cob: unhandled op %T", op))
	}
}
