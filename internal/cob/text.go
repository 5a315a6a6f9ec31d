package cob

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// normalizeOp returns op with every free-text field NFC normalized, the
// form the canonical payload hashes. Ops built locally are normalized on
// the way in; received actions must already be in this form.
func normalizeOp(op Op) Op {
	switch o := op.(type) {
	case Create:
		o.Title = norm.NFC.String(o.Title)
		o.Description = norm.NFC.String(o.Description)
		o.Labels = nfcAll(o.Labels)
		o.Embeds = nfcEmbeds(o.Embeds)
		return o
	case SetTitle:
		o.Title = norm.NFC.String(o.Title)
		return o
	case SetDescription:
		o.Description = norm.NFC.String(o.Description)
		return o
	case AddLabel:
		o.Label = norm.NFC.String(o.Label)
		return o
	case RemoveLabel:
		o.Label = norm.NFC.String(o.Label)
		return o
	case AddEmbed:
		o.Embed = o.Embed.normalized()
		return o
	case RemoveEmbed:
		o.Name = norm.NFC.String(o.Name)
		return o
	case Comment:
		o.Body = norm.NFC.String(o.Body)
		o.Embeds = nfcEmbeds(o.Embeds)
		return o
	case EditComment:
		o.Body = norm.NFC.String(o.Body)
		o.Embeds = nfcEmbeds(o.Embeds)
		return o
	case ReactComment:
		o.Reaction = norm.NFC.String(o.Reaction)
		return o
	}
	return op
}

// validateOp checks the op's own rules and that all of its text is valid
// UTF-8 in NFC form.
func validateOp(op Op) error {
	if err := op.validate(); err != nil {
		return err
	}
	return checkText(opTexts(op)...)
}

func checkText(texts ...string) error {
	for _, s := range texts {
		if !utf8.ValidString(s) {
			return fmt.Errorf("text %q is not valid UTF-8", s)
		}
		if !norm.NFC.IsNormalString(s) {
			return fmt.Errorf("text %q is not NFC normalized", s)
		}
	}
	return nil
}

// opTexts returns every string the op contributes to its payload.
func opTexts(op Op) []string {
	switch o := op.(type) {
	case Create:
		out := append([]string{o.Title, o.Description}, o.Labels...)
		for _, k := range o.Assignees {
			out = append(out, string(k))
		}
		return append(out, embedTexts(o.Embeds)...)
	case SetTitle:
		return []string{o.Title}
	case SetDescription:
		return []string{o.Description}
	case AddLabel:
		return []string{o.Label}
	case RemoveLabel:
		return []string{o.Label}
	case AddAssignee:
		return []string{string(o.Assignee)}
	case RemoveAssignee:
		return []string{string(o.Assignee)}
	case AddEmbed:
		return embedTexts([]Embed{o.Embed})
	case RemoveEmbed:
		return []string{o.Name}
	case Comment:
		return append([]string{o.Body, string(o.ReplyTo)}, embedTexts(o.Embeds)...)
	case EditComment:
		return append([]string{string(o.ID), o.Body}, embedTexts(o.Embeds)...)
	case RedactComment:
		return []string{string(o.ID)}
	case ReactComment:
		return []string{string(o.ID), o.Reaction}
	}
	return nil
}

func (e Embed) normalized() Embed {
	return Embed{Name: norm.NFC.String(e.Name), Content: norm.NFC.String(e.Content)}
}

func nfcAll(texts []string) []string {
	if texts == nil {
		return nil
	}
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = norm.NFC.String(s)
	}
	return out
}

func nfcEmbeds(embeds []Embed) []Embed {
	if embeds == nil {
		return nil
	}
	out := make([]Embed, len(embeds))
	for i, e := range embeds {
		out[i] = e.normalized()
	}
	return out
}

func embedTexts(embeds []Embed) []string {
	out := make([]string, 0, 2*len(embeds))
	for _, e := range embeds {
		out = append(out, e.Name, e.Content)
	}
	return out
}
