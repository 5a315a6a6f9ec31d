package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/query"
	"github.com/roach88/cobs/internal/schema"
)

// NewIssueCommand creates the issue command group.
func NewIssueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create, edit and inspect issues",
	}
	cmd.AddCommand(newIssueCreateCommand(rootOpts))
	cmd.AddCommand(newIssueEditCommand(rootOpts))
	cmd.AddCommand(newIssueListCommand(rootOpts))
	cmd.AddCommand(newIssueShowCommand(rootOpts))
	cmd.AddCommand(newIssueLogCommand(rootOpts))
	return cmd
}

// IssueCreateOptions holds flags for issue create.
type IssueCreateOptions struct {
	*RootOptions
	Title       string
	Description string
	Labels      []string
	Assignees   []string
	Embeds      []string
	File        string
}

func newIssueCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IssueCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new issue",
		Long: `Open a new issue signed with the local key.

The issue can be described with flags or with a YAML or JSON document:

  title: "Crash on start"
  description: "..."
  labels: [bug]
  assignees: [alice]
  embeds:
    - { name: trace.txt, content: "sha256:..." }

Assignees may be given by alias or by public key.

Examples:
  cobs issue create --title "Crash on start" --label bug
  cobs issue create --file issue.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := opts.newIssue()
			if err != nil {
				return err
			}

			ws, err := openWorkspace(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer ws.Close()

			for i, a := range n.Assignees {
				n.Assignees[i] = ws.resolveKey(string(a))
			}
			raw, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if err := schema.ValidateNewIssue(raw); err != nil {
				return WrapExitError(ExitCommandError, "invalid issue", err)
			}

			signer, err := ws.signer()
			if err != nil {
				return err
			}
			issue, err := ws.issues.Create(cmd.Context(), ws.repo(), n, signer)
			if err != nil {
				return err
			}
			return renderIssue(opts.formatter(cmd), ws, issue)
		},
	}

	cmd.Flags().StringVarP(&opts.Title, "title", "t", "", "issue title")
	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "issue description")
	cmd.Flags().StringArrayVarP(&opts.Labels, "label", "l", nil, "label (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.Assignees, "assignee", "a", nil, "assignee alias or key (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Embeds, "embed", nil, "attachment as name=content (repeatable)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the issue from a YAML or JSON document")
	cmd.MarkFlagsMutuallyExclusive("file", "title")
	return cmd
}

func (o *IssueCreateOptions) newIssue() (issues.NewIssue, error) {
	if o.File != "" {
		var n issues.NewIssue
		if err := decodeFile(o.File, &n); err != nil {
			return issues.NewIssue{}, err
		}
		return n, nil
	}

	embeds, err := parseEmbeds(o.Embeds)
	if err != nil {
		return issues.NewIssue{}, err
	}
	n := issues.NewIssue{
		Title:       o.Title,
		Description: o.Description,
		Labels:      o.Labels,
		Embeds:      embeds,
	}
	for _, a := range o.Assignees {
		n.Assignees = append(n.Assignees, cob.PublicKey(a))
	}
	return n, nil
}

// IssueEditOptions holds flags for issue edit. Every flag given adds one
// action, applied in the order below.
type IssueEditOptions struct {
	*RootOptions
	Title         string
	Description   string
	Close         string
	Reopen        bool
	AddLabels     []string
	RemoveLabels  []string
	Assign        []string
	Unassign      []string
	Embeds        []string
	RemoveEmbeds  []string
	Comment       string
	ReplyTo       string
	EditComment   string
	Body          string
	Redact        string
	React         string
	Unreact       string
	File          string
	Parents       []string
	changedDesc   bool
	changedParent bool
}

func newIssueEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IssueEditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <issue>",
		Short: "Change an issue",
		Long: `Sign and apply one action per change.

The issue and any comment may be named by a unique id prefix. Each change
follows the issue's current heads unless --parent names the actions it
follows; --parent requires exactly one change.

An operation can also be read from a YAML or JSON document:

  type: label.add
  label: urgent

Examples:
  cobs issue edit 3f2a --add-label urgent --close solved
  cobs issue edit 3f2a --comment "Fixed in 1.2"
  cobs issue edit 3f2a --react 9c1e:+1
  cobs issue edit 3f2a --file op.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.changedDesc = cmd.Flags().Changed("description")
			opts.changedParent = cmd.Flags().Changed("parent")

			ws, err := openWorkspace(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer ws.Close()

			id, err := ws.resolveIssue(args[0])
			if err != nil {
				return err
			}
			current, _ := ws.issues.Get(ws.repo(), id)

			ops, err := opts.ops(ws, current)
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				return NewExitError(ExitCommandError, "nothing to change: give at least one edit flag")
			}
			// Check every change up front so a bad one leaves the issue untouched.
			for _, op := range ops {
				if _, err := cob.DocumentOf(op).Op(); err != nil {
					return err
				}
			}

			var applyOpts []issues.ApplyOption
			if opts.changedParent {
				if len(ops) != 1 {
					return NewExitError(ExitCommandError, "--parent requires exactly one change")
				}
				parents := make([]cob.ActionID, 0, len(opts.Parents))
				for _, p := range opts.Parents {
					pid, err := resolveAction(ws, id, p)
					if err != nil {
						return err
					}
					parents = append(parents, pid)
				}
				applyOpts = append(applyOpts, issues.WithParents(parents...))
			}

			signer, err := ws.signer()
			if err != nil {
				return err
			}
			issue := current
			for _, op := range ops {
				issue, err = ws.issues.Apply(cmd.Context(), ws.repo(), id, op, signer, applyOpts...)
				if err != nil {
					return err
				}
			}
			return renderIssue(opts.formatter(cmd), ws, issue)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Title, "title", "t", "", "set the title")
	flags.StringVarP(&opts.Description, "description", "d", "", "set the description")
	flags.StringVar(&opts.Close, "close", "", "close the issue with a reason (solved|other)")
	flags.BoolVar(&opts.Reopen, "reopen", false, "reopen the issue")
	flags.StringArrayVar(&opts.AddLabels, "add-label", nil, "add a label (repeatable)")
	flags.StringArrayVar(&opts.RemoveLabels, "remove-label", nil, "remove a label (repeatable)")
	flags.StringArrayVar(&opts.Assign, "assign", nil, "assign an alias or key (repeatable)")
	flags.StringArrayVar(&opts.Unassign, "unassign", nil, "unassign an alias or key (repeatable)")
	flags.StringArrayVar(&opts.Embeds, "embed", nil, "attach name=content (repeatable)")
	flags.StringArrayVar(&opts.RemoveEmbeds, "remove-embed", nil, "remove attachments by name (repeatable)")
	flags.StringVar(&opts.Comment, "comment", "", "add a comment")
	flags.StringVar(&opts.ReplyTo, "reply-to", "", "comment the new comment replies to")
	flags.StringVar(&opts.EditComment, "edit-comment", "", "comment to edit (with --body)")
	flags.StringVar(&opts.Body, "body", "", "new body for --edit-comment")
	flags.StringVar(&opts.Redact, "redact", "", "redact one of your comments")
	flags.StringVar(&opts.React, "react", "", "react to a comment as comment:reaction")
	flags.StringVar(&opts.Unreact, "unreact", "", "withdraw a reaction as comment:reaction")
	flags.StringVarP(&opts.File, "file", "f", "", "read one operation from a YAML or JSON document")
	flags.StringArrayVar(&opts.Parents, "parent", nil, "action the change follows (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("close", "reopen")
	return cmd
}

// ops turns the flags into operations. Comment references are resolved
// against the issue as it is now.
func (o *IssueEditOptions) ops(ws *workspace, issue cob.Issue) ([]cob.Op, error) {
	var ops []cob.Op

	if o.File != "" {
		var doc cob.OpDocument
		if err := decodeFile(o.File, &doc); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		if err := schema.ValidateOp(raw); err != nil {
			known, _ := schema.OpTypes()
			if !slices.Contains(known, string(doc.Type)) {
				return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown operation type %q: expected one of %s", doc.Type, strings.Join(known, ", ")))
			}
			return nil, WrapExitError(ExitCommandError, "invalid operation", err)
		}
		op, err := doc.Op()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	if o.Title != "" {
		ops = append(ops, cob.SetTitle{Title: o.Title})
	}
	if o.changedDesc {
		ops = append(ops, cob.SetDescription{Description: o.Description})
	}
	if o.Close != "" {
		ops = append(ops, cob.SetStatus{State: cob.Closed(cob.CloseReason(o.Close))})
	}
	if o.Reopen {
		ops = append(ops, cob.SetStatus{State: cob.Open()})
	}
	for _, l := range o.AddLabels {
		ops = append(ops, cob.AddLabel{Label: l})
	}
	for _, l := range o.RemoveLabels {
		ops = append(ops, cob.RemoveLabel{Label: l})
	}
	for _, a := range o.Assign {
		ops = append(ops, cob.AddAssignee{Assignee: ws.resolveKey(a)})
	}
	for _, a := range o.Unassign {
		ops = append(ops, cob.RemoveAssignee{Assignee: ws.resolveKey(a)})
	}
	embeds, err := parseEmbeds(o.Embeds)
	if err != nil {
		return nil, err
	}
	for _, e := range embeds {
		ops = append(ops, cob.AddEmbed{Embed: e})
	}
	for _, name := range o.RemoveEmbeds {
		ops = append(ops, cob.RemoveEmbed{Name: name})
	}

	if o.Comment != "" {
		c := cob.Comment{Body: o.Comment}
		if o.ReplyTo != "" {
			if c.ReplyTo, err = resolveComment(issue, o.ReplyTo); err != nil {
				return nil, err
			}
		}
		ops = append(ops, c)
	} else if o.ReplyTo != "" {
		return nil, NewExitError(ExitCommandError, "--reply-to requires --comment")
	}
	if o.EditComment != "" {
		cid, err := resolveComment(issue, o.EditComment)
		if err != nil {
			return nil, err
		}
		ops = append(ops, cob.EditComment{ID: cid, Body: o.Body})
	}
	if o.Redact != "" {
		cid, err := resolveComment(issue, o.Redact)
		if err != nil {
			return nil, err
		}
		ops = append(ops, cob.RedactComment{ID: cid})
	}
	for _, r := range []struct {
		arg    string
		active bool
	}{{o.React, true}, {o.Unreact, false}} {
		if r.arg == "" {
			continue
		}
		target, reaction, ok := strings.Cut(r.arg, ":")
		if !ok || reaction == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid reaction %q: expected comment:reaction", r.arg))
		}
		cid, err := resolveComment(issue, target)
		if err != nil {
			return nil, err
		}
		ops = append(ops, cob.ReactComment{ID: cid, Reaction: reaction, Active: r.active})
	}
	return ops, nil
}

// resolveAction expands an action id prefix within an issue's log.
func resolveAction(ws *workspace, issueID cob.ActionID, arg string) (cob.ActionID, error) {
	log, err := ws.issues.Log(ws.repo(), issueID)
	if err != nil {
		return "", err
	}
	arg = strings.ToLower(strings.TrimSpace(arg))
	var matches []cob.ActionID
	for _, a := range log {
		if len(arg) >= minPrefix && strings.HasPrefix(string(a.ID), arg) {
			matches = append(matches, a.ID)
		}
	}
	if len(matches) != 1 {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("parent %q does not name exactly one action of issue %s", arg, issueID.Short()))
	}
	return matches[0], nil
}

func newIssueListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		status   string
		labels   []string
		assignee string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues, most recently changed first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := query.ParseStatus(status)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --status", err)
			}

			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			matched := query.Query(ws.issues.List(ws.repo()), filter)
			if len(labels) > 0 || assignee != "" {
				key := ws.resolveKey(assignee)
				matched = slices.DeleteFunc(matched, func(issue cob.Issue) bool {
					for _, l := range labels {
						if !issue.HasLabel(l) {
							return true
						}
					}
					return assignee != "" && !issue.IsAssigned(key)
				})
			}
			views := query.DecorateAll(matched, ws.aliases)
			f := rootOpts.formatter(cmd)
			return f.Render(views, func(w io.Writer) error {
				if len(views) == 0 {
					_, err := fmt.Fprintf(w, "No %s issues in %s.\n", filter, ws.repo())
					return err
				}
				tw := f.Table(w, table.Row{"ID", "Title", "State", "Labels", "Author", "Updated"})
				for _, v := range views {
					tw.AppendRow(table.Row{
						v.ID.Short(),
						v.Title,
						f.State(v.State),
						strings.Join(v.Labels, ", "),
						v.AuthorIdentity.Label(),
						formatTime(v.Timestamp),
					})
				}
				tw.Render()
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "all", "filter by state (all|open|closed)")
	cmd.Flags().StringArrayVarP(&labels, "label", "l", nil, "only issues carrying this label (repeatable)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "only issues assigned to this alias or key")
	return cmd
}

func newIssueShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <issue>",
		Short: "Show an issue and its comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			id, err := ws.resolveIssue(args[0])
			if err != nil {
				return err
			}
			issue, ok := query.ByID(ws.issues, ws.repo(), id)
			if !ok {
				return cob.NewNotFoundError(id)
			}
			return renderIssue(rootOpts.formatter(cmd), ws, issue)
		},
	}
}

// ActionEntry is one row of issue log.
type ActionEntry struct {
	ID        cob.ActionID   `json:"id"`
	Author    query.Identity `json:"author"`
	Timestamp int64          `json:"timestamp"`
	Parents   []cob.ActionID `json:"parents"`
	Op        cob.OpDocument `json:"op"`
}

func newIssueLogCommand(rootOpts *RootOptions) *cobra.Command {
	var arrival bool

	cmd := &cobra.Command{
		Use:   "log <issue>",
		Short: "Show the actions of an issue in the order they are applied",
		Long: `Show the actions of an issue in fold order: the order in which they are
applied to build the issue, the same on every replica.

With --arrival the actions are listed in the order this journal recorded
them instead, which differs between replicas.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			id, err := ws.resolveIssue(args[0])
			if err != nil {
				return err
			}
			var log []cob.Action
			if arrival {
				log, err = ws.journal.ReadIssueActions(cmd.Context(), ws.repo(), id)
			} else {
				log, err = ws.issues.Log(ws.repo(), id)
			}
			if err != nil {
				return err
			}

			entries := make([]ActionEntry, 0, len(log))
			for _, a := range log {
				author := query.Identity{Key: a.Author}
				author.Alias, _ = ws.aliases.Resolve(a.Author)
				parents := a.Parents
				if parents == nil {
					parents = []cob.ActionID{}
				}
				entries = append(entries, ActionEntry{
					ID:        a.ID,
					Author:    author,
					Timestamp: a.Timestamp,
					Parents:   parents,
					Op:        cob.DocumentOf(a.Op),
				})
			}

			f := rootOpts.formatter(cmd)
			return f.Render(entries, func(w io.Writer) error {
				tw := f.Table(w, table.Row{"ID", "Author", "Time", "Op", "Parents"})
				for _, e := range entries {
					tw.AppendRow(table.Row{
						e.ID.Short(),
						e.Author.Label(),
						formatTime(e.Timestamp),
						summarize(e.Op),
						shortIDs(e.Parents),
					})
				}
				tw.Render()
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&arrival, "arrival", false, "list actions in the order the journal recorded them")
	return cmd
}

// renderIssue prints a full issue view.
func renderIssue(f *OutputFormatter, ws *workspace, issue cob.Issue) error {
	view := query.Decorate(issue, ws.aliases)
	return f.Render(view, func(w io.Writer) error {
		fmt.Fprintf(w, "%s  [%s]\n", view.Title, f.State(view.State))
		fmt.Fprintf(w, "id:        %s\n", view.ID)
		fmt.Fprintf(w, "author:    %s\n", view.AuthorIdentity.Label())
		if len(view.Labels) > 0 {
			fmt.Fprintf(w, "labels:    %s\n", strings.Join(view.Labels, ", "))
		}
		if len(view.AssigneeIdentities) > 0 {
			names := make([]string, 0, len(view.AssigneeIdentities))
			for _, a := range view.AssigneeIdentities {
				names = append(names, a.Label())
			}
			fmt.Fprintf(w, "assignees: %s\n", strings.Join(names, ", "))
		}
		if live := view.LiveEmbeds(); len(live) > 0 {
			names := make([]string, 0, len(live))
			for _, e := range live {
				names = append(names, e.Name)
			}
			fmt.Fprintf(w, "embeds:    %s\n", strings.Join(names, ", "))
		}
		fmt.Fprintf(w, "updated:   %s (%d actions)\n", formatTime(view.Timestamp), view.Actions)
		if view.Description != "" {
			fmt.Fprintf(w, "\n%s\n", view.Description)
		}

		for _, c := range view.Comments {
			fmt.Fprintf(w, "\n%s %s  %s", c.ID.Short(), view.CommentAuthors[c.ID].Label(), formatTime(c.Timestamp))
			if c.ReplyTo != "" {
				fmt.Fprintf(w, "  reply to %s", c.ReplyTo.Short())
			}
			if len(c.Edits) > 0 {
				fmt.Fprint(w, "  (edited)")
			}
			fmt.Fprintln(w)
			if c.Redacted {
				fmt.Fprintln(w, "  [redacted]")
				continue
			}
			for _, line := range strings.Split(c.Body, "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
			if len(c.Reactions) > 0 {
				parts := make([]string, 0, len(c.Reactions))
				for _, r := range c.Reactions {
					parts = append(parts, r.Reaction+" "+ws.label(r.Author))
				}
				fmt.Fprintf(w, "  reactions: %s\n", strings.Join(parts, ", "))
			}
		}
		return nil
	})
}

// summarize renders an operation on one line.
func summarize(d cob.OpDocument) string {
	switch d.Type {
	case cob.KindCreate, cob.KindSetTitle:
		return fmt.Sprintf("%s %q", d.Type, d.Title)
	case cob.KindSetDescription:
		return string(d.Type)
	case cob.KindSetStatus:
		return fmt.Sprintf("%s %s", d.Type, d.State)
	case cob.KindAddLabel, cob.KindRemoveLabel:
		return fmt.Sprintf("%s %s", d.Type, d.Label)
	case cob.KindAddAssignee, cob.KindRemoveAssignee:
		return fmt.Sprintf("%s %s", d.Type, d.Assignee.Short())
	case cob.KindAddEmbed:
		return fmt.Sprintf("%s %s", d.Type, d.Embed.Name)
	case cob.KindRemoveEmbed:
		return fmt.Sprintf("%s %s", d.Type, d.Name)
	case cob.KindComment:
		if d.ReplyTo != "" {
			return fmt.Sprintf("%s (reply to %s)", d.Type, d.ReplyTo.Short())
		}
		return string(d.Type)
	case cob.KindReactComment:
		verb := "+"
		if d.Active != nil && !*d.Active {
			verb = "-"
		}
		return fmt.Sprintf("%s %s %s%s", d.Type, d.ID.Short(), verb, d.Reaction)
	default:
		return fmt.Sprintf("%s %s", d.Type, d.ID.Short())
	}
}

// parseEmbeds parses name=content pairs.
func parseEmbeds(args []string) ([]cob.Embed, error) {
	var out []cob.Embed
	for _, arg := range args {
		name, content, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(name) == "" || content == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid embed %q: expected name=content", arg))
		}
		out = append(out, cob.Embed{Name: name, Content: content})
	}
	return out, nil
}

// decodeFile reads a YAML or JSON document into v, rejecting unknown
// fields. "-" reads standard input.
func decodeFile(path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read document", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to parse %s", path), err)
	}
	return nil
}
