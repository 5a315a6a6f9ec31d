package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/identity"
	"github.com/roach88/cobs/internal/store"
)

// ReplayReport is the replay verdict: snapshot convergence plus the actions
// whose signature does not verify against their author.
type ReplayReport struct {
	store.VerifyResult
	InvalidSignatures []cob.ActionID `json:"invalid_signatures"`
}

// OK reports whether every issue converged and every signature verified.
func (r ReplayReport) OK() bool {
	return r.Converged && len(r.InvalidSignatures) == 0
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild every issue from the journal and verify convergence",
		Long: `Rebuild every issue from the journal twice, once in the order the
actions were recorded and once in reverse, and compare the snapshot digest
of each issue. Every action's signature is checked against its author.

Exit codes:
  0 - every issue converged and every signature verified
  1 - an issue depends on delivery order, or a signature is invalid
  2 - command error (journal not found, etc.)

Examples:
  cobs replay --db .cobs/cobs.db
  cobs replay --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config.DB
			if _, err := os.Stat(path); err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("journal %s not found", path), err)
			}
			st, err := store.Open(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			result, err := st.Verify(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "replay failed", err)
			}
			report := ReplayReport{VerifyResult: result, InvalidSignatures: []cob.ActionID{}}
			records, err := st.ReadAllActions(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "replay failed", err)
			}
			for _, r := range records {
				if err := identity.VerifyAction(r.Action); err != nil {
					rootOpts.logger().Debug("invalid signature", "seq", r.Seq, "action", string(r.Action.ID), "author", string(r.Action.Author))
					report.InvalidSignatures = append(report.InvalidSignatures, r.Action.ID)
				}
			}
			rootOpts.logger().Debug("replay verified", "actions", result.Actions, "issues", len(result.Issues), "invalid", len(report.InvalidSignatures))

			f := rootOpts.formatter(cmd)
			if err := f.Render(report, func(w io.Writer) error {
				return renderReplay(f, w, report)
			}); err != nil {
				return err
			}
			switch {
			case !result.Converged:
				return NewExitError(ExitFailure, "replay diverged")
			case !report.OK():
				return NewExitError(ExitFailure, fmt.Sprintf("%d actions carry an invalid signature", len(report.InvalidSignatures)))
			}
			return nil
		},
	}
}

func renderReplay(f *OutputFormatter, w io.Writer, result ReplayReport) error {
	if len(result.Issues) == 0 {
		_, err := fmt.Fprintln(w, "No issues in journal.")
		return err
	}
	tw := f.Table(w, table.Row{"Repo", "Issue", "Actions", "Digest", ""})
	diverged := 0
	for _, d := range result.Issues {
		if !d.Converged() {
			diverged++
		}
		tw.AppendRow(table.Row{d.Repo, d.IssueID.Short(), d.Actions, shortDigest(d.Forward), f.Mark(d.Converged())})
	}
	tw.Render()

	if diverged > 0 {
		fmt.Fprintf(w, "\n%d of %d issues diverged across %d actions.\n", diverged, len(result.Issues), result.Actions)
	} else {
		fmt.Fprintf(w, "\n%d issues converged across %d actions.\n", len(result.Issues), result.Actions)
	}
	if n := len(result.InvalidSignatures); n > 0 {
		fmt.Fprintf(w, "%d actions carry an invalid signature: %s\n", n, shortIDs(result.InvalidSignatures))
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
