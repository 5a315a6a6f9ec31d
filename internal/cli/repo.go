package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/store"
)

// RepoOptions holds flags for repo init.
type RepoOptions struct {
	*RootOptions
	ID string
}

// RepoSummary is one row of repo list.
type RepoSummary struct {
	store.Repo
	Issues int `json:"issues"`
}

// NewRepoCommand creates the repo command group.
func NewRepoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage repositories",
	}
	cmd.AddCommand(newRepoInitCommand(rootOpts))
	cmd.AddCommand(newRepoListCommand(rootOpts))
	return cmd
}

func newRepoInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RepoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init <name>",
		Short: "Register a repository",
		Long: `Register a repository in the journal.

The repository id is a fresh UUIDv7 unless --id is given. Pass the id as
--repo (or set it in cobs.yaml) to work on the repository's issues.

Examples:
  cobs repo init heartwood
  cobs repo init heartwood --id heartwood`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return NewExitError(ExitCommandError, "repository name is required")
			}

			ws, err := openWorkspace(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer ws.Close()

			id := issues.RepoID(opts.ID)
			if id == "" {
				id = opts.repoIDs().Generate()
			}
			exists, err := ws.journal.HasRepo(cmd.Context(), id)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to read repositories", err)
			}
			if exists {
				return NewExitError(ExitFailure, fmt.Sprintf("repository %s already exists", id))
			}
			if err := ws.journal.WriteRepo(cmd.Context(), id, name); err != nil {
				return WrapExitError(ExitFailure, "failed to register repository", err)
			}
			ws.issues.AddRepo(id)
			ws.logger.Debug("repository registered", "repo", id, "name", name)

			result := map[string]string{"id": string(id), "name": name}
			return opts.formatter(cmd).Render(result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Initialized repository %s (%s)\n", id, name)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "repository id (default: generated UUIDv7)")
	return cmd
}

func newRepoListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			repos, err := ws.journal.ReadRepos(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read repositories", err)
			}
			summaries := make([]RepoSummary, 0, len(repos))
			for _, r := range repos {
				n := 0
				for range ws.issues.List(r.ID) {
					n++
				}
				summaries = append(summaries, RepoSummary{Repo: r, Issues: n})
			}

			f := rootOpts.formatter(cmd)
			return f.Render(summaries, func(w io.Writer) error {
				if len(summaries) == 0 {
					_, err := fmt.Fprintln(w, "No repositories. Create one with 'cobs repo init <name>'.")
					return err
				}
				tw := f.Table(w, table.Row{"ID", "Name", "Issues", "Created"})
				for _, s := range summaries {
					tw.AppendRow(table.Row{s.ID, s.Name, s.Issues, formatTime(s.CreatedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
}
