package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/config"
	"github.com/roach88/cobs/internal/identity"
	"github.com/roach88/cobs/internal/issues"
	"github.com/roach88/cobs/internal/store"
)

// minPrefix is the shortest id prefix accepted on the command line.
const minPrefix = 4

// workspace is the local state every issue command works on: the journal,
// the issue store rebuilt from it, and the alias directory.
type workspace struct {
	cfg     config.Config
	journal *store.Store
	issues  *issues.Store
	aliases *identity.Directory
	logger  *slog.Logger
}

// openWorkspace opens the journal named by the configuration, creating it
// if needed, and replays it into a fresh issue store.
func openWorkspace(ctx context.Context, opts *RootOptions) (*workspace, error) {
	cfg := opts.Config
	logger := opts.logger()

	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create data directory", err)
	}
	journal, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	st := issues.New(
		issues.WithJournal(journal),
		issues.WithLogger(logger),
		issues.WithNow(opts.now()),
	)
	n, err := journal.Load(ctx, st)
	if err != nil {
		journal.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load journal", err)
	}

	aliases, err := identity.LoadDirectory(cfg.Aliases)
	if err != nil {
		journal.Close()
		return nil, WrapExitError(ExitCommandError, "failed to load aliases", err)
	}

	logger.Debug("workspace opened", "db", cfg.DB, "actions", n)
	return &workspace{
		cfg:     cfg,
		journal: journal,
		issues:  st,
		aliases: aliases,
		logger:  logger,
	}, nil
}

func (w *workspace) Close() error {
	return w.journal.Close()
}

func (w *workspace) repo() issues.RepoID {
	return issues.RepoID(w.cfg.Repo)
}

// signer loads the local signing key.
func (w *workspace) signer() (*identity.Keypair, error) {
	return loadKey(w.cfg.Key)
}

func loadKey(path string) (*identity.Keypair, error) {
	kp, err := identity.LoadKeypair(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("no signing key at %s; run 'cobs key gen' first", path))
		}
		return nil, WrapExitError(ExitCommandError, "failed to load signing key", err)
	}
	return kp, nil
}

// resolveIssue expands a full id or a unique prefix of one to the id of an
// issue in the current repository.
func (w *workspace) resolveIssue(arg string) (cob.ActionID, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if len(arg) < minPrefix {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("issue id %q is too short: give at least %d characters", arg, minPrefix))
	}

	var matches []cob.ActionID
	for issue := range w.issues.List(w.repo()) {
		if strings.HasPrefix(string(issue.ID), arg) {
			matches = append(matches, issue.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", cob.NewNotFoundError(cob.ActionID(arg))
	case 1:
		return matches[0], nil
	}
	return "", NewExitError(ExitFailure, fmt.Sprintf("issue id %q is ambiguous: %d issues match", arg, len(matches)))
}

// resolveComment expands a comment id prefix within an issue.
func resolveComment(issue cob.Issue, arg string) (cob.ActionID, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if len(arg) < minPrefix {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("comment id %q is too short: give at least %d characters", arg, minPrefix))
	}
	if c, ok := issue.Comment(cob.ActionID(arg)); ok {
		return c.ID, nil
	}
	var matches []cob.ActionID
	for _, c := range issue.Comments {
		if strings.HasPrefix(string(c.ID), arg) {
			matches = append(matches, c.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", NewExitError(ExitFailure, fmt.Sprintf("no comment %q on issue %s", arg, issue.ID.Short()))
	case 1:
		return matches[0], nil
	}
	return "", NewExitError(ExitFailure, fmt.Sprintf("comment id %q is ambiguous", arg))
}

// resolveKey accepts an alias from the directory or a raw public key.
func (w *workspace) resolveKey(arg string) cob.PublicKey {
	for _, key := range w.aliases.Keys() {
		if alias, _ := w.aliases.Resolve(key); alias == arg {
			return key
		}
	}
	return cob.PublicKey(arg)
}

// label renders a key as its alias, or its short form.
func (w *workspace) label(key cob.PublicKey) string {
	if alias, ok := w.aliases.Resolve(key); ok {
		return alias
	}
	return key.Short()
}
