package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cobs/internal/cob"
	"github.com/roach88/cobs/internal/identity"
)

// KeyInfo describes the local signing key.
type KeyInfo struct {
	Path      string        `json:"path"`
	PublicKey cob.PublicKey `json:"public_key"`
	Alias     string        `json:"alias,omitempty"`
}

// NewKeyCommand creates the key command group.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the local signing key",
	}
	cmd.AddCommand(newKeyGenCommand(rootOpts))
	cmd.AddCommand(newKeyShowCommand(rootOpts))
	return cmd
}

func newKeyGenCommand(rootOpts *RootOptions) *cobra.Command {
	var alias string

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a signing key",
		Long: `Generate an ed25519 signing key and write it to the configured key path.

An existing key is never overwritten. With --alias, the new public key is
also recorded in the alias directory.

Examples:
  cobs key gen --alias alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if keyExists(cfg.Key) {
				return NewExitError(ExitCommandError, fmt.Sprintf("a key already exists at %s", cfg.Key))
			}
			kp, err := identity.Generate()
			if err != nil {
				return WrapExitError(ExitFailure, "failed to generate key", err)
			}
			if err := kp.Save(cfg.Key); err != nil {
				return WrapExitError(ExitCommandError, "failed to write key", err)
			}
			rootOpts.logger().Debug("key generated", "path", cfg.Key, "key", kp.PublicKey())

			info := KeyInfo{Path: cfg.Key, PublicKey: kp.PublicKey()}
			if alias != "" {
				dir, err := identity.LoadDirectory(cfg.Aliases)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load aliases", err)
				}
				if err := dir.Add(kp.PublicKey(), alias); err != nil {
					return WrapExitError(ExitCommandError, "invalid alias", err)
				}
				if err := dir.Save(cfg.Aliases); err != nil {
					return WrapExitError(ExitFailure, "failed to save aliases", err)
				}
				info.Alias, _ = dir.Resolve(kp.PublicKey())
			}

			return rootOpts.formatter(cmd).Render(info, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Generated key %s\n", info.PublicKey)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&alias, "alias", "", "record an alias for the new key")
	return cmd
}

func newKeyShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			kp, err := loadKey(cfg.Key)
			if err != nil {
				return err
			}
			dir, err := identity.LoadDirectory(cfg.Aliases)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load aliases", err)
			}

			info := KeyInfo{Path: cfg.Key, PublicKey: kp.PublicKey()}
			info.Alias, _ = dir.Resolve(info.PublicKey)
			return rootOpts.formatter(cmd).Render(info, func(w io.Writer) error {
				if info.Alias != "" {
					_, err := fmt.Fprintf(w, "%s (%s)\n", info.PublicKey, info.Alias)
					return err
				}
				_, err := fmt.Fprintln(w, info.PublicKey)
				return err
			})
		},
	}
}

// keyExists reports whether a key file is present.
func keyExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
