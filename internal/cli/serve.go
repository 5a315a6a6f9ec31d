package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cobs/internal/config"
	"github.com/roach88/cobs/internal/server"
)

const shutdownTimeout = 5 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var basePath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the issue API over HTTP",
		Long: `Serve the issues of the journal over HTTP. Actions created through the
API are signed with the local key and written to the journal.

The OpenAPI document is served at /openapi.json.

Examples:
  cobs serve --listen 127.0.0.1:8787`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer ws.Close()

			signer, err := ws.signer()
			if err != nil {
				return err
			}
			handler, err := server.New(server.Config{
				Issues:   ws.issues,
				Signer:   signer,
				Resolver: ws.aliases,
				BasePath: basePath,
				Logger:   ws.logger,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to build server", err)
			}

			n, err := ws.journal.CountActions(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read journal", err)
			}

			ln, err := net.Listen("tcp", ws.cfg.Listen)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to listen", err)
			}
			ws.logger.Info("serving", "addr", ln.Addr().String(), "repo", ws.repo(), "actions", n)
			srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					ws.logger.Warn("shutdown", "error", err)
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Serving cobs API on http://%s%s as %s\n", ln.Addr(), basePath, ws.label(signer.PublicKey()))
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return WrapExitError(ExitFailure, "server failed", err)
			}
			return nil
		},
	}

	cmd.Flags().String(config.KeyListen, "", "listen address (default 127.0.0.1:8787)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}
