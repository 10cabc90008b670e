package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"webtodo-cli/internal/config"
	"webtodo-cli/internal/logging"
	"webtodo-cli/internal/server"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var file string
	var addr string
	var secretPath string
	var tokenTTL time.Duration

	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Serve a todo.txt file over the line API",
		Annotations: map[string]string{annotationNoResolve: "true"},
		Long: strings.TrimSpace(`
Serve a todo.txt file as one resource per line:

  GET    /tasks        every line
  GET    /task/{n}     one line
  PUT    /task/{n}     {"action":"toggle","key":"done"} or {"action":"edit","key":"line","value":"..."}
  POST   /task/        append {"task":"..."}
  POST   /task/{n}     insert before line n
  DELETE /task/{n}     remove line n
  GET    /csrf         issue an X-CSRF-TOKEN credential

Every /task route requires the X-CSRF-TOKEN header.
`),
		Example: strings.TrimSpace(`
# Serve ~/todo.txt on localhost
webtodo serve --file ~/todo.txt --addr 127.0.0.1:8080
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(file) == "" {
				return writeErr(cmd, errors.New("serve: missing --file"))
			}
			if strings.TrimSpace(secretPath) == "" {
				secretPath = config.DefaultPath("secret.key")
			}
			secret, err := server.LoadOrInitSecret(secretPath)
			if err != nil {
				return writeErr(cmd, err)
			}

			logger := logging.New(cmd.ErrOrStderr(), app.Debug)
			srv, err := server.New(server.Config{
				Addr:     addr,
				File:     file,
				Secret:   secret,
				TokenTTL: tokenTTL,
				Log:      logger,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&file, "file", envOr("WEBTODO_FILE", "todo.txt"), "todo.txt file to serve (created on first write)")
	cmd.Flags().StringVar(&addr, "addr", envOr("WEBTODO_ADDR", "127.0.0.1:8080"), "Listen address")
	cmd.Flags().StringVar(&secretPath, "secret", envOr("WEBTODO_SECRET", ""), "File holding the CSRF signing key (default: ~/.webtodo/secret.key)")
	cmd.Flags().DurationVar(&tokenTTL, "token-ttl", 12*time.Hour, "Lifetime of issued CSRF tokens")
	return cmd
}
