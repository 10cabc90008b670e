package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"webtodo-cli/internal/config"
	"webtodo-cli/internal/controller"
	"webtodo-cli/internal/format"
	"webtodo-cli/internal/logging"
	"webtodo-cli/internal/taskapi"
	"webtodo-cli/internal/tui"
	"webtodo-cli/internal/viewstate"

	"github.com/spf13/cobra"
)

type App struct {
	ServerURL  string
	CSRFToken  string
	StateDB    string
	LogFile    string
	Timeout    string
	Debug      bool
	PrettyJSON bool
	Format     string

	glyphs  string
	timeout time.Duration
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:           "webtodo",
		Short:         "Terminal client for a line-addressed todo.txt server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI against the configured server
  webtodo

  # Serve a todo.txt file for the client
  webtodo serve --file ~/todo.txt --addr 127.0.0.1:8080

  # Scriptable commands
  webtodo list --format text
  webtodo toggle 3 --show
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if skipsResolve(cmd) {
			return nil
		}
		return app.resolve()
	}

	cmd.PersistentFlags().StringVar(&app.ServerURL, "server", envOr("WEBTODO_SERVER", ""), "Base URL of the todo server (default: config serverUrl, then "+config.DefaultServerURL+")")
	cmd.PersistentFlags().StringVar(&app.CSRFToken, "csrf-token", envOr("WEBTODO_CSRF_TOKEN", ""), "Anti-forgery token (default: config csrfToken, then issued by the server)")
	cmd.PersistentFlags().StringVar(&app.StateDB, "state-db", envOr("WEBTODO_STATE_DB", ""), "SQLite file for per-server view state")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", envOr("WEBTODO_LOG_FILE", ""), "Client log file")
	cmd.PersistentFlags().StringVar(&app.Timeout, "timeout", envOr("WEBTODO_TIMEOUT", ""), "Per-request timeout (Go duration; empty means none)")
	cmd.PersistentFlags().BoolVar(&app.Debug, "debug", os.Getenv("DEBUG") == "1", "Debug logging")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("WEBTODO_FORMAT", "json"), "Output format (json|edn|text)")

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newGetCmd(app))
	cmd.AddCommand(newToggleCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// annotationNoResolve marks command subtrees that never talk to a server. They
// must keep working when the config file is broken, so `config set` can repair it.
const annotationNoResolve = "webtodo/no-resolve"

func skipsResolve(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[annotationNoResolve] == "true" {
			return true
		}
	}
	return false
}

// resolve fills unset flags from the config file, then built-in defaults.
func (app *App) resolve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(app.ServerURL) == "" {
		app.ServerURL = cfg.ServerURL
	}
	if strings.TrimSpace(app.ServerURL) == "" {
		app.ServerURL = config.DefaultServerURL
	}
	if app.CSRFToken == "" {
		app.CSRFToken = cfg.CSRFToken
	}
	if app.StateDB == "" {
		app.StateDB = cfg.StateDB
	}
	if app.StateDB == "" {
		app.StateDB = config.DefaultPath("state.db")
	}
	if app.LogFile == "" {
		app.LogFile = cfg.LogFile
	}
	if app.LogFile == "" {
		app.LogFile = config.DefaultPath("webtodo.log")
	}
	if cfg.TUI != nil {
		app.glyphs = cfg.TUI.Glyphs
	}

	if strings.TrimSpace(app.Timeout) == "" {
		d, err := cfg.Timeout()
		if err != nil {
			return err
		}
		app.timeout = d
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(app.Timeout))
	if err != nil {
		return fmt.Errorf("--timeout: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("--timeout: negative duration %s", app.Timeout)
	}
	app.timeout = d
	return nil
}

func runTUI(cmd *cobra.Command, app *App) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, closer, err := logging.OpenFile(app.LogFile, app.Debug)
	if err != nil {
		return err
	}
	defer closer.Close()

	bridge := tui.NewBridge()
	client, sess, err := app.connect(ctx, logger, bridge, bridge)
	if err != nil {
		return err
	}

	state, err := viewstate.Open(ctx, app.StateDB, client.Origin())
	if err != nil {
		return err
	}
	defer state.Close()

	logger.WithField("origin", client.Origin()).Info("tui started")
	return tui.Run(ctx, tui.Options{
		Controller: controller.New(client, sess, state, logger),
		Lister:     client,
		Bridge:     bridge,
		Log:        logger,
		Origin:     client.Origin(),
		Glyphs:     app.glyphs,
	})
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return reportedError{err}
}

// Reported is true when err was already printed, by writeErr or by a
// transport notifier.
func Reported(err error) bool {
	var re reportedError
	if errors.As(err, &re) {
		return true
	}
	var rerr *taskapi.RequestError
	return errors.As(err, &rerr)
}
