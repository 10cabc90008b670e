package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"webtodo-cli/internal/controller"
	"webtodo-cli/internal/logging"
	"webtodo-cli/internal/taskapi"

	"github.com/spf13/cobra"
)

type lineOut struct {
	Line int    `json:"line"`
	Task string `json:"task"`
}

func (o lineOut) Text() string { return o.Task }

type listOut struct {
	Server string         `json:"server"`
	Tasks  []taskapi.Line `json:"tasks"`
}

func (o listOut) Text() string {
	if len(o.Tasks) == 0 {
		return ""
	}
	w := len(strconv.Itoa(o.Tasks[len(o.Tasks)-1].Number))
	var b strings.Builder
	for _, l := range o.Tasks {
		mark := "[ ]"
		if l.Done {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "%*d %s %s\n", w, l.Number, mark, l.Text)
	}
	return b.String()
}

type changeOut struct {
	Verb string `json:"verb"`
	Line int    `json:"line,omitempty"`
	OK   bool   `json:"ok"`
}

func (o changeOut) Text() string {
	if o.Line > 0 {
		return fmt.Sprintf("%s %d: ok", o.Verb, o.Line)
	}
	return o.Verb + ": ok"
}

// script is one scriptable invocation: a client whose failures go to stderr
// and whose reload requests are remembered for --show.
type script struct {
	app    *App
	cmd    *cobra.Command
	ctx    context.Context
	client *taskapi.Client
	sess   taskapi.Session
	reload *reloadFlag
	ctrl   *controller.Controller
	closer io.Closer
}

func openScript(cmd *cobra.Command, app *App) (*script, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger, closer, err := logging.OpenFile(app.LogFile, app.Debug)
	if err != nil {
		return nil, err
	}
	rf := &reloadFlag{}
	client, sess, err := app.connect(ctx, logger, stderrNotifier(cmd.ErrOrStderr()), rf)
	if err != nil {
		closer.Close()
		return nil, err
	}
	return &script{
		app:    app,
		cmd:    cmd,
		ctx:    ctx,
		client: client,
		sess:   sess,
		reload: rf,
		ctrl:   controller.New(client, sess, nil, logger),
		closer: closer,
	}, nil
}

func (s *script) Close() { s.closer.Close() }

// finish prints out, or the fresh listing when show is set and the transport
// asked for a reload or a request failed. A failed change still re-lists
// before returning err.
func (s *script) finish(show bool, out any, err error) error {
	var rerr *taskapi.RequestError
	if show && (s.reload.Requested() || errors.As(err, &rerr)) {
		lines, lerr := s.client.ListLines(s.ctx, s.sess)
		if lerr == nil {
			if werr := writeOut(s.cmd, s.app, listOut{Server: s.client.Origin(), Tasks: lines}); werr != nil && err == nil {
				err = werr
			}
		} else if err == nil {
			err = lerr
		}
		return err
	}
	if err != nil {
		return err
	}
	return writeOut(s.cmd, s.app, out)
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every line of the server's file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openScript(cmd, app)
			if err != nil {
				return err
			}
			defer s.Close()
			lines, err := s.client.ListLines(s.ctx, s.sess)
			if err != nil {
				return err
			}
			if lines == nil {
				lines = []taskapi.Line{}
			}
			return writeOut(cmd, app, listOut{Server: s.client.Origin(), Tasks: lines})
		},
	}
}

func newGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get <line>",
		Short: "Print one line as stored by the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseLine(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openScript(cmd, app)
			if err != nil {
				return err
			}
			defer s.Close()
			// Nothing to rebuild in a script: a failed read only reports.
			p, err := s.client.FetchLine(s.ctx, s.sess, n, taskapi.WithRecovery(taskapi.RecoverNotify))
			if err != nil {
				return err
			}
			return writeOut(cmd, app, lineOut{Line: n, Task: p.Task})
		},
	}
}

func newToggleCmd(app *App) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "toggle <line>",
		Short: "Flip the completion state of a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseLine(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openScript(cmd, app)
			if err != nil {
				return err
			}
			defer s.Close()
			err = s.ctrl.Toggle(s.ctx, n, 0)
			return s.finish(show, changeOut{Verb: "toggle", Line: n, OK: true}, err)
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the reloaded file instead of the result")
	return cmd
}

func newEditCmd(app *App) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "edit <line> <text>",
		Short: "Replace the text of a line",
		Long:  "Replace the text of a line. Line breaks in the text are removed.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseLine(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openScript(cmd, app)
			if err != nil {
				return err
			}
			defer s.Close()
			err = s.ctrl.CommitEdit(s.ctx, n, strings.Join(args[1:], " "))
			return s.finish(show, changeOut{Verb: "edit", Line: n, OK: true}, err)
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the reloaded file instead of the result")
	return cmd
}

func newAddCmd(app *App) *cobra.Command {
	var show bool
	var at int
	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Append a task, or insert it before --at",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if at < 0 {
				return writeErr(cmd, errLineArg(strconv.Itoa(at)))
			}
			s, err := openScript(cmd, app)
			if err != nil {
				return err
			}
			defer s.Close()
			err = s.ctrl.Create(s.ctx, at, strings.Join(args, " "), 0)
			return s.finish(show, changeOut{Verb: "add", Line: at, OK: true}, err)
		},
	}
	cmd.Flags().IntVar(&at, "at", 0, "Insert before this line (default: append)")
	cmd.Flags().BoolVar(&show, "show", false, "Print the reloaded file instead of the result")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:     "delete <line>",
		Aliases: []string{"rm"},
		Short:   "Remove a line; later lines move up",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseLine(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := openScript(cmd, app)
			if err != nil {
				return err
			}
			defer s.Close()
			err = s.ctrl.Delete(s.ctx, n, 0)
			return s.finish(show, changeOut{Verb: "delete", Line: n, OK: true}, err)
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the reloaded file instead of the result")
	return cmd
}
