package cli

import (
	"fmt"

	"webtodo-cli/internal/docs"

	"github.com/spf13/cobra"
)

type docsOut struct {
	Topic    string `json:"topic"`
	Markdown string `json:"markdown"`
}

func (o docsOut) Text() string { return o.Markdown }

func newDocsCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:         "docs [topic]",
		Short:       "Show on-demand documentation (api, keys, todotxt)",
		Annotations: map[string]string{annotationNoResolve: "true"},
		Args:        cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, map[string]any{"topics": docs.Topics()})
			}

			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return writeErr(cmd, fmt.Errorf("unknown docs topic: %q (run `webtodo docs` to list topics)", topic))
			}

			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			return writeOut(cmd, app, docsOut{Topic: topic, Markdown: body})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw markdown (no JSON envelope)")

	return cmd
}
