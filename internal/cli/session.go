package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"webtodo-cli/internal/taskapi"

	log "github.com/sirupsen/logrus"
)

// connect builds the transport client and its session. The credential comes
// from --csrf-token / config when set, otherwise the server issues one.
func (app *App) connect(ctx context.Context, logger log.FieldLogger, n taskapi.Notifier, r taskapi.Reloader) (*taskapi.Client, taskapi.Session, error) {
	opts := []taskapi.Option{
		taskapi.WithNotifier(n),
		taskapi.WithReloader(r),
		taskapi.WithLogger(logger),
	}
	if app.timeout > 0 {
		opts = append(opts, taskapi.WithTimeout(app.timeout))
	}
	client, err := taskapi.New(app.ServerURL, opts...)
	if err != nil {
		return nil, taskapi.Session{}, err
	}

	token := strings.TrimSpace(app.CSRFToken)
	if token == "" {
		token, err = client.IssueCredential(ctx)
		if err != nil {
			// Issuance failures are logged, not notified: report them here.
			return nil, taskapi.Session{}, fmt.Errorf("obtain csrf token from %s: %v", client.Origin(), err)
		}
	}
	return client, taskapi.Session{Credential: token}, nil
}

// stderrNotifier prints a failure and returns immediately; there is no one to
// acknowledge it in a script.
func stderrNotifier(w io.Writer) taskapi.Notifier {
	return taskapi.NotifierFunc(func(_ context.Context, message string) {
		fmt.Fprintln(w, "error: "+message)
	})
}

// reloadFlag records that the transport asked for the view to be rebuilt.
type reloadFlag struct {
	requested atomic.Bool
}

func (f *reloadFlag) Reload() { f.requested.Store(true) }

func (f *reloadFlag) Requested() bool { return f.requested.Load() }
