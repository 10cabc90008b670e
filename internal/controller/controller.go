// Package controller turns user gestures into transport calls.
//
// It owns no view state: the caller hands in the scroll offset it captured at
// gesture time and rebuilds its view whenever the transport reloads.
package controller

import (
	"context"
	"errors"
	"strings"

	"webtodo-cli/internal/taskapi"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when a mutating gesture starts while another one is
// still waiting for the server.
var ErrBusy = errors.New("another change is still in flight")

// API is the subset of *taskapi.Client the controller drives.
type API interface {
	FetchLine(ctx context.Context, sess taskapi.Session, n int, opts ...taskapi.CallOption) (taskapi.TaskPayload, error)
	UpdateLine(ctx context.Context, sess taskapi.Session, n int, m taskapi.Mutation, opts ...taskapi.CallOption) (taskapi.TaskPayload, error)
	CreateLine(ctx context.Context, sess taskapi.Session, n int, payload any, opts ...taskapi.CallOption) (taskapi.TaskPayload, error)
	DeleteLine(ctx context.Context, sess taskapi.Session, n int, opts ...taskapi.CallOption) (taskapi.TaskPayload, error)
	Reload()
}

// ScrollStore persists the view offset across reloads.
type ScrollStore interface {
	SetScroll(ctx context.Context, y int) error
	Scroll(ctx context.Context) (int, bool, error)
}

type Controller struct {
	API     API
	Session taskapi.Session
	State   ScrollStore
	Log     log.FieldLogger

	gate *semaphore.Weighted
}

func New(api API, sess taskapi.Session, state ScrollStore, logger log.FieldLogger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		API:     api,
		Session: sess,
		State:   state,
		Log:     logger,
		gate:    semaphore.NewWeighted(1),
	}
}

// SanitizeLine removes every line break, so a task never spans lines.
func SanitizeLine(s string) string {
	return strings.NewReplacer("\r\n", "", "\r", "", "\n", "").Replace(s)
}

// Toggle flips the completion state of line n. The view is never flipped
// locally: success reloads.
func (c *Controller) Toggle(ctx context.Context, n int, scrollY int) error {
	return c.gated(func() error {
		c.saveScroll(ctx, scrollY)
		if _, err := c.API.UpdateLine(ctx, c.Session, n, taskapi.Toggle(taskapi.KeyDone)); err != nil {
			return err
		}
		c.API.Reload()
		return nil
	})
}

// OpenEdit fetches line n for editing. A failure is logged only; the caller
// restores the row it hid.
func (c *Controller) OpenEdit(ctx context.Context, n int, scrollY int) (string, error) {
	p, err := c.API.FetchLine(ctx, c.Session, n, taskapi.WithRecovery(taskapi.RecoverLog))
	if err != nil {
		c.Log.WithError(err).WithField("line", n).Warn("open edit failed")
		return "", err
	}
	c.saveScroll(ctx, scrollY)
	return p.Task, nil
}

// CommitEdit writes value (with line breaks removed) to line n. On failure the
// view is kept so the caller can flag the editor and preserve the input.
func (c *Controller) CommitEdit(ctx context.Context, n int, value string) error {
	return c.gated(func() error {
		v := SanitizeLine(value)
		if _, err := c.API.UpdateLine(ctx, c.Session, n, taskapi.Edit(taskapi.KeyLine, v), taskapi.WithRecovery(taskapi.RecoverNotify)); err != nil {
			return err
		}
		c.API.Reload()
		return nil
	})
}

// Delete removes line n. The transport reloads on success.
func (c *Controller) Delete(ctx context.Context, n int, scrollY int) error {
	return c.gated(func() error {
		c.saveScroll(ctx, scrollY)
		_, err := c.API.DeleteLine(ctx, c.Session, n)
		return err
	})
}

// Create inserts text at position n, or appends when n <= 0.
func (c *Controller) Create(ctx context.Context, n int, text string, scrollY int) error {
	text = strings.TrimSpace(SanitizeLine(text))
	if text == "" {
		return errors.New("task text is empty")
	}
	return c.gated(func() error {
		c.saveScroll(ctx, scrollY)
		if _, err := c.API.CreateLine(ctx, c.Session, n, taskapi.CreatePayload{Task: text}); err != nil {
			return err
		}
		c.API.Reload()
		return nil
	})
}

// RestoreScroll returns the offset saved before the last reload.
func (c *Controller) RestoreScroll(ctx context.Context) (int, bool) {
	if c.State == nil {
		return 0, false
	}
	y, ok, err := c.State.Scroll(ctx)
	if err != nil {
		c.Log.WithError(err).Warn("read scroll offset")
		return 0, false
	}
	return y, ok
}

func (c *Controller) gated(fn func() error) error {
	if c.gate == nil {
		c.gate = semaphore.NewWeighted(1)
	}
	if !c.gate.TryAcquire(1) {
		return ErrBusy
	}
	defer c.gate.Release(1)
	return fn()
}

func (c *Controller) saveScroll(ctx context.Context, y int) {
	if c.State == nil {
		return
	}
	if err := c.State.SetScroll(ctx, y); err != nil {
		c.Log.WithError(err).Warn("save scroll offset")
	}
}
