// Package taskapi is the transport layer for the line-addressed todo.txt API.
//
// Each verb maps to one HTTP request against /task/{n}. Any non-2xx answer is
// turned into a *RequestError, surfaced through the Notifier, and followed by
// a reload so the view resynchronises with the server's file. Nothing retries.
package taskapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	CSRFHeader      = "X-CSRF-TOKEN"
	RequestIDHeader = "X-Request-ID"

	taskPath  = "/task"
	tasksPath = "/tasks"
	csrfPath  = "/csrf"
)

type Client struct {
	base     *url.URL
	http     *http.Client
	notifier Notifier
	reloader Reloader
	log      log.FieldLogger
	newID    func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets a whole-request timeout. Zero keeps the default of none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

func WithNotifier(n Notifier) Option { return func(c *Client) { c.notifier = n } }

func WithReloader(r Reloader) Option { return func(c *Client) { c.reloader = r } }

func WithLogger(l log.FieldLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("taskapi: base url is empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("taskapi: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("taskapi: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	discard := log.New()
	discard.SetOutput(io.Discard)
	c := &Client{
		base:  u,
		http:  &http.Client{},
		log:   discard,
		newID: func() string { return uuid.NewString() },
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Origin identifies the server for origin-scoped client state.
func (c *Client) Origin() string {
	return c.base.Scheme + "://" + c.base.Host + c.base.Path
}

// Reload forwards to the configured Reloader; a nil Reloader is a no-op.
func (c *Client) Reload() {
	if c.reloader != nil {
		c.reloader.Reload()
	}
}

func (c *Client) FetchLine(ctx context.Context, sess Session, n int, opts ...CallOption) (TaskPayload, error) {
	return c.do(ctx, sess, http.MethodGet, linePath(n), n, nil, opts)
}

func (c *Client) UpdateLine(ctx context.Context, sess Session, n int, m Mutation, opts ...CallOption) (TaskPayload, error) {
	return c.do(ctx, sess, http.MethodPut, linePath(n), n, m, opts)
}

// CreateLine posts payload at line position n. n <= 0 addresses the
// collection itself (append).
func (c *Client) CreateLine(ctx context.Context, sess Session, n int, payload any, opts ...CallOption) (TaskPayload, error) {
	return c.do(ctx, sess, http.MethodPost, linePath(n), n, payload, opts)
}

// DeleteLine removes line n and, on success, always reloads.
func (c *Client) DeleteLine(ctx context.Context, sess Session, n int, opts ...CallOption) (TaskPayload, error) {
	p, err := c.do(ctx, sess, http.MethodDelete, linePath(n), n, nil, opts)
	if err != nil {
		return p, err
	}
	c.Reload()
	return p, nil
}

// ListLines fetches the whole file for rebuilding the view. A failure notifies
// but never reloads (the reload would call ListLines again).
func (c *Client) ListLines(ctx context.Context, sess Session) ([]Line, error) {
	p, err := c.do(ctx, sess, http.MethodGet, tasksPath, 0, nil, []CallOption{WithRecovery(RecoverNotify)})
	if err != nil {
		return nil, err
	}
	return p.Tasks, nil
}

// IssueCredential asks the server for a fresh anti-forgery token.
func (c *Client) IssueCredential(ctx context.Context) (string, error) {
	p, err := c.do(ctx, Session{}, http.MethodGet, csrfPath, 0, nil, []CallOption{WithRecovery(RecoverLog)})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Token) == "" {
		return "", errors.New("taskapi: server issued an empty credential")
	}
	return p.Token, nil
}

func linePath(n int) string {
	if n <= 0 {
		return taskPath + "/"
	}
	return taskPath + "/" + strconv.Itoa(n)
}

func (c *Client) do(ctx context.Context, sess Session, verb, path string, line int, body any, opts []CallOption) (TaskPayload, error) {
	co := callOptions{recovery: RecoverReload}
	for _, o := range opts {
		o(&co)
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return TaskPayload{}, fmt.Errorf("%s %s: encode body: %w", verb, path, err)
		}
		rdr = bytes.NewReader(b)
	}

	u := *c.base
	u.Path = c.base.Path + path
	req, err := http.NewRequestWithContext(ctx, verb, u.String(), rdr)
	if err != nil {
		return TaskPayload{}, err
	}
	reqID := c.newID()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(CSRFHeader, sess.Credential)
	req.Header.Set(RequestIDHeader, reqID)

	entry := c.log.WithFields(log.Fields{"verb": verb, "path": path, "request_id": reqID})
	if line > 0 {
		entry = entry.WithField("line", line)
	}
	entry.Debug("request")

	resp, err := c.http.Do(req)
	if err != nil {
		entry.WithError(err).Error("request did not complete")
		return TaskPayload{}, fmt.Errorf("%s %s: %w", verb, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return TaskPayload{}, fmt.Errorf("%s %s: read body: %w", verb, path, err)
	}

	var p TaskPayload
	if len(bytes.TrimSpace(raw)) > 0 {
		// Error bodies are best-effort; only a success body must decode.
		if derr := json.Unmarshal(raw, &p); derr != nil && resp.StatusCode/100 == 2 {
			return TaskPayload{}, fmt.Errorf("%s %s: decode response: %w", verb, path, derr)
		}
	}

	if resp.StatusCode/100 != 2 {
		rerr := &RequestError{Verb: verb, Line: line, Status: resp.StatusCode, Message: p.Message}
		entry.WithFields(log.Fields{"status": resp.StatusCode, "message": p.Message}).Error(rerr.Error())
		c.recover(ctx, co.recovery, rerr)
		return p, rerr
	}
	entry.WithField("status", resp.StatusCode).Debug("response")
	return p, nil
}

func (c *Client) recover(ctx context.Context, r Recovery, rerr *RequestError) {
	switch r {
	case RecoverLog:
		return
	case RecoverNotify:
		c.notify(ctx, rerr.Error())
	default:
		c.notify(ctx, rerr.Error())
		c.Reload()
	}
}

func (c *Client) notify(ctx context.Context, msg string) {
	if c.notifier != nil {
		c.notifier.Notify(ctx, msg)
	}
}
