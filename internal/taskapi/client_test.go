package taskapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"webtodo-cli/internal/logging"
	"webtodo-cli/internal/server"
)

// recorder captures notifications and reloads in call order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Notify(_ context.Context, msg string) {
	r.mu.Lock()
	r.events = append(r.events, "notify:"+msg)
	r.mu.Unlock()
}

func (r *recorder) Reload() {
	r.mu.Lock()
	r.events = append(r.events, "reload")
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newClient(t *testing.T, url string, rec *recorder) *Client {
	t.Helper()
	c, err := New(url, WithNotifier(rec), WithReloader(rec), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func startServer(t *testing.T, content string) (*httptest.Server, Session, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "todo.txt")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	srv, err := server.New(server.Config{
		File:   p,
		Secret: []byte("s"),
		Log:    logging.Discard(),
		Now:    func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	tok, err := srv.IssueToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return ts, Session{Credential: tok}, p
}

func TestFetchLine_MatchesServerContent(t *testing.T) {
	ts, sess, _ := startServer(t, "alpha\n(B) beta +p\ngamma\n")
	rec := &recorder{}
	c := newClient(t, ts.URL, rec)

	for n, want := range map[int]string{1: "alpha", 2: "(B) beta +p", 3: "gamma"} {
		p, err := c.FetchLine(context.Background(), sess, n)
		if err != nil {
			t.Fatalf("fetch %d: %v", n, err)
		}
		if p.Task != want {
			t.Fatalf("fetch %d: got %q want %q", n, p.Task, want)
		}
	}
	if ev := rec.snapshot(); len(ev) != 0 {
		t.Fatalf("successful fetches must not notify or reload: %v", ev)
	}
}

func TestFetchLine_MissingLineNotifiesAndReloads(t *testing.T) {
	ts, sess, _ := startServer(t, "only\n")
	rec := &recorder{}
	c := newClient(t, ts.URL, rec)

	_, err := c.FetchLine(context.Background(), sess, 5)
	var rerr *RequestError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if rerr.Status != http.StatusNotFound || rerr.Verb != http.MethodGet || rerr.Line != 5 {
		t.Fatalf("unexpected error: %+v", rerr)
	}
	ev := rec.snapshot()
	if len(ev) != 2 || ev[0] != "notify:GET failed: 404" || ev[1] != "reload" {
		t.Fatalf("events: %v", ev)
	}
}

func TestUpdateLine_500NotifiesWithStatusThenReloads(t *testing.T) {
	var (
		mu   sync.Mutex
		hits int
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"status":"NOK","message":"boom"}`)
	}))
	defer ts.Close()

	rec := &recorder{}
	c := newClient(t, ts.URL, rec)
	_, err := c.UpdateLine(context.Background(), Session{Credential: "t"}, 4, Toggle(KeyDone))

	var rerr *RequestError
	if !errors.As(err, &rerr) || rerr.Status != 500 || rerr.Message != "boom" {
		t.Fatalf("expected 500 RequestError, got %v", err)
	}
	ev := rec.snapshot()
	if len(ev) != 2 || !strings.Contains(ev[0], "500") || ev[1] != "reload" {
		t.Fatalf("events: %v", ev)
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("must not retry, got %d requests", hits)
	}
}

func TestDeleteLine_403StillReloadsAndLeavesLine(t *testing.T) {
	ts, _, p := startServer(t, "1\n2\n3\n4\n5\n6\nseven\n")
	rec := &recorder{}
	c := newClient(t, ts.URL, rec)

	_, err := c.DeleteLine(context.Background(), Session{Credential: "forged"}, 7)
	var rerr *RequestError
	if !errors.As(err, &rerr) || rerr.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
	ev := rec.snapshot()
	if len(ev) != 2 || !strings.Contains(ev[0], "403") || !strings.Contains(ev[0], "DELETE") || ev[1] != "reload" {
		t.Fatalf("events: %v", ev)
	}
	b, _ := os.ReadFile(p)
	if !strings.HasSuffix(string(b), "seven\n") {
		t.Fatalf("line 7 must survive a rejected delete: %q", string(b))
	}
}

func TestDeleteLine_SuccessAlwaysReloads(t *testing.T) {
	ts, sess, p := startServer(t, "a\nb\n")
	rec := &recorder{}
	c := newClient(t, ts.URL, rec)

	if _, err := c.DeleteLine(context.Background(), sess, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ev := rec.snapshot(); len(ev) != 1 || ev[0] != "reload" {
		t.Fatalf("events: %v", ev)
	}
	b, _ := os.ReadFile(p)
	if string(b) != "b\n" {
		t.Fatalf("file: %q", string(b))
	}
}

func TestRequests_CarryHeadersAndDescriptor(t *testing.T) {
	type seen struct {
		method, path, accept, ctype, csrf, reqID string
		body                                     map[string]any
	}
	var (
		mu  sync.Mutex
		got []seen
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := seen{
			method: r.Method,
			path:   r.URL.Path,
			accept: r.Header.Get("Accept"),
			ctype:  r.Header.Get("Content-Type"),
			csrf:   r.Header.Get(CSRFHeader),
			reqID:  r.Header.Get(RequestIDHeader),
		}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &s.body)
		}
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
		_, _ = io.WriteString(w, `{"status":"OK"}`)
	}))
	defer ts.Close()

	c := newClient(t, ts.URL+"/", &recorder{})
	sess := Session{Credential: "tok-123"}
	ctx := context.Background()
	_, _ = c.FetchLine(ctx, sess, 3)
	_, _ = c.UpdateLine(ctx, sess, 2, Edit(KeyLine, ""))
	_, _ = c.CreateLine(ctx, sess, 0, CreatePayload{Task: "new"})
	_, _ = c.DeleteLine(ctx, sess, 9)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(got))
	}
	for _, s := range got {
		if s.csrf != "tok-123" || s.accept != "application/json" || s.reqID == "" {
			t.Fatalf("missing headers: %+v", s)
		}
	}
	if got[0].method != http.MethodGet || got[0].path != "/task/3" || got[0].ctype != "" {
		t.Fatalf("get: %+v", got[0])
	}
	if got[1].method != http.MethodPut || got[1].ctype != "application/json" {
		t.Fatalf("put: %+v", got[1])
	}
	if v, ok := got[1].body["value"]; !ok || v != "" {
		t.Fatalf("edit to empty string must still send value: %v", got[1].body)
	}
	if got[2].method != http.MethodPost || got[2].path != "/task/" || got[2].body["task"] != "new" {
		t.Fatalf("post: %+v", got[2])
	}
	if got[3].method != http.MethodDelete || got[3].path != "/task/9" {
		t.Fatalf("delete: %+v", got[3])
	}
}

func TestWithRecovery_NotifyOnlyAndLogOnly(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	rec := &recorder{}
	c := newClient(t, ts.URL, rec)
	ctx := context.Background()

	_, err := c.UpdateLine(ctx, Session{}, 1, Edit(KeyLine, "x"), WithRecovery(RecoverNotify))
	if err == nil {
		t.Fatalf("expected error")
	}
	if ev := rec.snapshot(); len(ev) != 1 || ev[0] != "notify:PUT failed: 400" {
		t.Fatalf("notify-only events: %v", ev)
	}

	_, err = c.FetchLine(ctx, Session{}, 1, WithRecovery(RecoverLog))
	if err == nil {
		t.Fatalf("expected error")
	}
	if ev := rec.snapshot(); len(ev) != 1 {
		t.Fatalf("log-only must not notify or reload: %v", ev)
	}
}

func TestListLines_FailureNeverReloads(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	rec := &recorder{}
	c := newClient(t, ts.URL, rec)
	if _, err := c.ListLines(context.Background(), Session{}); err == nil {
		t.Fatalf("expected error")
	}
	if ev := rec.snapshot(); len(ev) != 1 || ev[0] != "notify:GET failed: 502" {
		t.Fatalf("events: %v", ev)
	}
}

func TestIssueCredential_UsesServerToken(t *testing.T) {
	ts, _, _ := startServer(t, "a\n")
	c := newClient(t, ts.URL, &recorder{})

	tok, err := c.IssueCredential(context.Background())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	lines, err := c.ListLines(context.Background(), Session{Credential: tok})
	if err != nil {
		t.Fatalf("list with issued token: %v", err)
	}
	if len(lines) != 1 || lines[0].Number != 1 || lines[0].Text != "a" {
		t.Fatalf("lines: %+v", lines)
	}
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "::"} {
		if _, err := New(u); err == nil {
			t.Fatalf("expected error for %q", u)
		}
	}
}
