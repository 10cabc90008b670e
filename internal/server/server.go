// Package server is the reference HTTP server for the line API: a todo.txt
// file exposed as one resource per line under /task/{n}.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"webtodo-cli/internal/store"
	"webtodo-cli/internal/todotxt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

const csrfHeader = "X-CSRF-TOKEN"

type Config struct {
	Addr     string
	File     string
	Secret   []byte
	TokenTTL time.Duration
	Log      log.FieldLogger
	// Now is the clock for completion dates and token expiry.
	Now func() time.Time
}

type Server struct {
	// mu serializes every read-modify-write of the file.
	mu    sync.Mutex
	cfg   Config
	store store.Store
	log   log.FieldLogger
}

type response struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Task    *string       `json:"task,omitempty"`
	Line    int           `json:"line,omitempty"`
	Done    bool          `json:"done,omitempty"`
	Token   string        `json:"token,omitempty"`
	Tasks   []store.Entry `json:"tasks,omitempty"`
}

type putRequest struct {
	Action string  `json:"action"`
	Key    string  `json:"key"`
	Value  *string `json:"value"`
}

type postRequest struct {
	Task string `json:"task"`
}

func New(cfg Config) (*Server, error) {
	cfg.File = strings.TrimSpace(cfg.File)
	if cfg.File == "" {
		return nil, errors.New("server: todo file is empty")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("server: csrf secret is empty")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = log.StandardLogger()
	}
	st := store.Store{Path: cfg.File}
	if err := st.Ensure(); err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, store: st, log: cfg.Log}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{Status: "OK"})
	})
	r.Get("/csrf", s.handleCSRF)

	r.Group(func(r chi.Router) {
		r.Use(s.requireCSRF)
		r.Get("/tasks", s.handleList)
		r.Post("/task/", s.handleAppend)
		r.Route("/task/{line}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Put("/", s.handlePut)
			r.Post("/", s.handleInsert)
			r.Delete("/", s.handleDelete)
		})
	})
	return r
}

// IssueToken mints a credential the same way GET /csrf does.
func (s *Server) IssueToken() (string, error) {
	return issueCSRFToken(s.cfg.Secret, s.cfg.TokenTTL, s.cfg.Now())
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		return errors.New("server: addr is empty")
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.WithFields(log.Fields{"addr": addr, "file": s.cfg.File}).Info("serving todo file")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"dur":        time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := verifyCSRFToken(s.cfg.Secret, r.Header.Get(csrfHeader), s.cfg.Now()); err != nil {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	tok, err := s.IssueToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot issue token")
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "OK", Token: tok})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	entries, err := s.store.Entries()
	s.mu.Unlock()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "OK", Tasks: entries})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	n, ok := lineParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	text, err := s.store.Line(n)
	s.mu.Unlock()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lineResponse(n, text))
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	n, ok := lineParam(w, r)
	if !ok {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var req putRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Cannot parse request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		text string
		err  error
	)
	switch {
	case req.Action == "toggle" && req.Key == "done":
		text, err = s.store.Toggle(n, s.cfg.Now())
	case req.Action == "edit" && req.Key == "line":
		if req.Value == nil {
			writeError(w, http.StatusBadRequest, "edit requires a value")
			return
		}
		text, err = s.store.Edit(n, *req.Value)
	default:
		writeError(w, http.StatusBadRequest, "unsupported action "+req.Action+"/"+req.Key)
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lineResponse(n, text))
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	s.create(w, r, 0)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	n, ok := lineParam(w, r)
	if !ok {
		return
	}
	if n < 1 {
		writeError(w, http.StatusNotFound, "Line number not found")
		return
	}
	s.create(w, r, n)
}

// create inserts before line n, or appends when n is 0.
func (s *Server) create(w http.ResponseWriter, r *http.Request, n int) {
	if !requireJSON(w, r) {
		return
	}
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Could not parse request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if n == 0 {
		n, err = s.store.Append(req.Task)
	} else {
		n, err = s.store.Insert(n, req.Task)
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	text, err := s.store.Line(n)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lineResponse(n, text))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	n, ok := lineParam(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	err := s.store.Delete(n)
	s.mu.Unlock()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "OK"})
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var nf store.LineNotFoundError
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, "Line number not found")
	case errors.Is(err, store.ErrEmptyTask):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("store operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func lineParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "line"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Cannot parse line number.")
		return 0, false
	}
	return n, true
}

func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		writeError(w, http.StatusUnsupportedMediaType, "Content-type not supported.")
		return false
	}
	return true
}

func lineResponse(n int, text string) response {
	return response{Status: "OK", Task: &text, Line: n, Done: todotxt.Parse(text).Completed}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Status: "NOK", Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
