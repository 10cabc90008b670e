package taskapi

import (
	"context"
	"fmt"
)

// Session is the per-page client context threaded through every call.
// Credential is the opaque anti-forgery token; its issuance and rotation
// belong to the server.
type Session struct {
	Credential string
}

// Mutation is the {action, key, value?} descriptor sent with PUT. The server
// alone interprets it.
type Mutation struct {
	Action string  `json:"action"`
	Key    string  `json:"key"`
	Value  *string `json:"value,omitempty"`
}

const (
	ActionToggle = "toggle"
	ActionEdit   = "edit"

	KeyDone = "done"
	KeyLine = "line"
)

func Toggle(key string) Mutation { return Mutation{Action: ActionToggle, Key: key} }

func Edit(key, value string) Mutation {
	v := value
	return Mutation{Action: ActionEdit, Key: key, Value: &v}
}

// TaskPayload is the JSON body the server answers with.
type TaskPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Task    string `json:"task,omitempty"`
	Line    int    `json:"line,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Token   string `json:"token,omitempty"`
	Tasks   []Line `json:"tasks,omitempty"`
}

// Line is one row of the server's file as listed by GET /tasks.
type Line struct {
	Number int    `json:"line"`
	Text   string `json:"task"`
	Done   bool   `json:"done"`
}

// CreatePayload is the body the reference server expects on POST.
type CreatePayload struct {
	Task string `json:"task"`
}

// RequestError is the single failure kind: any non-2xx answer on any verb.
type RequestError struct {
	Verb    string
	Line    int
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed: %d", e.Verb, e.Status)
}

// Notifier presents a blocking failure notification. Notify returns once the
// user acknowledged it (or ctx is done).
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Reloader discards the current view and rebuilds it from the server.
type Reloader interface {
	Reload()
}

type NotifierFunc func(ctx context.Context, message string)

func (f NotifierFunc) Notify(ctx context.Context, message string) { f(ctx, message) }

type ReloaderFunc func()

func (f ReloaderFunc) Reload() { f() }

// Recovery selects what a failed call does beyond returning its error.
type Recovery int

const (
	// RecoverReload notifies, then reloads. The default for every verb.
	RecoverReload Recovery = iota
	// RecoverNotify notifies but keeps the current view (and any typed input).
	RecoverNotify
	// RecoverLog only logs.
	RecoverLog
)

type callOptions struct {
	recovery Recovery
}

type CallOption func(*callOptions)

func WithRecovery(r Recovery) CallOption {
	return func(o *callOptions) { o.recovery = r }
}
