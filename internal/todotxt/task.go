// Package todotxt models a single todo.txt line: completion marker, priority,
// dates, and the description with its +project, @context and key:value tokens.
package todotxt

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Task is one parsed todo.txt line. Description keeps the user's text verbatim
// (including projects, contexts and attributes) so formatting round-trips.
type Task struct {
	Completed      bool
	CompletionDate *time.Time
	Priority       string
	CreationDate   *time.Time
	Description    string
}

// Parse never fails: anything that does not look like a header field is part
// of the description.
func Parse(line string) Task {
	var t Task
	rest := strings.TrimRight(line, "\r\n")

	if strings.HasPrefix(rest, "x ") {
		t.Completed = true
		rest = strings.TrimLeft(rest[2:], " ")
		if d, r, ok := cutDate(rest); ok {
			t.CompletionDate = &d
			rest = r
			if d2, r2, ok := cutDate(rest); ok {
				t.CreationDate = &d2
				rest = r2
			}
		}
		t.Description = rest
		return t
	}

	if p, r, ok := cutPriority(rest); ok {
		t.Priority = p
		rest = r
	}
	if d, r, ok := cutDate(rest); ok {
		t.CreationDate = &d
		rest = r
	}
	t.Description = rest
	return t
}

func cutPriority(s string) (string, string, bool) {
	if len(s) < 4 || s[0] != '(' || s[2] != ')' || s[3] != ' ' {
		return "", s, false
	}
	if s[1] < 'A' || s[1] > 'Z' {
		return "", s, false
	}
	return s[1:2], strings.TrimLeft(s[4:], " "), true
}

func cutDate(s string) (time.Time, string, bool) {
	tok, rest, _ := strings.Cut(s, " ")
	if len(tok) != len(DateLayout) {
		return time.Time{}, s, false
	}
	d, err := time.Parse(DateLayout, tok)
	if err != nil {
		return time.Time{}, s, false
	}
	return d, strings.TrimLeft(rest, " "), true
}

func (t Task) String() string {
	var parts []string
	if t.Completed {
		parts = append(parts, "x")
		if t.CompletionDate != nil {
			parts = append(parts, t.CompletionDate.Format(DateLayout))
		}
	} else if t.Priority != "" {
		parts = append(parts, "("+t.Priority+")")
	}
	if t.CreationDate != nil {
		parts = append(parts, t.CreationDate.Format(DateLayout))
	}
	if t.Description != "" {
		parts = append(parts, t.Description)
	}
	return strings.Join(parts, " ")
}

func (t Task) Projects() []string { return t.tagged('+') }

func (t Task) Contexts() []string { return t.tagged('@') }

func (t Task) tagged(prefix byte) []string {
	var out []string
	for _, f := range strings.Fields(t.Description) {
		if len(f) > 1 && f[0] == prefix {
			out = append(out, f[1:])
		}
	}
	return out
}

// Attr returns the value of the first key:value token with the given key.
func (t Task) Attr(key string) (string, bool) {
	for _, f := range strings.Fields(t.Description) {
		k, v, ok := splitAttr(f)
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}

// Attrs returns every key:value token in description order.
func (t Task) Attrs() [][2]string {
	var out [][2]string
	for _, f := range strings.Fields(t.Description) {
		if k, v, ok := splitAttr(f); ok {
			out = append(out, [2]string{k, v})
		}
	}
	return out
}

// SetAttr replaces the first key:value token for key, or appends one.
func (t *Task) SetAttr(key, value string) {
	fields := strings.Fields(t.Description)
	for i, f := range fields {
		if k, _, ok := splitAttr(f); ok && k == key {
			fields[i] = key + ":" + value
			t.Description = strings.Join(fields, " ")
			return
		}
	}
	fields = append(fields, key+":"+value)
	t.Description = strings.Join(fields, " ")
}

// RemoveAttr drops every key:value token for key.
func (t *Task) RemoveAttr(key string) {
	fields := strings.Fields(t.Description)
	kept := fields[:0]
	found := false
	for _, f := range fields {
		if k, _, ok := splitAttr(f); ok && k == key {
			found = true
			continue
		}
		kept = append(kept, f)
	}
	if found {
		t.Description = strings.Join(kept, " ")
	}
}

func splitAttr(tok string) (string, string, bool) {
	k, v, ok := strings.Cut(tok, ":")
	if !ok || k == "" || v == "" {
		return "", "", false
	}
	// URLs are not attributes.
	if strings.HasPrefix(v, "//") {
		return "", "", false
	}
	if strings.ContainsAny(k, "+@") {
		return "", "", false
	}
	return k, v, true
}

// Due returns the parsed due:YYYY-MM-DD attribute.
func (t Task) Due() (time.Time, bool) {
	v, ok := t.Attr("due")
	if !ok {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
