package todotxt

import (
	"strings"
	"time"
)

// Filter selects tasks carrying every listed project and context. Tokens are
// stored without their +/@ prefix.
type Filter struct {
	Projects []string
	Contexts []string
}

// ParseFilter reads "+home @phone, +work" style input. Tokens that are neither
// a project nor a context are ignored.
func ParseFilter(raw string) Filter {
	var f Filter
	for _, tok := range strings.Fields(strings.ReplaceAll(raw, ",", " ")) {
		if len(tok) < 2 {
			continue
		}
		switch tok[0] {
		case '+':
			f.Projects = append(f.Projects, tok[1:])
		case '@':
			f.Contexts = append(f.Contexts, tok[1:])
		}
	}
	return f
}

func (f Filter) Empty() bool { return len(f.Projects) == 0 && len(f.Contexts) == 0 }

func (f Filter) String() string {
	parts := make([]string, 0, len(f.Projects)+len(f.Contexts))
	for _, p := range f.Projects {
		parts = append(parts, "+"+p)
	}
	for _, c := range f.Contexts {
		parts = append(parts, "@"+c)
	}
	return strings.Join(parts, " ")
}

func (f Filter) Match(t Task) bool {
	return containsAll(t.Projects(), f.Projects) && containsAll(t.Contexts(), f.Contexts)
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Overdue is true for an open task whose due date is before today.
func (t Task) Overdue(today time.Time) bool {
	if t.Completed {
		return false
	}
	due, ok := t.Due()
	return ok && due.Before(dateOnly(today))
}

// ViewLess orders the main task view: open tasks first, by priority (none
// sorts after Z) then newest creation date; done tasks last, newest
// completion first. Tasks without the relevant date lead their group.
func ViewLess(a, b Task) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}
	if a.Completed {
		return dateKey(a.CompletionDate) > dateKey(b.CompletionDate)
	}
	pa, pb := priorityKey(a.Priority), priorityKey(b.Priority)
	if pa != pb {
		return pa < pb
	}
	return dateKey(a.CreationDate) > dateKey(b.CreationDate)
}

func priorityKey(p string) string {
	if p == "" {
		return "Z"
	}
	return p
}

// dateKey makes a missing date compare as newer than any real date.
func dateKey(d *time.Time) int64 {
	if d == nil {
		return 1<<63 - 1
	}
	return dateOnly(*d).Unix()
}
