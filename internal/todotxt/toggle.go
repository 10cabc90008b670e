package todotxt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ToggleDone flips completion. Completing a recurring task (rec:Nd|Nw|Nm|Ny)
// returns the follow-up task that should be appended to the list.
func (t *Task) ToggleDone(today time.Time) (*Task, error) {
	if t.Completed {
		t.SetUndone()
		return nil, nil
	}
	return t.SetDone(today)
}

// SetUndone reopens a completed task and restores the priority kept in pri:.
func (t *Task) SetUndone() {
	if !t.Completed {
		return
	}
	t.Completed = false
	t.CompletionDate = nil
	if p, ok := t.Attr("pri"); ok && p != "" {
		t.Priority = strings.ToUpper(p[:1])
		t.RemoveAttr("pri")
	}
}

// SetDone completes the task. The priority moves into a pri: attribute since
// completed lines carry no (A) marker.
func (t *Task) SetDone(today time.Time) (*Task, error) {
	if t.Completed {
		return nil, nil
	}
	today = dateOnly(today)

	var next *Task
	if _, ok := t.Attr("rec"); ok {
		n, err := t.nextOccurrence(today)
		if err != nil {
			return nil, err
		}
		next = n
	}

	if t.Priority != "" {
		t.RemoveAttr("pri")
		t.SetAttr("pri", t.Priority)
		t.Priority = ""
	}
	t.Completed = true
	t.CompletionDate = &today
	return next, nil
}

func (t Task) nextOccurrence(today time.Time) (*Task, error) {
	rec, _ := t.Attr("rec")
	next := Parse(t.String())

	offset := today
	if due, ok := t.Due(); ok {
		offset = due
	}
	next.RemoveAttr("due")

	due, err := applyRecurrence(offset, rec)
	if err != nil {
		return nil, err
	}
	for due.Before(today) {
		if due, err = applyRecurrence(due, rec); err != nil {
			return nil, err
		}
	}

	next.SetAttr("due", due.Format(DateLayout))
	created := today
	next.CreationDate = &created
	return &next, nil
}

func applyRecurrence(d time.Time, rec string) (time.Time, error) {
	rec = strings.TrimPrefix(strings.TrimSpace(rec), "+")
	if len(rec) < 2 {
		return d, fmt.Errorf("invalid recurrence %q", rec)
	}
	n, err := strconv.Atoi(rec[:len(rec)-1])
	if err != nil || n <= 0 {
		return d, fmt.Errorf("invalid recurrence %q", rec)
	}
	switch rec[len(rec)-1] {
	case 'd':
		return d.AddDate(0, 0, n), nil
	case 'w':
		return d.AddDate(0, 0, 7*n), nil
	case 'm':
		return addMonths(d, n), nil
	case 'y':
		return addMonths(d, 12*n), nil
	default:
		return d, fmt.Errorf("unknown recurrence unit in %q", rec)
	}
}

// addMonths moves d by n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1m is Feb 28/29, not Mar 3).
func addMonths(d time.Time, n int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, d.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
