package todotxt

import (
	"testing"
	"time"
)

func TestParse_RoundTripsCommonShapes(t *testing.T) {
	lines := []string{
		"Buy milk",
		"(A) Call mom +family @phone",
		"(B) 2024-03-01 Pay rent due:2024-03-05",
		"x 2024-03-02 2024-03-01 Pay rent due:2024-03-05 pri:B",
		"x Done without dates",
		"",
	}
	for _, l := range lines {
		if got := Parse(l).String(); got != l {
			t.Fatalf("round trip: got %q want %q", got, l)
		}
	}
}

func TestParse_Fields(t *testing.T) {
	task := Parse("(A) 2024-03-01 Call mom +family @phone http://x.test due:2024-03-04")
	if task.Completed {
		t.Fatalf("expected not completed")
	}
	if task.Priority != "A" {
		t.Fatalf("priority: got %q", task.Priority)
	}
	if task.CreationDate == nil || task.CreationDate.Format(DateLayout) != "2024-03-01" {
		t.Fatalf("creation date: got %v", task.CreationDate)
	}
	if p := task.Projects(); len(p) != 1 || p[0] != "family" {
		t.Fatalf("projects: got %v", p)
	}
	if c := task.Contexts(); len(c) != 1 || c[0] != "phone" {
		t.Fatalf("contexts: got %v", c)
	}
	if _, ok := task.Attr("http"); ok {
		t.Fatalf("expected URL not to be treated as an attribute")
	}
	if due, ok := task.Due(); !ok || due.Format(DateLayout) != "2024-03-04" {
		t.Fatalf("due: got %v %v", due, ok)
	}
}

func TestParse_LowercasePriorityIsDescription(t *testing.T) {
	task := Parse("(a) not a priority")
	if task.Priority != "" || task.Description != "(a) not a priority" {
		t.Fatalf("unexpected parse: %+v", task)
	}
}

func TestToggleDone_MovesPriorityIntoAttribute(t *testing.T) {
	today := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	task := Parse("(A) 2024-03-01 Write report")

	next, err := task.ToggleDone(today)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no follow-up task")
	}
	if got, want := task.String(), "x 2024-03-10 2024-03-01 Write report pri:A"; got != want {
		t.Fatalf("done: got %q want %q", got, want)
	}

	if _, err := task.ToggleDone(today); err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if got, want := task.String(), "(A) 2024-03-01 Write report"; got != want {
		t.Fatalf("undone: got %q want %q", got, want)
	}
}

func TestToggleDone_RecurringTaskSpawnsNextOccurrence(t *testing.T) {
	today := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	task := Parse("Water plants rec:1w due:2024-02-20")

	next, err := task.ToggleDone(today)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if next == nil {
		t.Fatalf("expected follow-up task")
	}
	// 02-20 +1w = 02-27, +1w = 03-05, +1w = 03-12 (first date not in the past).
	if due, _ := next.Due(); due.Format(DateLayout) != "2024-03-12" {
		t.Fatalf("next due: got %s", due.Format(DateLayout))
	}
	if next.Completed {
		t.Fatalf("follow-up must be open")
	}
	if next.CreationDate == nil || !next.CreationDate.Equal(today) {
		t.Fatalf("follow-up creation date: got %v", next.CreationDate)
	}
	if !task.Completed {
		t.Fatalf("original must be completed")
	}
}

func TestToggleDone_MonthlyWithoutDueUsesToday(t *testing.T) {
	today := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	task := Parse("Pay rent rec:1m")
	next, err := task.ToggleDone(today)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if got, _ := next.Attr("due"); got != "2024-02-29" {
		t.Fatalf("next due: got %q", got)
	}
}

func TestToggleDone_MonthEndClampsToTargetMonth(t *testing.T) {
	tests := []struct {
		line  string
		today time.Time
		want  string
	}{
		{"Pay rent due:2026-01-31 rec:1m", time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), "2026-02-28"},
		{"Quarterly due:2026-08-31 rec:3m", time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), "2026-11-30"},
		{"Leap day due:2024-02-29 rec:1y", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), "2025-02-28"},
		{"Mid month due:2026-01-15 rec:1m", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), "2026-02-15"},
	}
	for _, tt := range tests {
		task := Parse(tt.line)
		next, err := task.ToggleDone(tt.today)
		if err != nil {
			t.Fatalf("%s: toggle: %v", tt.line, err)
		}
		if got, _ := next.Attr("due"); got != tt.want {
			t.Fatalf("%s: next due %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestToggleDone_InvalidRecurrence(t *testing.T) {
	task := Parse("Broken rec:3q")
	if _, err := task.ToggleDone(time.Now()); err == nil {
		t.Fatalf("expected error for unknown unit")
	}
	if task.Completed {
		t.Fatalf("task must stay open when recurrence fails")
	}
}

func TestSetAttrAndRemoveAttr(t *testing.T) {
	task := Parse("Thing due:2024-01-01 +p")
	task.SetAttr("due", "2024-02-02")
	if task.Description != "Thing due:2024-02-02 +p" {
		t.Fatalf("set existing: got %q", task.Description)
	}
	task.SetAttr("rec", "1d")
	task.RemoveAttr("due")
	if task.Description != "Thing +p rec:1d" {
		t.Fatalf("remove: got %q", task.Description)
	}
	if attrs := task.Attrs(); len(attrs) != 1 || attrs[0] != [2]string{"rec", "1d"} {
		t.Fatalf("attrs: got %v", attrs)
	}
}
