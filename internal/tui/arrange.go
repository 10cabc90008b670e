package tui

import (
	"sort"
	"strings"
	"time"

	"webtodo-cli/internal/taskapi"
	"webtodo-cli/internal/todotxt"
)

// arrangeLines returns the rows of the task view: blank lines dropped, the
// filter applied, then open tasks by priority and done tasks last. Rows keep
// their file line number, so every action still addresses the file.
func arrangeLines(lines []taskapi.Line, f todotxt.Filter) []taskapi.Line {
	type row struct {
		line taskapi.Line
		task todotxt.Task
	}
	rows := make([]row, 0, len(lines))
	for _, ln := range lines {
		if strings.TrimSpace(ln.Text) == "" {
			continue
		}
		t := todotxt.Parse(ln.Text)
		if !f.Match(t) {
			continue
		}
		rows = append(rows, row{line: ln, task: t})
	}
	sort.SliceStable(rows, func(i, j int) bool { return todotxt.ViewLess(rows[i].task, rows[j].task) })

	out := make([]taskapi.Line, len(rows))
	for i, r := range rows {
		out[i] = r.line
	}
	return out
}

func countOverdue(lines []taskapi.Line, today time.Time) int {
	n := 0
	for _, ln := range lines {
		if todotxt.Parse(ln.Text).Overdue(today) {
			n++
		}
	}
	return n
}
