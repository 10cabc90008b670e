package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"webtodo-cli/internal/taskapi"
	"webtodo-cli/internal/todotxt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type lineItem struct {
	line taskapi.Line
	// hidden is set while the row's content is swapped out for the editor.
	hidden bool
}

func (it lineItem) FilterValue() string { return it.line.Text }

// lineDelegate renders one task per terminal row:
// number, checkbox, then the todo.txt text with priority and tags colored.
type lineDelegate struct {
	numW int
}

func (d lineDelegate) Height() int                             { return 1 }
func (d lineDelegate) Spacing() int                            { return 0 }
func (d lineDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d lineDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(lineItem)
	if !ok {
		return
	}
	contentW := m.Width()
	if contentW < 8 {
		return
	}
	selected := index == m.Index()

	num := styleMuted().Render(padLeft(strconv.Itoa(it.line.Number), d.numW))
	box := glyphOpen()
	if it.line.Done {
		box = glyphDone()
	}
	prefix := num + " " + box + " "

	var body string
	if it.hidden {
		body = styleMuted().Render(glyphHidden())
	} else {
		body = renderTaskText(it.line.Text, it.line.Done)
	}

	line := prefix + body
	lineW := xansi.StringWidth(line)
	if lineW > contentW {
		line = xansi.Truncate(line, contentW, glyphHidden())
	} else {
		line += strings.Repeat(" ", contentW-lineW)
	}
	if selected {
		line = lipgloss.NewStyle().
			Background(colorSelectedBg).
			Foreground(colorSelectedFg).
			Bold(true).
			Render(xansi.Strip(line))
	}
	fmt.Fprint(w, line)
}

// renderTaskText colors the parts of a todo.txt line. The text itself is
// never rewritten.
func renderTaskText(text string, done bool) string {
	if done {
		return styleMuted().Strikethrough(true).Render(text)
	}
	t := todotxt.Parse(text)
	var out []string
	rest := text
	if t.Priority != "" && strings.HasPrefix(rest, "("+t.Priority+")") {
		out = append(out, lipgloss.NewStyle().Foreground(priorityColor(t.Priority)).Bold(true).Render("("+t.Priority+")"))
		rest = strings.TrimPrefix(rest, "("+t.Priority+")")
	}
	for _, tok := range strings.SplitAfter(rest, " ") {
		word := strings.TrimRight(tok, " ")
		trail := tok[len(word):]
		switch {
		case len(word) > 1 && word[0] == '+':
			out = append(out, lipgloss.NewStyle().Foreground(colorProject).Render(word)+trail)
		case len(word) > 1 && word[0] == '@':
			out = append(out, lipgloss.NewStyle().Foreground(colorContext).Render(word)+trail)
		default:
			out = append(out, tok)
		}
	}
	return strings.Join(out, "")
}

func padLeft(s string, w int) string {
	if n := w - len(s); n > 0 {
		return strings.Repeat(" ", n) + s
	}
	return s
}

func newLineList(lines []taskapi.Line, width, height int) list.Model {
	items := make([]list.Item, 0, len(lines))
	maxN := 0
	for _, ln := range lines {
		items = append(items, lineItem{line: ln})
		if ln.Number > maxN {
			maxN = ln.Number
		}
	}
	l := list.New(items, lineDelegate{numW: len(strconv.Itoa(maxN))}, width, height)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(true)
	l.DisableQuitKeybindings()
	return l
}
