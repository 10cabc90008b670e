package tui

import (
	"context"
	"time"

	"webtodo-cli/internal/controller"
	"webtodo-cli/internal/taskapi"
	"webtodo-cli/internal/todotxt"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	log "github.com/sirupsen/logrus"
)

// Lister fetches the whole file to rebuild the view after a reload.
type Lister interface {
	ListLines(ctx context.Context, sess taskapi.Session) ([]taskapi.Line, error)
}

type editState int

const (
	// editOpening: row content hidden, waiting for the line fetch.
	editOpening editState = iota
	editEditing
	editCommitting
	// editFailed: the commit was rejected; the input is kept and flagged.
	editFailed
)

// editSession is the single line currently swapped out for an editor.
type editSession struct {
	line  int
	state editState
	input textarea.Model
}

type appModel struct {
	ctx    context.Context
	ctrl   *controller.Controller
	lister Lister
	log    log.FieldLogger
	origin string

	width  int
	height int

	// list is rebuilt from scratch on every reload. all holds the file as
	// last fetched; the list shows it filtered and sorted.
	list    list.Model
	all     []taskapi.Line
	count   int
	total   int
	overdue int
	loaded  bool
	loadSeq int

	// filter survives reloads until cleared from the prompt.
	filter      todotxt.Filter
	filterInput textinput.Model
	now         func() time.Time

	edit *editSession

	modal         modalKind
	confirmFocus  confirmModalFocus
	pendingDelete int
	addInput      textinput.Model
	addAt         int

	// alerts queue blocking notifications; the head is shown until acked.
	alerts []alertMsg

	minibufferText string
}

type reloadMsg struct{}

type linesLoadedMsg struct {
	seq       int
	lines     []taskapi.Line
	scroll    int
	hasScroll bool
	err       error
}

type alertMsg struct {
	text string
	ack  chan struct{}
}

type editOpenedMsg struct {
	line int
	text string
	err  error
}

type commitDoneMsg struct {
	line int
	err  error
}

type mutationDoneMsg struct {
	verb string
	line int
	err  error
}

const (
	headerLines = 2
	footerLines = 1
	editorLines = 6
)

func newAppModel(ctx context.Context, ctrl *controller.Controller, lister Lister, logger log.FieldLogger, origin string) appModel {
	if logger == nil {
		logger = log.StandardLogger()
	}
	m := appModel{
		ctx:     ctx,
		ctrl:    ctrl,
		lister:  lister,
		log:     logger,
		origin:  origin,
		width:   80,
		height:  24,
		loadSeq: 1,
		now:     time.Now,
	}
	m.list = newLineList(nil, m.width, m.listHeight())
	return m
}

func newEditor(text string, width int) textarea.Model {
	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.Placeholder = "task text"
	ta.SetWidth(max(20, width-4))
	ta.SetHeight(3)
	_ = ta.Cursor.SetMode(cursor.CursorStatic)
	ta.SetValue(text)
	return ta
}

func newAddInput() textinput.Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "(A) 2024-01-01 Call mom +family @phone due:2024-01-07"
	ti.CharLimit = 0
	_ = ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func newFilterInput(current todotxt.Filter) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "+project @context"
	ti.CharLimit = 0
	_ = ti.Cursor.SetMode(cursor.CursorStatic)
	ti.SetValue(current.String())
	ti.CursorEnd()
	return ti
}

func (m appModel) listHeight() int {
	h := m.height - headerLines - footerLines
	if m.edit != nil {
		h -= editorLines
	}
	if h < 3 {
		h = 3
	}
	return h
}

func (m *appModel) resize() {
	m.list.SetSize(m.width, m.listHeight())
	if m.edit != nil && m.edit.state != editOpening {
		m.edit.input.SetWidth(max(20, m.width-4))
	}
}

func (m appModel) selectedLine() (taskapi.Line, bool) {
	it, ok := m.list.SelectedItem().(lineItem)
	if !ok {
		return taskapi.Line{}, false
	}
	return it.line, true
}

// setHidden swaps the content of line n in or out of the list.
func (m *appModel) setHidden(n int, hidden bool) {
	for i, item := range m.list.Items() {
		it, ok := item.(lineItem)
		if !ok || it.line.Number != n {
			continue
		}
		it.hidden = hidden
		_ = m.list.SetItem(i, it)
		return
	}
}

func (m *appModel) showMinibuffer(text string) {
	m.minibufferText = text
}
