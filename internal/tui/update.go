package tui

import (
	"errors"
	"fmt"
	"strings"

	"webtodo-cli/internal/controller"
	"webtodo-cli/internal/taskapi"
	"webtodo-cli/internal/todotxt"

	tea "github.com/charmbracelet/bubbletea"
)

func (m appModel) Init() tea.Cmd { return m.loadCmd(m.loadSeq) }

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case reloadMsg:
		cmd := m.startReload()
		return m, cmd

	case linesLoadedMsg:
		if msg.seq != m.loadSeq {
			return m, nil
		}
		m.applyLines(msg)
		return m, nil

	case alertMsg:
		m.alerts = append(m.alerts, msg)
		return m, nil

	case editOpenedMsg:
		return m.onEditOpened(msg)

	case commitDoneMsg:
		return m.onCommitDone(msg)

	case mutationDoneMsg:
		m.onMutationDone(msg)
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

// startReload discards the view (including any open editor) and refetches
// every line.
func (m *appModel) startReload() tea.Cmd {
	m.edit = nil
	m.loaded = false
	m.count = 0
	m.loadSeq++
	m.all = nil
	m.list = newLineList(nil, m.width, m.listHeight())
	return m.loadCmd(m.loadSeq)
}

func (m appModel) loadCmd(seq int) tea.Cmd {
	ctx, lister, ctrl := m.ctx, m.lister, m.ctrl
	return func() tea.Msg {
		lines, err := lister.ListLines(ctx, ctrl.Session)
		y, ok := ctrl.RestoreScroll(ctx)
		return linesLoadedMsg{seq: seq, lines: lines, scroll: y, hasScroll: ok, err: err}
	}
}

func (m *appModel) applyLines(msg linesLoadedMsg) {
	m.loaded = true
	if msg.err != nil {
		m.log.WithError(msg.err).Error("load task list")
		m.showMinibuffer("could not load tasks (r: retry)")
		return
	}
	m.all = msg.lines
	m.rearrange()
	if msg.hasScroll && m.count > 0 {
		y := msg.scroll
		if y >= m.count {
			y = m.count - 1
		}
		if y < 0 {
			y = 0
		}
		m.list.Select(y)
	}
}

// rearrange rebuilds the list from the last fetched file under the current
// filter.
func (m *appModel) rearrange() {
	all := arrangeLines(m.all, todotxt.Filter{})
	shown := all
	if !m.filter.Empty() {
		shown = arrangeLines(m.all, m.filter)
	}
	m.total = len(all)
	m.count = len(shown)
	m.overdue = countOverdue(shown, m.now())
	m.list = newLineList(shown, m.width, m.listHeight())
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		for _, a := range m.alerts {
			close(a.ack)
		}
		m.alerts = nil
		return m, tea.Quit
	}

	// A pending alert swallows all input until acknowledged.
	if len(m.alerts) > 0 {
		switch msg.String() {
		case "enter", "esc", " ":
			close(m.alerts[0].ack)
			m.alerts = m.alerts[1:]
		}
		return m, nil
	}

	switch m.modal {
	case modalConfirmDelete:
		return m.updateConfirmDelete(msg)
	case modalAdd:
		return m.updateAdd(msg)
	case modalFilter:
		return m.updateFilter(msg)
	case modalHelp:
		switch msg.String() {
		case "esc", "q", "?", "enter":
			m.modal = modalNone
		}
		return m, nil
	}

	if m.edit != nil && m.edit.state != editOpening {
		return m.updateEditor(msg)
	}

	m.minibufferText = ""
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		cmd := m.startReload()
		return m, cmd
	case "?":
		m.modal = modalHelp
		return m, nil
	case "/":
		if m.edit != nil {
			return m, nil
		}
		m.modal = modalFilter
		m.filterInput = newFilterInput(m.filter)
		cmd := m.filterInput.Focus()
		return m, cmd
	case " ", "x":
		ln, ok := m.selectedLine()
		if !ok {
			return m, nil
		}
		ctx, ctrl, y := m.ctx, m.ctrl, m.list.Index()
		return m, m.mutationCmd("toggle", ln.Number, func() error {
			return ctrl.Toggle(ctx, ln.Number, y)
		})
	case "e", "enter":
		return m.openEdit()
	case "d", "delete":
		ln, ok := m.selectedLine()
		if !ok {
			return m, nil
		}
		m.modal = modalConfirmDelete
		m.confirmFocus = confirmFocusConfirm
		m.pendingDelete = ln.Number
		return m, nil
	case "a", "i":
		m.addAt = 0
		if msg.String() == "i" {
			if ln, ok := m.selectedLine(); ok {
				m.addAt = ln.Number
			}
		}
		m.modal = modalAdd
		m.addInput = newAddInput()
		cmd := m.addInput.Focus()
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// openEdit hides the selected row and fetches its current text. A row that
// is not in the view is a no-op.
func (m appModel) openEdit() (tea.Model, tea.Cmd) {
	if m.edit != nil {
		return m, nil
	}
	ln, ok := m.selectedLine()
	if !ok {
		return m, nil
	}
	m.edit = &editSession{line: ln.Number, state: editOpening}
	m.setHidden(ln.Number, true)
	m.resize()

	ctx, ctrl, n, y := m.ctx, m.ctrl, ln.Number, m.list.Index()
	return m, func() tea.Msg {
		text, err := ctrl.OpenEdit(ctx, n, y)
		return editOpenedMsg{line: n, text: text, err: err}
	}
}

func (m appModel) onEditOpened(msg editOpenedMsg) (tea.Model, tea.Cmd) {
	if m.edit == nil || m.edit.line != msg.line || m.edit.state != editOpening {
		return m, nil
	}
	if msg.err != nil {
		// Put the row back the way it was.
		m.setHidden(msg.line, false)
		m.edit = nil
		m.resize()
		return m, nil
	}
	m.edit.input = newEditor(msg.text, m.width)
	m.edit.state = editEditing
	cmd := m.edit.input.Focus()
	return m, cmd
}

func (m appModel) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.edit
	if e.state == editCommitting {
		return m, nil
	}
	switch msg.String() {
	case "esc", "tab", "ctrl+s":
		// Leaving the editor commits it.
		e.input.Blur()
		e.state = editCommitting
		ctx, ctrl, n, v := m.ctx, m.ctrl, e.line, e.input.Value()
		return m, func() tea.Msg {
			return commitDoneMsg{line: n, err: ctrl.CommitEdit(ctx, n, v)}
		}
	}
	if e.state == editFailed {
		e.state = editEditing
	}
	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return m, cmd
}

func (m appModel) onCommitDone(msg commitDoneMsg) (tea.Model, tea.Cmd) {
	// On success the reload has already replaced the view.
	if msg.err == nil || m.edit == nil || m.edit.line != msg.line {
		return m, nil
	}
	if errors.Is(msg.err, controller.ErrBusy) {
		m.edit.state = editEditing
		m.showMinibuffer("busy: " + msg.err.Error())
	} else {
		m.edit.state = editFailed
		m.showMinibuffer(fmt.Sprintf("line %d not saved: %v", msg.line, msg.err))
	}
	cmd := m.edit.input.Focus()
	return m, cmd
}

func (m appModel) mutationCmd(verb string, n int, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return mutationDoneMsg{verb: verb, line: n, err: fn()}
	}
}

func (m *appModel) onMutationDone(msg mutationDoneMsg) {
	var rerr *taskapi.RequestError
	switch {
	case msg.err == nil:
	case errors.Is(msg.err, controller.ErrBusy):
		m.showMinibuffer("busy: " + msg.err.Error())
	case errors.As(msg.err, &rerr):
		// Already shown as an alert and followed by a reload.
	default:
		m.log.WithError(msg.err).WithField("line", msg.line).Error(msg.verb + " failed")
		m.showMinibuffer(fmt.Sprintf("%s line %d: %v", msg.verb, msg.line, msg.err))
	}
}

func (m appModel) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "n", "ctrl+g":
		m.modal = modalNone
		return m, nil
	case "tab", "shift+tab", "left", "right":
		if m.confirmFocus == confirmFocusConfirm {
			m.confirmFocus = confirmFocusCancel
		} else {
			m.confirmFocus = confirmFocusConfirm
		}
		return m, nil
	case "y", "enter":
		m.modal = modalNone
		if msg.String() == "enter" && m.confirmFocus == confirmFocusCancel {
			return m, nil
		}
		ctx, ctrl, n, y := m.ctx, m.ctrl, m.pendingDelete, m.list.Index()
		return m, m.mutationCmd("delete", n, func() error {
			return ctrl.Delete(ctx, n, y)
		})
	}
	return m, nil
}

func (m appModel) updateAdd(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.modal = modalNone
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.addInput.Value())
		if text == "" {
			return m, nil
		}
		m.modal = modalNone
		ctx, ctrl, at, y := m.ctx, m.ctrl, m.addAt, m.list.Index()
		return m, m.mutationCmd("add", at, func() error {
			return ctrl.Create(ctx, at, text, y)
		})
	}
	var cmd tea.Cmd
	m.addInput, cmd = m.addInput.Update(msg)
	return m, cmd
}

// updateFilter applies the prompt on enter; an empty prompt shows every task.
func (m appModel) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.modal = modalNone
		return m, nil
	case "enter":
		m.modal = modalNone
		m.filter = todotxt.ParseFilter(m.filterInput.Value())
		if m.loaded {
			m.rearrange()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}
