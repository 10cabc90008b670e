package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m appModel) View() string {
	if len(m.alerts) > 0 {
		return m.place(renderAlertModal(m.width, m.alerts[0].text))
	}
	switch m.modal {
	case modalConfirmDelete:
		body := fmt.Sprintf("Delete line %d?", m.pendingDelete)
		return m.place(renderConfirmModal(m.width, "Delete task", body, "Delete", "Cancel", m.confirmFocus))
	case modalAdd:
		title := "Add task"
		if m.addAt > 0 {
			title = fmt.Sprintf("Insert task before line %d", m.addAt)
		}
		help := styleMuted().Render("enter: save   esc: cancel")
		return m.place(renderModalBox(m.width, title, m.addInput.View()+"\n\n"+help))
	case modalFilter:
		help := styleMuted().Render("enter: apply (empty shows all)   esc: cancel")
		return m.place(renderModalBox(m.width, "Filter by +project @context", m.filterInput.View()+"\n\n"+help))
	case modalHelp:
		return m.place(renderModalBox(m.width, "Help", renderMarkdown(helpMarkdown(), modalBodyWidth(m.width))))
	}

	parts := []string{m.viewHeader(), m.viewBody()}
	if m.edit != nil {
		parts = append(parts, m.viewEditor())
	}
	parts = append(parts, m.viewFooter())
	return strings.Join(parts, "\n")
}

func (m appModel) place(s string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func (m appModel) viewHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render("webtodo")
	meta := fmt.Sprintf("  %s  %d tasks", m.origin, m.count)
	if !m.filter.Empty() {
		meta = fmt.Sprintf("  %s  %d of %d tasks  filter: %s", m.origin, m.count, m.total, m.filter)
	}
	header := title + styleMuted().Render(meta)
	if m.overdue > 0 {
		header += "  " + lipgloss.NewStyle().Foreground(colorError).Bold(true).Render(fmt.Sprintf("%d overdue", m.overdue))
	}
	rule := styleMuted().Render(strings.Repeat(glyphHRule(), max(0, m.width)))
	return header + "\n" + rule
}

func (m appModel) viewBody() string {
	switch {
	case !m.loaded:
		return styleMuted().Render("Loading" + glyphHidden())
	case m.count == 0 && !m.filter.Empty():
		return styleMuted().Render(fmt.Sprintf("No tasks match %s.  /: change filter", m.filter))
	case m.count == 0:
		return styleMuted().Render("No tasks.  a: add")
	}
	return m.list.View()
}

func (m appModel) viewEditor() string {
	e := m.edit
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Width(max(20, m.width-2))

	var label, body string
	switch e.state {
	case editOpening:
		label = fmt.Sprintf("Line %d", e.line)
		body = styleMuted().Render("Loading" + glyphHidden())
	case editFailed:
		border = border.BorderForeground(colorError)
		label = lipgloss.NewStyle().Foreground(colorError).Bold(true).
			Render(fmt.Sprintf("Line %d not saved. Edit and leave again to retry.", e.line))
		body = e.input.View()
	case editCommitting:
		label = fmt.Sprintf("Line %d  saving%s", e.line, glyphHidden())
		body = e.input.View()
	default:
		label = fmt.Sprintf("Line %d  (esc/tab: save)", e.line)
		body = e.input.View()
	}
	return border.Render(label + "\n" + body)
}

func (m appModel) viewFooter() string {
	if strings.TrimSpace(m.minibufferText) != "" {
		return lipgloss.NewStyle().Foreground(colorSurfaceFg).Render(m.minibufferText)
	}
	return styleMuted().Render("space: toggle  e: edit  d: delete  a: add  i: insert  /: filter  r: reload  ?: help  q: quit")
}
