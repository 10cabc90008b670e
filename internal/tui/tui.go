package tui

import (
	"context"
	"errors"

	"webtodo-cli/internal/controller"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	Controller *controller.Controller
	Lister     Lister
	// Bridge must be the Notifier and Reloader of the client behind
	// Controller and Lister.
	Bridge *Bridge
	Log    log.FieldLogger
	Origin string
	Glyphs string
}

func Run(ctx context.Context, opts Options) error {
	if opts.Controller == nil || opts.Lister == nil {
		return errors.New("tui: controller and lister are required")
	}
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference(opts.Glyphs)

	// Cancelled on exit so a transport call blocked on an alert returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newAppModel(ctx, opts.Controller, opts.Lister, opts.Log, opts.Origin)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if opts.Bridge != nil {
		opts.Bridge.attach(p.Send)
		defer opts.Bridge.attach(nil)
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
