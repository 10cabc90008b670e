package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge lets the transport talk to the running program: notifications
// become a blocking alert modal and reloads become a reloadMsg. It is
// created before the program so it can be handed to the client.
type Bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func NewBridge() *Bridge { return &Bridge{} }

func (b *Bridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *Bridge) sender() func(tea.Msg) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.send
}

// Notify shows message and waits until the user dismisses it or ctx ends.
// Before the program starts it returns immediately.
func (b *Bridge) Notify(ctx context.Context, message string) {
	send := b.sender()
	if send == nil {
		return
	}
	ack := make(chan struct{})
	send(alertMsg{text: message, ack: ack})
	select {
	case <-ack:
	case <-ctx.Done():
	}
}

func (b *Bridge) Reload() {
	if send := b.sender(); send != nil {
		send(reloadMsg{})
	}
}
