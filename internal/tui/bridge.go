package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zhouzirui/paper-verify/internal/controller"
)

// Bridge forwards controller callbacks into a running program. Callbacks that
// arrive before Attach are dropped, and Confirm declines.
type Bridge struct {
	mu   sync.RWMutex
	send func(tea.Msg)
}

// Attach routes messages through send, usually (*tea.Program).Send.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

func (b *Bridge) post(msg tea.Msg) bool {
	b.mu.RLock()
	send := b.send
	b.mu.RUnlock()
	if send == nil {
		return false
	}
	send(msg)
	return true
}

// OnChange is a controller change callback.
func (b *Bridge) OnChange(snap controller.Snapshot) {
	b.post(changedMsg{snap: snap})
}

// OnFocus is a controller focus callback.
func (b *Bridge) OnFocus() {
	b.post(focusMsg{})
}

// Confirm shows prompt in the program and blocks until the user answers or
// ctx ends.
func (b *Bridge) Confirm(ctx context.Context, prompt string) bool {
	reply := make(chan bool, 1)
	if !b.post(confirmRequestMsg{prompt: prompt, reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}

// Options returns the controller options wiring this bridge.
func (b *Bridge) Options() []controller.Option {
	return []controller.Option{
		controller.WithOnChange(b.OnChange),
		controller.WithOnFocus(b.OnFocus),
		controller.WithConfirm(b.Confirm),
	}
}
