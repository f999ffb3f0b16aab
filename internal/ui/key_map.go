package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	play      key.Binding
	toggle    key.Binding
	next      key.Binding
	prev      key.Binding
	add       key.Binding
	dismiss   key.Binding
	join      key.Binding
	leave     key.Binding
	pane      key.Binding
	refresh   key.Binding
	reconnect key.Binding
	submit    key.Binding
	cancel    key.Binding
	help      key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		play:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play playlist")),
		toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add url")),
		dismiss:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss finished")),
		join:      key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "join voice")),
		leave:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "leave voice")),
		pane:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "playlists/library")),
		refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		reconnect: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "reconnect")),
		submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "download")),
		cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.next, k.prev, k.play, k.add, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.next, k.prev},
		{k.up, k.down, k.play, k.pane},
		{k.add, k.dismiss, k.refresh, k.reconnect},
		{k.join, k.leave, k.help, k.quit},
	}
}
