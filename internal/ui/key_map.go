package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the player.
type keyMap struct {
	play       key.Binding
	cancel     key.Binding
	visibility key.Binding
	attach     key.Binding
	reverse    key.Binding
	faster     key.Binding
	slower     key.Binding
	loop       key.Binding
	markers    key.Binding
	clearRange key.Binding
	renderMode key.Binding
	enter      key.Binding
	back       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		play:       key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		cancel:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel")),
		visibility: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "hide/show")),
		attach:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "detach/attach")),
		reverse:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reverse")),
		faster:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		slower:     key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "slower")),
		loop:       key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "loop")),
		markers:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "markers")),
		clearRange: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "full range")),
		renderMode: key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "render mode")),
		enter:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.play, k.markers, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.play, k.cancel, k.reverse, k.faster, k.slower},
		{k.loop, k.markers, k.clearRange, k.renderMode},
		{k.visibility, k.attach, k.quit},
	}
}
