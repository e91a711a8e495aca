// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watch

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the subscriber TUI.
type KeyMap struct {
	NextTab     key.Binding
	PreviousTab key.Binding
	CloseTab    key.Binding

	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding

	Quit key.Binding
}

// DefaultKeyMap pairs vim-style keys with arrows and page keys.
var DefaultKeyMap = KeyMap{
	NextTab: key.NewBinding(
		key.WithKeys("tab", "l", "right"),
		key.WithHelp("Tab/l", "next tab"),
	),
	PreviousTab: key.NewBinding(
		key.WithKeys("shift+tab", "h", "left"),
		key.WithHelp("S-Tab/h", "prev tab"),
	),
	CloseTab: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "close tab"),
	),
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Home: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	End: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// helpBindings are listed in the status line, in order.
func (keys KeyMap) helpBindings() []key.Binding {
	return []key.Binding{keys.NextTab, keys.PreviousTab, keys.Down, keys.Up, keys.CloseTab, keys.Quit}
}
