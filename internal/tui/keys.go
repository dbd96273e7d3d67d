package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PreferLeft  key.Binding
	PreferRight key.Binding
	Both        key.Binding
	Neither     key.Binding
	Previous    key.Binding
	Next        key.Binding
	Export      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		PreferLeft: key.NewBinding(
			key.WithKeys("1", "a"),
			key.WithHelp("1/a", "left is better"),
		),
		PreferRight: key.NewBinding(
			key.WithKeys("2", "b"),
			key.WithHelp("2/b", "right is better"),
		),
		Both: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "both good"),
		),
		Neither: key.NewBinding(
			key.WithKeys("4", "n"),
			key.WithHelp("4/n", "neither good"),
		),
		Previous: key.NewBinding(
			key.WithKeys("left", "h", "p"),
			key.WithHelp("←/p", "previous"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PreferLeft, k.PreferRight, k.Both, k.Neither, k.Export, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PreferLeft, k.PreferRight, k.Both, k.Neither},
		{k.Previous, k.Next},
		{k.Export, k.Help, k.Quit},
	}
}
