package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Toggle     key.Binding
	All        key.Binding
	Clear      key.Binding
	NextMetric key.Binding
	PrevMetric key.Binding
	Open       key.Binding
	Reload     key.Binding
	Copy       key.Binding
	Export     key.Binding
	Stats      key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:     key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		All:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "all")),
		Clear:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		NextMetric: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "metric")),
		PrevMetric: key.NewBinding(key.WithKeys("shift+tab")),
		Open:       key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Copy:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy json")),
		Export:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export svg")),
		Stats:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stats")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.NextMetric, k.Open, k.Reload, k.Copy, k.Export, k.Stats, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.All, k.Clear},
		{k.NextMetric, k.Open, k.Reload, k.Copy, k.Export, k.Stats, k.Quit},
	}
}
