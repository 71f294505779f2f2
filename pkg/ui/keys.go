package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Collapse    key.Binding
	Expand      key.Binding
	Toggle      key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding
	Top         key.Binding
	Bottom      key.Binding
	Search      key.Binding
	Next        key.Binding
	Previous    key.Binding
	Add         key.Binding
	Delete      key.Binding
	Rename      key.Binding
	Edit        key.Binding
	CopyPath    key.Binding
	CopyValue   key.Binding
	Mode        key.Binding
	Cancel      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Collapse:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "collapse")),
		Expand:      key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "expand")),
		Toggle:      key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "toggle")),
		ExpandAll:   key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "expand all")),
		CollapseAll: key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "collapse all")),
		Top:         key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
		Bottom:      key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Next:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next match")),
		Previous:    key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "prev match")),
		Add:         key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Delete:      key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Rename:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		Edit:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit value")),
		CopyPath:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy path")),
		CopyValue:   key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "copy value")),
		Mode:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "view/edit")),
		Cancel:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Next, k.Toggle, k.Add, k.Delete, k.Mode, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Collapse, k.Expand, k.Toggle, k.Top, k.Bottom},
		{k.ExpandAll, k.CollapseAll, k.Search, k.Next, k.Previous, k.Cancel},
		{k.Add, k.Delete, k.Rename, k.Edit, k.Mode},
		{k.CopyPath, k.CopyValue, k.Help, k.Quit},
	}
}
