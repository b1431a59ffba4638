package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PrevPage key.Binding
	NextPage key.Binding
	Up       key.Binding
	Down     key.Binding
	Category key.Binding
	Search   key.Binding
	Sort     key.Binding
	Order    key.Binding
	Open     key.Binding
	Reload   key.Binding
	Admin    key.Binding
	Edit     key.Binding
	Save     key.Binding
	Back     key.Binding
	Quit     key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		PrevPage: key.NewBinding(key.WithKeys("left", "p"), key.WithHelp("←/p", "prev page")),
		NextPage: key.NewBinding(key.WithKeys("right", "n"), key.WithHelp("→/n", "next page")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Category: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "category")),
		Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Sort:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
		Order:    key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
		Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Admin:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "admin")),
		Edit:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit title")),
		Save:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "save all")),
		Back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) galleryHelp() []key.Binding {
	return []key.Binding{k.PrevPage, k.NextPage, k.Category, k.Search, k.Sort, k.Order, k.Open, k.Reload, k.Admin, k.Quit}
}

func (k keyMap) adminHelp() []key.Binding {
	return []key.Binding{k.PrevPage, k.NextPage, k.Edit, k.Save, k.Reload, k.Admin, k.Quit}
}
