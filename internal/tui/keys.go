package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down, Left, Right key.Binding
	NextPage, PrevPage    key.Binding
	Edit                  key.Binding
	Toggle, ToggleAll     key.Binding
	Archive, BulkEdit     key.Binding
	Fill                  key.Binding
	Suggest, Similar      key.Binding
	Search, Archived      key.Binding
	Refresh               key.Binding
	Accept, Back          key.Binding
	Custom                key.Binding
	Yes, No               key.Binding
	Quit                  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		NextPage:  key.NewBinding(key.WithKeys("]", "pgdown"), key.WithHelp("]", "next page")),
		PrevPage:  key.NewBinding(key.WithKeys("[", "pgup"), key.WithHelp("[", "prev page")),
		Edit:      key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
		Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		ToggleAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select page")),
		Archive:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "archive")),
		BulkEdit:  key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bulk edit")),
		Fill:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fill down/up")),
		Suggest:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "suggest")),
		Similar:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "find similar")),
		Search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Archived:  key.NewBinding(key.WithKeys("."), key.WithHelp(".", "show archived")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Accept:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Custom:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "type a new value")),
		Yes:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "all selected")),
		No:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "this row only")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// gridHelp is shown under the table.
type gridHelp struct{ k keyMap }

func (h gridHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.Edit, h.k.Toggle, h.k.Fill, h.k.Suggest, h.k.Archive, h.k.BulkEdit, h.k.Search, h.k.Quit}
}

func (h gridHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{h.k.Up, h.k.Down, h.k.Left, h.k.Right, h.k.NextPage, h.k.PrevPage},
		{h.k.Edit, h.k.Fill, h.k.Suggest, h.k.Similar},
		{h.k.Toggle, h.k.ToggleAll, h.k.Archive, h.k.BulkEdit},
		{h.k.Search, h.k.Archived, h.k.Refresh, h.k.Quit},
	}
}

// panelHelp is shown while a suggestion or similar panel has focus.
type panelHelp struct{ k keyMap }

func (h panelHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.k.Up, h.k.Down, h.k.Toggle, h.k.Accept, h.k.Back}
}

func (h panelHelp) FullHelp() [][]key.Binding { return [][]key.Binding{h.ShortHelp()} }
