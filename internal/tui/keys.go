package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	Reply    key.Binding
	New      key.Binding
	Collapse key.Binding
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding

	Submit key.Binding
	Cancel key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Reply:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reply")),
	New:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
	Collapse: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "collapse (fold)")),
	Up:       key.NewBinding(key.WithKeys("w", "up"), key.WithHelp("wasd", "moving")),
	Down:     key.NewBinding(key.WithKeys("s", "down")),
	Left:     key.NewBinding(key.WithKeys("a", "left")),
	Right:    key.NewBinding(key.WithKeys("d", "right")),

	Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Cancel: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}

// ShortHelp lists the navigation bindings. Down, Left and Right share the
// "wasd" entry of Up.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Reply, k.New, k.Collapse, k.Up}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp(), k.composeHelp()}
}

func (k keyMap) composeHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Cancel}
}
