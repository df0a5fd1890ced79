package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/codefionn/threadchat/internal/logger"
	"github.com/codefionn/threadchat/internal/socketclient"
	"github.com/codefionn/threadchat/internal/wire"
)

// Run drives the terminal client on the alternate screen until the user quits
// or the connection is lost for good. client must already be connected.
func Run(client *socketclient.Client, inputCapacity int) error {
	state := NewState(80, 24, inputCapacity)
	model := NewModel(state, client)
	program := tea.NewProgram(model, tea.WithAltScreen())

	client.SetEventCallback(func(ev wire.Event) {
		if err := state.Apply(ev); err != nil {
			logger.Warn("Ignoring message %d: %v", ev.ID, err)
			return
		}
		program.Send(eventMsg{})
	})
	client.SetReconnectingCallback(func(attempt, maxAttempts int) {
		program.Send(statusMsg{text: fmt.Sprintf("Connection lost, reconnecting (%d/%d)...", attempt, maxAttempts)})
	})
	client.SetStateChangedCallback(func(s socketclient.ConnectionState, _ error) {
		if s == socketclient.StateConnected {
			program.Send(statusMsg{})
		}
	})
	client.SetFatalCallback(func(err error) {
		program.Send(fatalMsg{err: err})
	})
	client.Start()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return model.Err()
}
