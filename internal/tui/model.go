package tui

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/codefionn/threadchat/internal/logger"
	"github.com/codefionn/threadchat/internal/thread"
	"github.com/codefionn/threadchat/internal/viewport"
)

// Poster sends a composed message. socketclient.Client implements it.
type Poster interface {
	Post(replyTo int64, text string) error
}

// eventMsg asks for a redraw after the replica changed.
type eventMsg struct{}

// statusMsg replaces the status line; an empty text clears it.
type statusMsg struct {
	text string
	err  bool
}

// fatalMsg ends the program with err.
type fatalMsg struct {
	err error
}

// Model is the bubbletea model of the chat client.
type Model struct {
	state  *State
	poster Poster
	help   help.Model

	frame  string
	status string
	// statusErr renders status with errorStyle
	statusErr bool

	err      error
	quitting bool
}

// NewModel creates the model and renders the first frame.
func NewModel(state *State, poster Poster) *Model {
	m := &Model{
		state:  state,
		poster: poster,
		help:   help.New(),
	}
	m.help.ShortSeparator = ", "
	m.redraw()
	return m
}

// Err returns the error the program ended with, if any.
func (m *Model) Err() error {
	return m.err
}

func (m *Model) Init() tea.Cmd {
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.state.With(func(_ *thread.Tree, ui *viewport.UIState) {
			ui.Width = msg.Width
			ui.Height = msg.Height
		})
		m.help.Width = msg.Width

	case eventMsg:

	case statusMsg:
		m.status = msg.text
		m.statusErr = msg.err

	case fatalMsg:
		m.err = msg.err
		m.quitting = true
		return m, tea.Quit

	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	}

	if m.quitting {
		return m, cmd
	}
	m.redraw()
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	var (
		submit  bool
		replyTo int64
		text    string
	)

	m.state.With(func(tree *thread.Tree, ui *viewport.UIState) {
		if ui.Writing {
			submit, replyTo, text = m.compose(msg, ui)
			return
		}
		m.navigate(msg, tree, ui)
	})

	if m.quitting {
		return tea.Quit
	}
	if submit {
		if err := m.poster.Post(replyTo, text); err != nil {
			logger.Warn("Failed to send message: %v", err)
			m.status = fmt.Sprintf("Failed to send: %v", err)
			m.statusErr = true
		}
	}
	return nil
}

func (m *Model) navigate(msg tea.KeyMsg, tree *thread.Tree, ui *viewport.UIState) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
	case key.Matches(msg, keys.Reply):
		ui.Writing = true
		ui.ReplyID = ui.SelectedID
	case key.Matches(msg, keys.New):
		ui.Writing = true
		ui.ReplyID = thread.TopLevel
	case key.Matches(msg, keys.Collapse):
		tree.ToggleCollapsed(ui.SelectedID)
	case key.Matches(msg, keys.Up):
		ui.Move--
	case key.Matches(msg, keys.Down):
		ui.Move++
	case key.Matches(msg, keys.Left):
		ui.Left--
	case key.Matches(msg, keys.Right):
		ui.Left++
	}
}

// compose edits the input buffer and reports a message ready to send.
func (m *Model) compose(msg tea.KeyMsg, ui *viewport.UIState) (submit bool, replyTo int64, text string) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true

	case tea.KeyEnter:
		if ui.Input.Len() > 0 {
			submit, replyTo, text = true, ui.ReplyID, ui.Input.String()
		}
		ui.Input.Reset()
		ui.ReplyID = thread.TopLevel
		ui.Writing = false

	case tea.KeyEsc:
		ui.Input.Reset()
		ui.ReplyID = thread.TopLevel
		ui.Writing = false

	case tea.KeyBackspace:
		ui.Input.Backspace()

	case tea.KeySpace:
		ui.Input.Append(' ')

	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if unicode.IsPrint(r) {
				ui.Input.Append(r)
			}
		}
	}
	return submit, replyTo, text
}

// redraw renders the viewport and the two bottom rows into m.frame.
func (m *Model) redraw() {
	m.state.With(func(tree *thread.Tree, ui *viewport.UIState) {
		screen := viewport.Render(tree, ui)

		b := acquireFrame(ui.Width * ui.Height)
		for i, line := range screen.Lines {
			if i == screen.Selected {
				line = selectedStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		for i := len(screen.Lines); i < ui.MessageRows(); i++ {
			b.WriteByte('\n')
		}
		b.WriteString(m.footer(ui))
		b.WriteByte('\n')
		b.WriteString(m.prompt(ui))

		m.frame = frameString(b)
	})
}

// footer is the help line, or the status line while one is set.
func (m *Model) footer(ui *viewport.UIState) string {
	if m.status != "" {
		text := m.status
		if ui.Width > 0 {
			text = truncate.StringWithTail(text, uint(ui.Width), "…")
		}
		if m.statusErr {
			return errorStyle.Render(text)
		}
		return statusStyle.Render(text)
	}
	if ui.Writing {
		return m.help.ShortHelpView(keys.composeHelp())
	}
	return m.help.ShortHelpView(keys.ShortHelp())
}

// prompt shows the tail of the compose buffer that fits next to the label.
func (m *Model) prompt(ui *viewport.UIState) string {
	if !ui.Writing {
		return ""
	}

	input := ui.Input.String()
	avail := ui.Width - runewidth.StringWidth(promptLabel)
	if ui.Width <= 0 {
		return promptStyle.Render(promptLabel) + input
	}
	if avail <= 0 {
		return promptStyle.Render(truncate.String(promptLabel, uint(ui.Width)))
	}
	if over := runewidth.StringWidth(input) - avail; over > 0 {
		input = runewidth.TruncateLeft(input, over, "")
	}
	return promptStyle.Render(promptLabel) + input
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	return m.frame
}

// Lines returns the current frame split into rows.
func (m *Model) Lines() []string {
	return strings.Split(m.frame, "\n")
}
