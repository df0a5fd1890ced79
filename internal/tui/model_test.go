package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/threadchat/internal/thread"
	"github.com/codefionn/threadchat/internal/viewport"
	"github.com/codefionn/threadchat/internal/wire"
)

type sentPost struct {
	replyTo int64
	text    string
}

type fakePoster struct {
	posts []sentPost
	err   error
}

func (p *fakePoster) Post(replyTo int64, text string) error {
	if p.err != nil {
		return p.err
	}
	p.posts = append(p.posts, sentPost{replyTo, text})
	return nil
}

func newTestModel(t *testing.T, width, height int) (*Model, *State, *fakePoster) {
	t.Helper()
	state := NewState(80, 24, 4)
	for _, ev := range []wire.Event{
		{ID: 1, ReplyTo: thread.TopLevel, Author: "alice", Text: "hi"},
		{ID: 2, ReplyTo: 1, Author: "bob", Text: "yo"},
		{ID: 3, ReplyTo: thread.TopLevel, Author: "carol", Text: "hey"},
	} {
		require.NoError(t, state.Apply(ev))
	}
	poster := &fakePoster{}
	m := NewModel(state, poster)
	m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	return m, state, poster
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m *Model, msgs ...tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func typeText(m *Model, s string) {
	for _, r := range s {
		if r == ' ' {
			press(m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		press(m, runes(string(r)))
	}
}

func ui(state *State) viewport.UIState {
	var snapshot viewport.UIState
	state.With(func(_ *thread.Tree, u *viewport.UIState) {
		snapshot = *u
	})
	return snapshot
}

func TestReplyToSelectedMessage(t *testing.T) {
	m, state, poster := newTestModel(t, 40, 10)

	press(m, runes("s"), runes("r"))
	assert.True(t, ui(state).Writing)
	assert.Equal(t, int64(2), ui(state).ReplyID)

	typeText(m, "me too")
	press(m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, poster.posts, 1)
	assert.Equal(t, sentPost{replyTo: 2, text: "me too"}, poster.posts[0])
	after := ui(state)
	assert.False(t, after.Writing)
	assert.Equal(t, thread.TopLevel, after.ReplyID)
	assert.Zero(t, after.Input.Len())
}

func TestNewThread(t *testing.T) {
	m, _, poster := newTestModel(t, 40, 10)

	press(m, runes("s"), runes("n"))
	typeText(m, "fresh")
	press(m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Len(t, poster.posts, 1)
	assert.Equal(t, thread.TopLevel, poster.posts[0].replyTo)
}

func TestEmptySubmitCancels(t *testing.T) {
	m, state, poster := newTestModel(t, 40, 10)

	press(m, runes("r"), tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, poster.posts)
	assert.False(t, ui(state).Writing)
	assert.Equal(t, thread.TopLevel, ui(state).ReplyID)
}

func TestEscapeCancelsDraft(t *testing.T) {
	m, state, poster := newTestModel(t, 40, 10)

	press(m, runes("r"))
	typeText(m, "never mind")
	press(m, tea.KeyMsg{Type: tea.KeyEsc})

	assert.Empty(t, poster.posts)
	assert.False(t, ui(state).Writing)
	assert.Zero(t, ui(state).Input.Len())
}

func TestBackspace(t *testing.T) {
	m, state, _ := newTestModel(t, 40, 10)

	press(m, runes("n"), tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Zero(t, ui(state).Input.Len(), "backspace on empty buffer is a no-op")

	typeText(m, "abc")
	press(m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "ab", ui(state).Input.String())
}

func TestNavigationKeysAreTextWhileWriting(t *testing.T) {
	m, state, _ := newTestModel(t, 40, 10)

	press(m, runes("n"))
	typeText(m, "wasd qrc")
	s := ui(state)
	assert.True(t, s.Writing)
	assert.Equal(t, "wasd qrc", s.Input.String())
	assert.Equal(t, int64(1), s.SelectedID)
}

func TestMovementAndCollapse(t *testing.T) {
	m, state, _ := newTestModel(t, 40, 10)

	press(m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, int64(3), ui(state).SelectedID)

	press(m, runes("s"))
	assert.Equal(t, int64(3), ui(state).SelectedID, "clamped at the last row")

	press(m, runes("w"), runes("w"), runes("c"))
	state.With(func(tree *thread.Tree, _ *viewport.UIState) {
		n, _ := tree.Find(1)
		assert.True(t, n.Collapsed)
	})

	press(m, runes("s"))
	assert.Equal(t, int64(3), ui(state).SelectedID, "collapsed reply is skipped")

	press(m, runes("d"), runes("d"), runes("a"))
	assert.Equal(t, 1, ui(state).Left)
	press(m, tea.KeyMsg{Type: tea.KeyLeft}, tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 0, ui(state).Left)
}

func TestFrameLayout(t *testing.T) {
	m, _, _ := newTestModel(t, 40, 6)

	lines := m.Lines()
	require.Len(t, lines, 6)
	assert.Equal(t, "  alice: hi", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "   bob: yo", strings.TrimRight(lines[1], " "))
	assert.Equal(t, "  carol: hey", strings.TrimRight(lines[2], " "))
	assert.Contains(t, lines[4], "quit")
	assert.Contains(t, lines[4], "reply")
	assert.Empty(t, lines[5])

	press(m, runes("r"))
	typeText(m, "hi")
	lines = m.Lines()
	assert.Equal(t, "Your message: hi", lines[5])
	assert.Contains(t, lines[4], "send")
	assert.True(t, strings.HasPrefix(lines[0], "> alice"), "reply target marker: %q", lines[0])
}

func TestPromptShowsTail(t *testing.T) {
	m, _, _ := newTestModel(t, 20, 6)

	press(m, runes("n"))
	typeText(m, "abcdefghij")
	lines := m.Lines()
	assert.Equal(t, "Your message: efghij", lines[len(lines)-1])
}

func TestEventRedraws(t *testing.T) {
	m, state, _ := newTestModel(t, 40, 6)

	require.NoError(t, state.Apply(wire.Event{ID: 4, ReplyTo: 3, Author: "dave", Text: "late"}))
	m.Update(eventMsg{})

	lines := m.Lines()
	assert.Equal(t, "! carol: hey", strings.TrimRight(lines[2], " "), "unread reply marks its parent")
	assert.Equal(t, " ! dave: late", strings.TrimRight(lines[3], " "))
}

func TestStatusLine(t *testing.T) {
	m, _, _ := newTestModel(t, 40, 6)

	m.Update(statusMsg{text: "Connection lost, reconnecting (1/3)..."})
	assert.Contains(t, m.Lines()[4], "reconnecting (1/3)")

	m.Update(statusMsg{})
	assert.Contains(t, m.Lines()[4], "quit")
}

func TestSendFailureIsShown(t *testing.T) {
	m, _, poster := newTestModel(t, 60, 6)
	poster.err = errors.New("broken pipe")

	press(m, runes("n"))
	typeText(m, "x")
	press(m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Contains(t, m.Lines()[4], "Failed to send: broken pipe")
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t, 40, 6)

	cmd := press(m, runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestFatalEndsProgram(t *testing.T) {
	m, _, _ := newTestModel(t, 40, 6)
	lost := errors.New("reconnect failed")

	_, cmd := m.Update(fatalMsg{err: lost})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, m.Err(), lost)
}

func TestApplyIgnoresReplayedEvents(t *testing.T) {
	state := NewState(80, 24, 4)
	ev := wire.Event{ID: 1, ReplyTo: thread.TopLevel, Author: "alice", Text: "hi"}

	require.NoError(t, state.Apply(ev))
	require.NoError(t, state.Apply(ev))
	assert.Equal(t, 1, state.Len())

	err := state.Apply(wire.Event{ID: 2, ReplyTo: 9, Author: "bob", Text: "orphan"})
	assert.ErrorIs(t, err, thread.ErrUnknownParent)
}
