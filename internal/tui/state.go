package tui

import (
	"errors"
	"sync"

	"github.com/codefionn/threadchat/internal/thread"
	"github.com/codefionn/threadchat/internal/viewport"
	"github.com/codefionn/threadchat/internal/wire"
)

// State is the client replica of the forest together with the UI state. The
// receive loop and the bubbletea event loop share it through one lock.
type State struct {
	mu   sync.Mutex
	tree *thread.Tree
	ui   *viewport.UIState
}

// NewState creates an empty replica for a terminal of the given size.
func NewState(width, height, inputCapacity int) *State {
	return &State{
		tree: thread.New(),
		ui:   viewport.NewUIState(width, height, inputCapacity),
	}
}

// Apply inserts a received event. Events already present, as replayed after
// a reconnect, are ignored.
func (s *State) Apply(ev wire.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.tree.Insert(ev.ID, ev.ReplyTo, ev.Author, ev.Text)
	if errors.Is(err, thread.ErrDuplicateID) {
		return nil
	}
	return err
}

// With runs fn with the lock held.
func (s *State) With(fn func(tree *thread.Tree, ui *viewport.UIState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tree, s.ui)
}

// Len returns the number of messages in the replica.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}
