package socketserver

import (
	"github.com/codefionn/threadchat/internal/logger"
)

// Hub maintains the set of registered sessions. It performs no locking of its
// own; every method must be called with Server.mu held.
type Hub struct {
	sessions map[string]*Session
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

func (h *Hub) register(s *Session) {
	h.sessions[s.id] = s
	logger.Info("Client %s registered (total: %d)", s.id, len(h.sessions))
}

// unregister removes s and reports whether it was present.
func (h *Hub) unregister(s *Session) bool {
	if _, ok := h.sessions[s.id]; !ok {
		return false
	}
	delete(h.sessions, s.id)
	logger.Info("Client %s unregistered (total: %d)", s.id, len(h.sessions))
	return true
}

// broadcast queues frame on every session's outbox and returns the sessions
// that could not take it. The caller closes those after releasing
// Server.mu, since closing a connection may block.
func (h *Hub) broadcast(frame []byte) []*Session {
	var stalled []*Session
	for _, s := range h.sessions {
		if err := s.enqueue(frame); err != nil {
			logger.Warn("Failed to queue frame for client %s, closing connection: %v", s.id, err)
			stalled = append(stalled, s)
		}
	}
	return stalled
}

func (h *Hub) count() int {
	return len(h.sessions)
}

func (h *Hub) snapshot() []*Session {
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}
