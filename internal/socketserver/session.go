package socketserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/codefionn/threadchat/internal/actor"
	"github.com/codefionn/threadchat/internal/consts"
	"github.com/codefionn/threadchat/internal/logger"
	"github.com/codefionn/threadchat/internal/wire"
)

// SessionState tracks a connection through its lifecycle
type SessionState int32

const (
	StateReplaying SessionState = iota
	StateListening
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateReplaying:
		return "replaying"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// frameMessage carries pre-encoded frames to a session's outbox.
type frameMessage struct {
	data   []byte
	replay bool
}

func (m frameMessage) Type() string {
	if m.replay {
		return "replay"
	}
	return "frame"
}

// Session represents one connected client. It is also the actor behind its
// own outbox: Receive writes queued frames to the socket.
type Session struct {
	id string

	conn   net.Conn
	server *Server
	outbox *actor.ActorRef
	state  atomic.Int32

	closeConnOnce sync.Once
	stopOnce      sync.Once
}

var _ actor.Actor = (*Session)(nil)

func newSession(id string, conn net.Conn, server *Server) *Session {
	s := &Session{id: id, conn: conn, server: server}
	s.state.Store(int32(StateReplaying))
	return s
}

// ID returns the connection id, which also names the session's outbox actor.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// RemoteAddr returns the peer address.
func (s *Session) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *Session) enqueue(frame []byte) error {
	return s.outbox.Send(frameMessage{data: frame})
}

// Receive writes one queued frame. A write failure closes the connection so
// the read loop tears the session down.
func (s *Session) Receive(ctx context.Context, msg actor.Message) error {
	fm, ok := msg.(frameMessage)
	if !ok {
		return fmt.Errorf("unexpected outbox message %s", msg.Type())
	}

	if _, err := s.conn.Write(fm.data); err != nil {
		s.closeConn()
		return fmt.Errorf("write to %s: %w", s.id, err)
	}
	if fm.replay {
		s.state.CompareAndSwap(int32(StateReplaying), int32(StateListening))
		logger.Debug("Client %s replay delivered (%d bytes)", s.id, len(fm.data))
	}
	return nil
}

// Start implements actor.Actor.
func (s *Session) Start(ctx context.Context) error {
	return nil
}

// Stop implements actor.Actor.
func (s *Session) Stop(ctx context.Context) error {
	return nil
}

// closeConn closes the socket, unblocking both the reader and any pending
// write. Safe to call from any goroutine.
func (s *Session) closeConn() {
	s.closeConnOnce.Do(func() {
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Debug("Client %s close error: %v", s.id, err)
		}
	})
}

// readLoop decodes posts until the connection fails, then tears the session
// down.
func (s *Session) readLoop() {
	defer s.shutdown()

	for {
		post, err := wire.ReadPost(s.conn)
		if err != nil {
			switch {
			case errors.Is(err, wire.ErrPeerClosed), errors.Is(err, io.EOF):
				logger.Info("Client %s disconnected", s.id)
			case errors.Is(err, net.ErrClosed):
				logger.Info("Client %s connection closed", s.id)
			case errors.Is(err, wire.ErrFraming):
				logger.Warn("Client %s sent a malformed frame: %v", s.id, err)
			default:
				logger.Error("Error reading from client %s: %v", s.id, err)
			}
			return
		}

		s.server.handlePost(s, post)
	}
}

// shutdown deregisters the session and releases its resources. Idempotent.
func (s *Session) shutdown() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateClosed))

		s.server.mu.Lock()
		s.server.hub.unregister(s)
		s.server.mu.Unlock()

		s.closeConn()

		ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
		defer cancel()
		if err := s.server.outboxes.Stop(ctx, s.id); err != nil {
			logger.Debug("Client %s outbox: %v", s.id, err)
		}

		logger.Info("Client %s stopped", s.id)
	})
}
