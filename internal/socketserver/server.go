package socketserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/codefionn/threadchat/internal/actor"
	"github.com/codefionn/threadchat/internal/config"
	"github.com/codefionn/threadchat/internal/consts"
	"github.com/codefionn/threadchat/internal/logger"
	"github.com/codefionn/threadchat/internal/socketutil"
	"github.com/codefionn/threadchat/internal/thread"
	"github.com/codefionn/threadchat/internal/wire"
)

// ErrServerStopped is returned when a connection arrives after Stop.
var ErrServerStopped = errors.New("server stopped")

// deadliner is implemented by listeners whose Accept can be interrupted
// periodically.
type deadliner interface {
	SetDeadline(t time.Time) error
}

// Server is the threadchat broadcast server
type Server struct {
	cfg *config.Config

	// mu guards tree, lastID and hub.
	mu     sync.Mutex
	tree   *thread.Tree
	lastID int64
	hub    *Hub

	outboxes *actor.System

	listener   net.Listener
	tcp        deadliner
	wsListener *socketutil.WSListener

	onPost func(wire.Event)

	// Connection ID counter
	connIDCounter int
	connIDMu      sync.Mutex

	// Control
	runMu    sync.Mutex
	running  bool
	group    *errgroup.Group
	sessions sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewServer creates a server with an empty tree
func NewServer(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		cfg:      cfg,
		tree:     thread.New(),
		hub:      NewHub(),
		outboxes: actor.NewSystem(),
		stopChan: make(chan struct{}),
	}
}

// SetPostCallback sets the function called after each accepted post has
// been broadcast. It runs on the posting client's read goroutine, outside the
// server lock.
func (s *Server) SetPostCallback(fn func(wire.Event)) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	s.onPost = fn
}

// Start binds the listeners and starts accepting connections
func (s *Server) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return fmt.Errorf("server is already running")
	}

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	if d, ok := ln.(deadliner); ok {
		s.tcp = d
	}
	s.listener = netutil.LimitListener(ln, s.cfg.Server.MaxConnections)

	if wsAddr := s.cfg.Server.WebSocketAddr; wsAddr != "" {
		wsl, err := socketutil.ListenWebSocket(wsAddr, s.stats)
		if err != nil {
			ln.Close()
			return err
		}
		s.wsListener = wsl
	}

	group, gctx := errgroup.WithContext(ctx)
	s.group = group
	s.running = true

	group.Go(func() error {
		return s.acceptLoop(gctx, s.listener, s.tcp)
	})
	if s.wsListener != nil {
		group.Go(func() error {
			return s.acceptLoop(gctx, s.wsListener, nil)
		})
	}
	group.Go(func() error {
		select {
		case <-gctx.Done():
			s.Stop()
		case <-s.stopChan:
		}
		return nil
	})

	logger.Info("Server listening on %s (max connections: %d)", ln.Addr(), s.cfg.Server.MaxConnections)
	return nil
}

// Wait blocks until the accept loops and every session have finished.
func (s *Server) Wait() error {
	s.runMu.Lock()
	group := s.group
	s.runMu.Unlock()
	if group == nil {
		return nil
	}

	err := group.Wait()
	s.sessions.Wait()
	return err
}

// Stop closes the listeners and every client connection
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		logger.Info("Stopping server...")

		// Signal all goroutines to stop
		close(s.stopChan)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				logger.Error("Error closing listener: %v", err)
			}
		}
		if s.wsListener != nil {
			if err := s.wsListener.Close(); err != nil {
				logger.Error("Error closing WebSocket listener: %v", err)
			}
		}

		s.mu.Lock()
		sessions := s.hub.snapshot()
		s.mu.Unlock()
		for _, sess := range sessions {
			sess.closeConn()
		}

		ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
		defer cancel()
		if err := s.outboxes.StopAll(ctx); err != nil {
			logger.Warn("Error stopping outboxes: %v", err)
		}

		logger.Info("Server stopped")
	})

	return nil
}

// Done is closed once Stop has been called.
func (s *Server) Done() <-chan struct{} {
	return s.stopChan
}

// acceptLoop accepts incoming connections until the server stops
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, d deadliner) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopChan:
			return nil
		default:
		}

		// Set accept timeout to allow checking stopChan periodically
		if d != nil {
			_ = d.SetDeadline(time.Now().Add(consts.AcceptPollInterval))
		}

		conn, err := ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Info("Listener %s closed, exiting accept loop", ln.Addr())
				return nil
			}

			logger.Error("Error accepting connection: %v", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if err := s.accept(ctx, conn); err != nil {
			if errors.Is(err, ErrServerStopped) {
				logger.Info("Rejecting %s, server is stopping", conn.RemoteAddr())
			} else {
				logger.Error("Failed to set up client %s: %v", conn.RemoteAddr(), err)
			}
			conn.Close()
		}
	}
}

// accept replays the tree to conn and registers it. The replay is queued and
// the session registered under one critical section, so no broadcast can
// slip in ahead of or be lost behind the replay.
func (s *Server) accept(ctx context.Context, conn net.Conn) error {
	id := s.generateConnectionID()
	sess := newSession(id, conn, s)

	s.mu.Lock()
	// Stop closes stopChan before it snapshots the hub under s.mu, so a
	// session registered here is always seen by that snapshot.
	select {
	case <-s.stopChan:
		s.mu.Unlock()
		return ErrServerStopped
	default:
	}

	replay := s.encodeReplay()
	ref, err := s.outboxes.Spawn(ctx, id, sess, s.cfg.Server.SendQueueSize)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sess.outbox = ref
	if len(replay) > 0 {
		if err := ref.Send(frameMessage{data: replay, replay: true}); err != nil {
			s.mu.Unlock()
			_ = s.outboxes.Stop(ctx, id)
			return err
		}
	} else {
		sess.state.Store(int32(StateListening))
	}
	s.hub.register(sess)
	s.mu.Unlock()

	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		sess.readLoop()
	}()

	logger.Info("New connection accepted: %s from %s (replay: %d bytes)", id, conn.RemoteAddr(), len(replay))
	return nil
}

// encodeReplay serializes the whole tree in pre-order. Caller holds s.mu.
func (s *Server) encodeReplay() []byte {
	var buf []byte
	s.tree.Walk(func(n *thread.Node, _ int) bool {
		buf = wire.AppendEvent(buf, wire.Event{
			ID:      n.ID,
			ReplyTo: n.ReplyTo,
			Author:  n.Author,
			Text:    n.Text,
		})
		return true
	})
	return buf
}

// handlePost assigns the next id, stores the message and broadcasts it.
// Posts replying to an unknown id are dropped before an id is consumed.
func (s *Server) handlePost(from *Session, p wire.Post) {
	s.mu.Lock()
	if p.ReplyTo != thread.TopLevel && !s.tree.Has(p.ReplyTo) {
		s.mu.Unlock()
		logger.Warn("Client %s replied to unknown message %d, dropping post", from.id, p.ReplyTo)
		return
	}

	id := s.lastID + 1
	if _, err := s.tree.Insert(id, p.ReplyTo, p.Author, p.Text); err != nil {
		s.mu.Unlock()
		logger.Error("Failed to insert post from %s: %v", from.id, err)
		return
	}
	s.lastID = id

	ev := wire.Event{ID: id, ReplyTo: p.ReplyTo, Author: p.Author, Text: p.Text}
	stalled := s.hub.broadcast(wire.AppendEvent(nil, ev))
	s.mu.Unlock()

	for _, sess := range stalled {
		sess.closeConn()
	}

	logger.Debug("Message %d from %s (%s) broadcast", id, p.Author, from.id)

	s.runMu.Lock()
	onPost := s.onPost
	s.runMu.Unlock()
	if onPost != nil {
		onPost(ev)
	}
}

// generateConnectionID generates a unique connection ID
func (s *Server) generateConnectionID() string {
	s.connIDMu.Lock()
	defer s.connIDMu.Unlock()

	s.connIDCounter++
	return fmt.Sprintf("conn_%d", s.connIDCounter)
}

// ClientCount returns the number of registered clients
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub.count()
}

// MessageCount returns the number of stored messages
func (s *Server) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}

// Messages returns a pre-order snapshot of the stored tree.
func (s *Server) Messages() []thread.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Messages()
}

func (s *Server) stats() socketutil.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return socketutil.Stats{Clients: s.hub.count(), Messages: s.tree.Len()}
}

// Addr returns the TCP listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// WebSocketAddr returns the WebSocket endpoint address, or nil when disabled.
func (s *Server) WebSocketAddr() net.Addr {
	if s.wsListener == nil {
		return nil
	}
	return s.wsListener.Addr()
}
