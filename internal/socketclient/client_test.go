package socketclient

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/threadchat/internal/config"
	"github.com/codefionn/threadchat/internal/socketserver"
	"github.com/codefionn/threadchat/internal/wire"
)

func testClientConfig(username, host string) *Config {
	cfg := DefaultConfig(username, host)
	cfg.MaxConnectAttempts = 3
	cfg.DialTimeout = 500 * time.Millisecond
	return cfg
}

func startServer(t *testing.T) *socketserver.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	srv := socketserver.NewServer(cfg)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		srv.Stop()
		srv.Wait()
	})
	return srv
}

// recorder collects callback output for assertions.
type recorder struct {
	mu     sync.Mutex
	events []wire.Event
	states []ConnectionState
	fatal  []error
}

func (r *recorder) attach(c *Client) {
	c.SetEventCallback(func(ev wire.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	})
	c.SetStateChangedCallback(func(s ConnectionState, _ error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.states = append(r.states, s)
	})
	c.SetFatalCallback(func(err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fatal = append(r.fatal, err)
	})
}

func (r *recorder) ids() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.ID
	}
	return out
}

func (r *recorder) sawState(s ConnectionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, got := range r.states {
		if got == s {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestConnectionStateString(t *testing.T) {
	assert.Equal(t, "reconnecting", StateReconnecting.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient(testClientConfig("alice", addr))
	var rec recorder
	rec.attach(c)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, StateDisconnected, c.GetState())
	assert.True(t, rec.sawState(StateConnecting))

	assert.ErrorIs(t, c.Post(0, "hi"), ErrNotConnected)
}

func TestPostAndReceiveThroughServer(t *testing.T) {
	srv := startServer(t)

	alice := NewClient(testClientConfig("alice", srv.Addr().String()))
	bob := NewClient(testClientConfig("bob", srv.Addr().String()))
	var aliceRec, bobRec recorder
	aliceRec.attach(alice)
	bobRec.attach(bob)

	for _, c := range []*Client{alice, bob} {
		require.NoError(t, c.Connect(context.Background()))
		c.Start()
		defer c.Close()
	}
	waitFor(t, func() bool { return srv.ClientCount() == 2 })

	require.NoError(t, alice.Post(0, "hi"))
	waitFor(t, func() bool { return len(bobRec.ids()) == 1 })
	require.NoError(t, bob.Post(1, "yo"))
	waitFor(t, func() bool { return len(aliceRec.ids()) == 2 && len(bobRec.ids()) == 2 })

	bobRec.mu.Lock()
	assert.Equal(t, wire.Event{ID: 1, Author: "alice", Text: "hi"}, bobRec.events[0])
	assert.Equal(t, wire.Event{ID: 2, ReplyTo: 1, Author: "bob", Text: "yo"}, bobRec.events[1])
	bobRec.mu.Unlock()
}

// fakeServer accepts connections and hands them to the test one by one.
func fakeServer(t *testing.T) (net.Listener, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	conns := make(chan net.Conn, 4)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			conns <- c
		}
	}()
	return ln, conns
}

func next(t *testing.T, conns <-chan net.Conn) net.Conn {
	t.Helper()
	select {
	case c := <-conns:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no connection")
		return nil
	}
}

func TestPostCarriesUsername(t *testing.T) {
	ln, conns := fakeServer(t)
	c := NewClient(testClientConfig("carol", ln.Addr().String()))
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	server := next(t, conns)
	require.NoError(t, c.Post(7, "hello"))

	p, err := wire.ReadPost(server)
	require.NoError(t, err)
	assert.Equal(t, wire.Post{ReplyTo: 7, Author: "carol", Text: "hello"}, p)
}

func TestReconnectAfterDrop(t *testing.T) {
	ln, conns := fakeServer(t)
	c := NewClient(testClientConfig("alice", ln.Addr().String()))
	var rec recorder
	rec.attach(c)
	require.NoError(t, c.Connect(context.Background()))
	c.Start()
	defer c.Close()

	first := next(t, conns)
	require.NoError(t, wire.WriteEvent(first, wire.Event{ID: 1, Author: "alice", Text: "hi"}))
	waitFor(t, func() bool { return len(rec.ids()) == 1 })
	first.Close()

	// the replacement connection gets the replay followed by new traffic
	second := next(t, conns)
	require.NoError(t, wire.WriteEvent(second, wire.Event{ID: 1, Author: "alice", Text: "hi"}))
	require.NoError(t, wire.WriteEvent(second, wire.Event{ID: 2, ReplyTo: 1, Author: "bob", Text: "yo"}))

	waitFor(t, func() bool { return len(rec.ids()) == 3 })
	assert.Equal(t, []int64{1, 1, 2}, rec.ids())
	assert.True(t, rec.sawState(StateReconnecting))
	waitFor(t, c.IsConnected)

	require.NoError(t, c.Post(2, "back"))
	p, err := wire.ReadPost(second)
	require.NoError(t, err)
	assert.Equal(t, "back", p.Text)
}

func TestReconnectGivesUp(t *testing.T) {
	ln, conns := fakeServer(t)
	c := NewClient(testClientConfig("alice", ln.Addr().String()))
	var rec recorder
	rec.attach(c)
	require.NoError(t, c.Connect(context.Background()))
	c.Start()
	defer c.Close()

	server := next(t, conns)
	ln.Close()
	server.Close()

	waitFor(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.fatal) == 1
	})
	rec.mu.Lock()
	assert.True(t, errors.Is(rec.fatal[0], ErrReconnectFailed))
	rec.mu.Unlock()
	assert.Equal(t, StateDisconnected, c.GetState())
}

func TestCloseDoesNotReconnect(t *testing.T) {
	ln, conns := fakeServer(t)
	c := NewClient(testClientConfig("alice", ln.Addr().String()))
	var rec recorder
	rec.attach(c)
	require.NoError(t, c.Connect(context.Background()))
	c.Start()
	next(t, conns)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, StateClosed, c.GetState())
	assert.False(t, rec.sawState(StateReconnecting))
	assert.ErrorIs(t, c.Post(0, "late"), ErrClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)

	select {
	case extra := <-conns:
		extra.Close()
		t.Fatal("client redialed after Close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebSocketTransport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Server.WebSocketAddr = "127.0.0.1:0"
	srv := socketserver.NewServer(cfg)
	require.NoError(t, srv.Start(context.Background()))
	defer func() {
		srv.Stop()
		srv.Wait()
	}()

	c := NewClient(testClientConfig("web", "ws://"+srv.WebSocketAddr().String()+"/ws"))
	var rec recorder
	rec.attach(c)
	require.NoError(t, c.Connect(context.Background()))
	c.Start()
	defer c.Close()

	require.NoError(t, c.Post(0, "over websocket"))
	waitFor(t, func() bool { return len(rec.ids()) == 1 })
	assert.Equal(t, 1, srv.MessageCount())
}
