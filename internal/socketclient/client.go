package socketclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codefionn/threadchat/internal/config"
	"github.com/codefionn/threadchat/internal/consts"
	"github.com/codefionn/threadchat/internal/logger"
	"github.com/codefionn/threadchat/internal/socketutil"
	"github.com/codefionn/threadchat/internal/wire"
)

var (
	// ErrReconnectFailed is passed to the fatal callback when every reconnect
	// attempt failed.
	ErrReconnectFailed = errors.New("reconnect failed")
	// ErrNotConnected is returned by Post before Connect succeeded.
	ErrNotConnected = errors.New("not connected")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)

// ConnectionState represents the current state of the connection
type ConnectionState int

const (
	// StateDisconnected indicates the client is not connected
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates the initial dial is in progress
	StateConnecting
	// StateConnected indicates the receive loop has a live stream
	StateConnected
	// StateReconnecting indicates the stream broke and the client is redialing
	StateReconnecting
	// StateClosed indicates Close was called
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config holds client configuration
type Config struct {
	// Host is host, host:port or a ws:// URL
	Host string
	// Username is sent as the author of every post
	Username string
	// DefaultPort is used when Host carries no port
	DefaultPort int
	// MaxConnectAttempts bounds each connect or reconnect round
	MaxConnectAttempts int
	// DialTimeout bounds a single attempt
	DialTimeout time.Duration
}

// DefaultConfig returns a default configuration
func DefaultConfig(username, host string) *Config {
	return &Config{
		Host:               host,
		Username:           username,
		DefaultPort:        consts.DefaultPort,
		MaxConnectAttempts: consts.DefaultConnectAttempts,
		DialTimeout:        consts.Timeout5Seconds,
	}
}

// ConfigFromApp builds a client configuration from the application config.
func ConfigFromApp(app *config.Config, username, host string) *Config {
	cfg := DefaultConfig(username, host)
	cfg.DefaultPort = app.Client.Port
	cfg.MaxConnectAttempts = app.Client.ConnectAttempts
	cfg.DialTimeout = time.Duration(app.Client.DialTimeoutSeconds) * time.Second
	return cfg
}

// Client is a threadchat connection
type Client struct {
	config *Config

	// Connection
	conn    net.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex
	state   atomic.Int32 // ConnectionState

	// Callbacks
	eventCallback        func(wire.Event)
	stateChangedCallback func(ConnectionState, error)
	reconnectingCallback func(attempt int, maxAttempts int)
	fatalCallback        func(error)

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewClient creates a client; nothing is dialed until Connect.
func NewClient(config *Config) *Client {
	if config.MaxConnectAttempts < 1 {
		config.MaxConnectAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: config,
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
	}
	c.state.Store(int32(StateDisconnected))
	return c
}

// Username returns the configured author name.
func (c *Client) Username() string {
	return c.config.Username
}

// Connect dials the server with up to MaxConnectAttempts immediate attempts
func (c *Client) Connect(ctx context.Context) error {
	if c.stopped() {
		return ErrClosed
	}
	if c.GetState() != StateDisconnected {
		return errors.New("already connected")
	}

	c.setState(StateConnecting, nil)
	conn, err := c.dialWithRetry(ctx, false)
	if err != nil {
		c.setState(StateDisconnected, err)
		return err
	}

	if !c.swapConn(conn) {
		return ErrClosed
	}
	c.setState(StateConnected, nil)
	logger.Info("Connected to %s as %s", conn.RemoteAddr(), c.config.Username)
	return nil
}

// dialWithRetry runs one bounded round of connection attempts.
func (c *Client) dialWithRetry(ctx context.Context, reconnect bool) (net.Conn, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxConnectAttempts; attempt++ {
		if ctx.Err() != nil {
			if c.stopped() {
				return nil, ErrClosed
			}
			return nil, ctx.Err()
		}
		if reconnect && c.reconnectingCallback != nil {
			c.reconnectingCallback(attempt, c.config.MaxConnectAttempts)
		}

		conn, err := socketutil.Dial(ctx, c.config.Host, c.config.DefaultPort, c.config.DialTimeout)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		logger.Debug("Connect attempt %d/%d failed: %v", attempt, c.config.MaxConnectAttempts, err)
	}

	return nil, fmt.Errorf("connect to %s failed after %d attempts: %w", c.config.Host, c.config.MaxConnectAttempts, lastErr)
}

// swapConn installs conn unless the client was closed meanwhile.
func (c *Client) swapConn(conn net.Conn) bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.stopped() {
		conn.Close()
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) currentConn() net.Conn {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn
}

// Start launches the receive loop.
func (c *Client) Start() {
	c.wg.Add(1)
	go c.receiveLoop()
}

// receiveLoop decodes events until Close, reconnecting when the stream fails.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	for {
		conn := c.currentConn()
		if conn == nil {
			return
		}

		ev, err := wire.ReadEvent(conn)
		if err == nil {
			if c.eventCallback != nil {
				c.eventCallback(ev)
			}
			continue
		}

		if c.stopped() {
			return
		}
		if !c.reconnect(conn, err) {
			return
		}
	}
}

// reconnect replaces a broken stream and reports whether the loop may go on.
func (c *Client) reconnect(broken net.Conn, cause error) bool {
	if errors.Is(cause, wire.ErrFraming) {
		logger.Warn("Dropping desynchronized stream: %v", cause)
	} else {
		logger.Warn("Connection lost: %v", cause)
	}
	broken.Close()
	c.setState(StateReconnecting, cause)

	conn, err := c.dialWithRetry(c.ctx, true)
	if err != nil {
		if c.stopped() {
			return false
		}
		c.setState(StateDisconnected, err)
		fatal := fmt.Errorf("%w: %v", ErrReconnectFailed, err)
		logger.Error("%v", fatal)
		if c.fatalCallback != nil {
			c.fatalCallback(fatal)
		}
		return false
	}

	if !c.swapConn(conn) {
		return false
	}
	c.setState(StateConnected, nil)
	logger.Info("Reconnected to %s", conn.RemoteAddr())
	return true
}

// Post sends a message authored by the configured user. replyTo is 0 for a
// new top-level thread.
func (c *Client) Post(replyTo int64, text string) error {
	if c.stopped() {
		return ErrClosed
	}
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wire.WritePost(conn, wire.Post{ReplyTo: replyTo, Author: c.config.Username, Text: text}); err != nil {
		return fmt.Errorf("post: %w", err)
	}
	return nil
}

// Close stops the client. It never triggers a reconnect.
func (c *Client) Close() error {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.cancel()
		c.setState(StateClosed, nil)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connMu.Unlock()

		c.wg.Wait()
	})
	return nil
}

func (c *Client) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

// GetState returns the current connection state
func (c *Client) GetState() ConnectionState {
	return ConnectionState(c.state.Load())
}

// IsConnected returns true if the client is connected
func (c *Client) IsConnected() bool {
	return c.GetState() == StateConnected
}

// setState sets the connection state and notifies callback
func (c *Client) setState(state ConnectionState, err error) {
	oldState := ConnectionState(c.state.Swap(int32(state)))
	if oldState == StateClosed && state != StateClosed {
		c.state.Store(int32(StateClosed))
		return
	}

	if c.stateChangedCallback != nil && (oldState != state || err != nil) {
		c.stateChangedCallback(state, err)
	}
}

// SetEventCallback sets the function receiving every decoded event. It runs
// on the receive goroutine.
func (c *Client) SetEventCallback(fn func(wire.Event)) {
	c.eventCallback = fn
}

func (c *Client) SetStateChangedCallback(fn func(ConnectionState, error)) {
	c.stateChangedCallback = fn
}

func (c *Client) SetReconnectingCallback(fn func(attempt int, maxAttempts int)) {
	c.reconnectingCallback = fn
}

// SetFatalCallback sets the function called once reconnecting has failed.
func (c *Client) SetFatalCallback(fn func(error)) {
	c.fatalCallback = fn
}
