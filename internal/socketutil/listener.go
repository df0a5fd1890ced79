package socketutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/threadchat/internal/consts"
	"github.com/codefionn/threadchat/internal/logger"
)

// Stats is the payload of GET /healthz.
type Stats struct {
	Clients  int `json:"clients"`
	Messages int `json:"messages"`
}

// WSListener is a net.Listener fed by an HTTP server that upgrades GET /ws.
type WSListener struct {
	ln       net.Listener
	srv      *http.Server
	router   *httprouter.Router
	upgrader websocket.Upgrader
	stats    func() Stats

	conns     chan net.Conn
	done      chan struct{}
	closeOnce sync.Once
}

var _ net.Listener = (*WSListener)(nil)

// ListenWebSocket binds addr and starts serving /ws and /healthz. stats may be
// nil.
func ListenWebSocket(addr string, stats func() Stats) (*WSListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen websocket %s: %w", addr, err)
	}

	l := &WSListener{
		ln:     ln,
		router: httprouter.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		stats: stats,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
	l.setupRoutes()

	l.srv = &http.Server{
		Handler:           l.router,
		ReadHeaderTimeout: consts.Timeout10Seconds,
		ErrorLog:          logger.StdLogger(logger.Global().WithPrefix("ws"), slog.LevelWarn),
	}

	go func() {
		logger.Info("WebSocket endpoint listening on %s", ln.Addr())
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("WebSocket server error: %v", err)
		}
	}()

	return l, nil
}

func (l *WSListener) setupRoutes() {
	l.router.GET("/ws", l.handleUpgrade)
	l.router.GET("/healthz", l.handleHealth)
}

func (l *WSListener) handleUpgrade(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Failed to upgrade WebSocket from %s: %v", r.RemoteAddr, err)
		return
	}

	conn := NewWSConn(ws)
	select {
	case l.conns <- conn:
	case <-l.done:
		_ = conn.Close()
	}
}

func (l *WSListener) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	var st Stats
	if l.stats != nil {
		st = l.stats()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		logger.Debug("Failed to write health response: %v", err)
	}
}

// Accept waits for the next upgraded connection.
func (l *WSListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close stops the HTTP server. Connections already handed out stay open.
func (l *WSListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		ctx, cancel := context.WithTimeout(context.Background(), consts.Timeout5Seconds)
		defer cancel()
		err = l.srv.Shutdown(ctx)
	})
	return err
}

// Addr returns the bound TCP address.
func (l *WSListener) Addr() net.Addr {
	return l.ln.Addr()
}
