// Package socketutil holds the transport glue shared by the server and the
// client: address resolution, dialing over TCP or WebSocket, and a
// WebSocket-backed net.Conn and net.Listener.
package socketutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// IsWebSocketURL reports whether target should be dialed as a WebSocket.
func IsWebSocketURL(target string) bool {
	return strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://")
}

// ResolveAddress returns host:port for a TCP target, appending defaultPort when
// the target carries none. WebSocket URLs are returned unchanged.
func ResolveAddress(target string, defaultPort int) string {
	if IsWebSocketURL(target) {
		return target
	}
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	host := strings.TrimSuffix(strings.TrimPrefix(target, "["), "]")
	return net.JoinHostPort(host, strconv.Itoa(defaultPort))
}

// Dial opens a byte stream to target. ws:// and wss:// URLs go through a
// WebSocket handshake; anything else is TCP.
func Dial(ctx context.Context, target string, defaultPort int, timeout time.Duration) (net.Conn, error) {
	addr := ResolveAddress(target, defaultPort)

	if IsWebSocketURL(addr) {
		dialer := websocket.Dialer{
			HandshakeTimeout: timeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		}
		ws, resp, err := dialer.DialContext(ctx, addr, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return NewWSConn(ws), nil
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
