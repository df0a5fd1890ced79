package socketserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"unicode"

	"golang.org/x/term"

	"github.com/codefionn/threadchat/internal/logger"
	"github.com/codefionn/threadchat/internal/thread"
	"github.com/codefionn/threadchat/internal/wire"
)

// Console is the operator interface of a running server: it prints incoming
// posts and reacts to single-key commands.
type Console struct {
	server *Server
	in     io.Reader
	out    io.Writer
	outMu  sync.Mutex

	// newline is "\r\n" while the terminal is in raw mode.
	newline string
}

// NewConsole attaches a console to server. Posts are printed to out from now
// on.
func NewConsole(server *Server, in io.Reader, out io.Writer) *Console {
	c := &Console{
		server:  server,
		in:      in,
		out:     out,
		newline: "\n",
	}
	server.SetPostCallback(c.PrintPost)
	return c
}

// Printf writes one line to the console.
func (c *Console) Printf(format string, args ...interface{}) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format+c.newline, args...)
}

// PrintPost echoes a broadcast message.
func (c *Console) PrintPost(ev wire.Event) {
	if ev.ReplyTo == thread.TopLevel {
		c.Printf("Message from %s: %s", ev.Author, ev.Text)
		return
	}
	c.Printf("Message from %s as a reply to %d: %s", ev.Author, ev.ReplyTo, ev.Text)
}

// Run reads commands until q, end of input, or server shutdown. When in is a
// terminal it is switched to raw mode so single keys arrive unbuffered.
func (c *Console) Run() error {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		state, err := term.MakeRaw(int(f.Fd()))
		if err != nil {
			logger.Warn("Failed to switch console to raw mode: %v", err)
		} else {
			c.outMu.Lock()
			c.newline = "\r\n"
			c.outMu.Unlock()
			defer func() {
				if err := term.Restore(int(f.Fd()), state); err != nil {
					logger.Warn("Failed to restore terminal: %v", err)
				}
				c.outMu.Lock()
				c.newline = "\n"
				c.outMu.Unlock()
			}()
		}
	}

	keys := make(chan rune)
	readErr := make(chan error, 1)
	go func() {
		r := bufio.NewReader(c.in)
		for {
			ch, _, err := r.ReadRune()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case keys <- ch:
			case <-c.server.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-c.server.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read console: %w", err)
		case ch := <-keys:
			if c.handleKey(ch) {
				return c.server.Stop()
			}
		}
	}
}

// handleKey executes a single command key and reports whether the server
// should shut down.
func (c *Console) handleKey(ch rune) bool {
	switch {
	case ch == 'q', ch == 0x03: // ctrl+c arrives as a byte in raw mode
		return true
	case ch == 'h':
		c.Printf("Available commands: h - help, q - quit")
	case unicode.IsPrint(ch) && !unicode.IsSpace(ch):
		c.Printf("Unrecognized command: %c", ch)
	}
	return false
}
