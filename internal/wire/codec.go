// Package wire implements the threadchat binary framing.
//
// Server to client (event):
//
//	id:int64 | reply_to:int64 | author_len:uint64 | author | text_len:uint64 | text
//
// Client to server (post):
//
//	reply_to:int64 | author_len:uint64 | author | text_len:uint64 | text
//
// Integers are little-endian. Frames are written back to back with no
// delimiter, magic or checksum, so a reader that loses its place cannot
// recover: any short read past the first field is a framing error and the
// connection has to be dropped.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/codefionn/threadchat/internal/consts"
)

var (
	// ErrPeerClosed reports a clean end of stream before the first byte of a
	// frame.
	ErrPeerClosed = errors.New("peer closed connection")
	// ErrFraming reports a truncated or implausible frame.
	ErrFraming = errors.New("framing error")
)

var byteOrder = binary.LittleEndian

// Event is a message as broadcast by the server.
type Event struct {
	ID      int64
	ReplyTo int64
	Author  string
	Text    string
}

// Post is a message as submitted by a client. The server assigns the id.
type Post struct {
	ReplyTo int64
	Author  string
	Text    string
}

// AppendEvent appends the encoded event to dst.
func AppendEvent(dst []byte, ev Event) []byte {
	dst = byteOrder.AppendUint64(dst, uint64(ev.ID))
	return appendBody(dst, ev.ReplyTo, ev.Author, ev.Text)
}

// AppendPost appends the encoded post to dst.
func AppendPost(dst []byte, p Post) []byte {
	return appendBody(dst, p.ReplyTo, p.Author, p.Text)
}

func appendBody(dst []byte, replyTo int64, author, text string) []byte {
	dst = byteOrder.AppendUint64(dst, uint64(replyTo))
	dst = byteOrder.AppendUint64(dst, uint64(len(author)))
	dst = append(dst, author...)
	dst = byteOrder.AppendUint64(dst, uint64(len(text)))
	dst = append(dst, text...)
	return dst
}

// WriteEvent encodes ev as a single write.
func WriteEvent(w io.Writer, ev Event) error {
	_, err := w.Write(AppendEvent(nil, ev))
	return err
}

// WritePost encodes p as a single write.
func WritePost(w io.Writer, p Post) error {
	_, err := w.Write(AppendPost(nil, p))
	return err
}

// ReadEvent decodes one server frame.
func ReadEvent(r io.Reader) (Event, error) {
	id, err := readLeading(r)
	if err != nil {
		return Event{}, err
	}

	ev := Event{ID: int64(id)}
	replyTo, err := readUint64(r, "reply_to")
	if err != nil {
		return Event{}, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	ev.ReplyTo = int64(replyTo)
	if ev.Author, ev.Text, err = readStrings(r); err != nil {
		return Event{}, fmt.Errorf("event %d: %w", ev.ID, err)
	}
	return ev, nil
}

// ReadPost decodes one client frame.
func ReadPost(r io.Reader) (Post, error) {
	replyTo, err := readLeading(r)
	if err != nil {
		return Post{}, err
	}

	p := Post{ReplyTo: int64(replyTo)}
	if p.Author, p.Text, err = readStrings(r); err != nil {
		return Post{}, err
	}
	return p, nil
}

// readLeading reads the first integer of a frame, distinguishing a clean
// close from a partial field.
func readLeading(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return 0, ErrPeerClosed
		case errors.Is(err, io.ErrUnexpectedEOF):
			return 0, fmt.Errorf("%w: truncated leading field", ErrFraming)
		default:
			return 0, err
		}
	}
	return byteOrder.Uint64(buf[:]), nil
}

func readStrings(r io.Reader) (author, text string, err error) {
	if author, err = readString(r, "author"); err != nil {
		return "", "", err
	}
	if text, err = readString(r, "text"); err != nil {
		return "", "", err
	}
	return author, text, nil
}

func readUint64(r io.Reader, field string) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, midFrame(field, err)
	}
	return byteOrder.Uint64(buf[:]), nil
}

func readString(r io.Reader, field string) (string, error) {
	n, err := readUint64(r, field+"_len")
	if err != nil {
		return "", err
	}
	if n > consts.MaxFieldLength {
		return "", fmt.Errorf("%w: %s length %d exceeds %d", ErrFraming, field, n, consts.MaxFieldLength)
	}
	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", midFrame(field, err)
	}
	return string(buf), nil
}

// midFrame classifies a read failure after the frame has started. Running
// out of bytes here is always a framing error; transport errors are kept so
// callers can tell a reset from a truncated peer.
func midFrame(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: short read in %s", ErrFraming, field)
	}
	return fmt.Errorf("read %s: %w", field, err)
}
