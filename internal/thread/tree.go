// Package thread holds the reply-threaded message forest shared in shape by
// the server (authoritative copy) and every client (replica).
//
// Nodes live in an arena keyed by id. Each node records its parent id and an
// ordered slice of child ids; sibling ids are kept strictly increasing.
//
// A Tree performs no locking. The server guards it with its registry lock and
// the client with its UI lock.
package thread

import (
	"errors"
	"fmt"
	"sort"
)

// TopLevel is the reply_to sentinel for messages without a parent.
const TopLevel int64 = 0

var (
	// ErrUnknownParent is returned when reply_to names an id the tree has not
	// seen. It indicates an ordering problem upstream.
	ErrUnknownParent = errors.New("unknown parent message")
	// ErrDuplicateID is returned when the id is already present.
	ErrDuplicateID = errors.New("duplicate message id")
	// ErrInvalidID is returned for ids that can never be assigned.
	ErrInvalidID = errors.New("invalid message id")
)

// Message is a single post in the forest.
type Message struct {
	ID      int64
	ReplyTo int64
	Author  string
	Text    string

	// Read and Collapsed are client-local display flags.
	Read      bool
	Collapsed bool
}

// Node is a Message plus its position in the forest.
type Node struct {
	Message
	children []int64
}

// Children returns the ids of n's direct replies in ascending order.
func (n *Node) Children() []int64 {
	return n.children
}

// HasChildren reports whether n has any replies.
func (n *Node) HasChildren() bool {
	return len(n.children) > 0
}

// Tree is an ordered forest of messages.
type Tree struct {
	nodes map[int64]*Node
	roots []int64
}

// New creates an empty forest.
func New() *Tree {
	return &Tree{nodes: make(map[int64]*Node)}
}

// Len returns the number of messages in the forest.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Empty reports whether the forest has no messages.
func (t *Tree) Empty() bool {
	return len(t.roots) == 0
}

// Roots returns the ids of the top-level messages in ascending order.
func (t *Tree) Roots() []int64 {
	return t.roots
}

// Has reports whether id is present.
func (t *Tree) Has(id int64) bool {
	_, ok := t.nodes[id]
	return ok
}

// Find looks up a message by id. A missing id is a normal outcome.
func (t *Tree) Find(id int64) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Insert adds a message under replyTo, keeping the sibling list sorted by id.
// The tree is left untouched when the parent is unknown or the id exists.
func (t *Tree) Insert(id, replyTo int64, author, text string) (*Node, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if _, exists := t.nodes[id]; exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	siblings := &t.roots
	if replyTo != TopLevel {
		parent, ok := t.nodes[replyTo]
		if !ok {
			return nil, fmt.Errorf("%w: message %d replies to %d", ErrUnknownParent, id, replyTo)
		}
		siblings = &parent.children
	}

	node := &Node{Message: Message{
		ID:      id,
		ReplyTo: replyTo,
		Author:  author,
		Text:    text,
	}}
	t.nodes[id] = node
	*siblings = insertSorted(*siblings, id)
	return node, nil
}

// insertSorted links id before the first sibling with a greater id.
func insertSorted(ids []int64, id int64) []int64 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] > id })
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// IsFullyRead reports whether the message and every descendant has been
// displayed. Unknown ids count as read.
func (t *Tree) IsFullyRead(id int64) bool {
	n, ok := t.nodes[id]
	if !ok {
		return true
	}
	if !n.Read {
		return false
	}
	for _, child := range n.children {
		if !t.IsFullyRead(child) {
			return false
		}
	}
	return true
}

// ToggleCollapsed flips the collapsed flag of id and reports whether it was
// found.
func (t *Tree) ToggleCollapsed(id int64) bool {
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	n.Collapsed = !n.Collapsed
	return true
}

// Walk visits every message in pre-order, parents before children and
// siblings in id order, passing the depth of each node. Returning false from
// fn stops the walk.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	for _, id := range t.roots {
		if !t.walk(id, 0, fn) {
			return
		}
	}
}

func (t *Tree) walk(id int64, depth int, fn func(*Node, int) bool) bool {
	n := t.nodes[id]
	if !fn(n, depth) {
		return false
	}
	for _, child := range n.children {
		if !t.walk(child, depth+1, fn) {
			return false
		}
	}
	return true
}

// Messages returns a pre-order snapshot of every message.
func (t *Tree) Messages() []Message {
	out := make([]Message, 0, len(t.nodes))
	t.Walk(func(n *Node, _ int) bool {
		out = append(out, n.Message)
		return true
	})
	return out
}
