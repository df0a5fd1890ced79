// Package viewport turns a message tree and the client's UI state into the
// lines shown on screen.
//
// Rendering is split in three steps. Bounds measures the visible forest,
// Draw lays it out into a fixed-width Buffer with a row to id index, and
// Render applies the selection and scroll policy, cuts the visible window
// out of the buffer and marks what was shown as read. Bounds and Draw have no
// side effects; only Render mutates the tree (read flags) and the UIState.
//
// Callers hold the lock that guards both the tree and the UIState.
package viewport

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/codefionn/threadchat/internal/thread"
)

// Glyphs in the two status columns of every row.
const (
	GlyphReplyTarget = '>'
	GlyphUnread      = '!'
	GlyphCollapsed   = '+'
)

// ReservedRows are taken by the help line and the compose prompt.
const ReservedRows = 2

// nodeWidth is the width in display cells of a node's own row without
// indentation.
func nodeWidth(n *thread.Node) int {
	return 2 + runewidth.StringWidth(n.Author) + 2 + runewidth.StringWidth(n.Text)
}

// Bounds returns the width in display cells and height of the fully drawn forest: one row per
// node whose ancestors are all expanded.
func Bounds(tree *thread.Tree) (width, height int) {
	return bounds(tree, tree.Roots())
}

func bounds(tree *thread.Tree, ids []int64) (width, height int) {
	for _, id := range ids {
		n, ok := tree.Find(id)
		if !ok {
			continue
		}
		height++

		w := nodeWidth(n)
		if !n.Collapsed && n.HasChildren() {
			cw, ch := bounds(tree, n.Children())
			if cw+1 > w {
				w = cw + 1
			}
			height += ch
		}
		if w > width {
			width = w
		}
	}
	return width, height
}

// Buffer is the whole forest laid out as rows of equal display width.
type Buffer struct {
	Width int
	Rows  []string
	// IDs maps each row to the message drawn on it.
	IDs []int64
}

// Height returns the number of rows.
func (b *Buffer) Height() int {
	return len(b.Rows)
}

// Index returns the row showing id, or -1.
func (b *Buffer) Index(id int64) int {
	for i, rowID := range b.IDs {
		if rowID == id {
			return i
		}
	}
	return -1
}

// Draw lays out every visible node in pre-order. Column 0 holds the reply
// target or unread marker, column 1 the collapsed marker, both shifted right
// by the node's depth.
func Draw(tree *thread.Tree, replyID int64) *Buffer {
	width, height := Bounds(tree)
	buf := &Buffer{
		Width: width,
		Rows:  make([]string, 0, height),
		IDs:   make([]int64, 0, height),
	}

	var sb strings.Builder
	var walk func(ids []int64, depth int)
	walk = func(ids []int64, depth int) {
		for _, id := range ids {
			n, ok := tree.Find(id)
			if !ok {
				continue
			}

			sb.Reset()
			sb.WriteString(strings.Repeat(" ", depth))
			switch {
			case replyID != thread.TopLevel && n.ID == replyID:
				sb.WriteRune(GlyphReplyTarget)
			case !tree.IsFullyRead(n.ID):
				sb.WriteRune(GlyphUnread)
			default:
				sb.WriteByte(' ')
			}
			if n.Collapsed {
				sb.WriteRune(GlyphCollapsed)
			} else {
				sb.WriteByte(' ')
			}
			sb.WriteString(n.Author)
			sb.WriteString(": ")
			sb.WriteString(n.Text)

			row := sb.String()
			if pad := width - runewidth.StringWidth(row); pad > 0 {
				row += strings.Repeat(" ", pad)
			}
			buf.Rows = append(buf.Rows, row)
			buf.IDs = append(buf.IDs, n.ID)

			if !n.Collapsed {
				walk(n.Children(), depth+1)
			}
		}
	}
	walk(tree.Roots(), 0)

	return buf
}
