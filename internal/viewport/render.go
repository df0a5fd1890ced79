package viewport

import (
	"github.com/mattn/go-runewidth"

	"github.com/codefionn/threadchat/internal/thread"
)

// UIState is the client's view of the tree.
type UIState struct {
	// Top is the first buffer row on screen, Left the horizontal offset in
	// display cells.
	Top  int
	Left int
	// Width and Height are the terminal size; Height includes ReservedRows.
	Width  int
	Height int

	SelectedID int64
	// ReplyID is the message being replied to, 0 for a new thread.
	ReplyID int64
	Writing bool
	// Move is a pending vertical selection delta, consumed by Render.
	Move int

	Input *InputBuffer
}

// NewUIState returns a state with an empty compose buffer of the given
// initial capacity.
func NewUIState(width, height, inputCapacity int) *UIState {
	return &UIState{
		Width:  width,
		Height: height,
		Input:  NewInputBuffer(inputCapacity),
	}
}

// MessageRows is the number of rows available for messages.
func (ui *UIState) MessageRows() int {
	if rows := ui.Height - ReservedRows; rows > 0 {
		return rows
	}
	return 1
}

// Screen is the visible part of the buffer.
type Screen struct {
	Lines []string
	// IDs maps each line to its message.
	IDs []int64
	// Selected is the line index of the selection, -1 when it is off screen
	// or nothing is selected.
	Selected int
	// TotalRows is the height of the full buffer.
	TotalRows int
}

// Render applies pending movement, scrolls so the selection is visible,
// extracts the window and marks every shown message as read.
func Render(tree *thread.Tree, ui *UIState) *Screen {
	if ui.SelectedID == 0 && !tree.Empty() {
		ui.SelectedID = tree.Roots()[0]
	}

	buf := Draw(tree, ui.ReplyID)
	rows := buf.Height()

	selected := buf.Index(ui.SelectedID)
	if selected < 0 {
		selected = 0
	}

	if ui.Move != 0 {
		selected += ui.Move
		if selected >= rows {
			selected = rows - 1
		}
		if selected < 0 {
			selected = 0
		}
		if selected < rows {
			ui.SelectedID = buf.IDs[selected]
		}
		ui.Move = 0
	}

	view := ui.MessageRows()
	if selected < ui.Top {
		ui.Top = selected
	} else if selected >= ui.Top+view {
		ui.Top = selected - view + 1
	}
	if ui.Top < 0 {
		ui.Top = 0
	}
	if ui.Left < 0 {
		ui.Left = 0
	}

	screen := &Screen{Selected: -1, TotalRows: rows}
	for row := ui.Top; row < rows && row-ui.Top < view; row++ {
		screen.Lines = append(screen.Lines, clip(buf.Rows[row], ui.Left, ui.Width))
		screen.IDs = append(screen.IDs, buf.IDs[row])
		if buf.IDs[row] == ui.SelectedID {
			screen.Selected = row - ui.Top
		}

		if n, ok := tree.Find(buf.IDs[row]); ok {
			n.Read = true
		}
	}

	return screen
}

// clip drops the first left display cells of s and truncates the rest to
// width cells. A non-positive width means no limit.
func clip(s string, left, width int) string {
	if left > 0 {
		s = runewidth.TruncateLeft(s, left, "")
	}
	if width > 0 && runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "")
	}
	return s
}
