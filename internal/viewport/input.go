package viewport

// InputBuffer is the growable compose buffer. Capacity doubles when full.
type InputBuffer struct {
	runes []rune
}

// NewInputBuffer allocates a buffer with the given initial capacity.
func NewInputBuffer(capacity int) *InputBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &InputBuffer{runes: make([]rune, 0, capacity)}
}

// Append adds r at the end.
func (b *InputBuffer) Append(r rune) {
	if len(b.runes) == cap(b.runes) {
		grown := make([]rune, len(b.runes), 2*cap(b.runes))
		copy(grown, b.runes)
		b.runes = grown
	}
	b.runes = append(b.runes, r)
}

// Backspace removes the last rune and reports whether there was one.
func (b *InputBuffer) Backspace() bool {
	if len(b.runes) == 0 {
		return false
	}
	b.runes = b.runes[:len(b.runes)-1]
	return true
}

// Len returns the number of runes.
func (b *InputBuffer) Len() int { return len(b.runes) }

// Cap returns the current capacity in runes.
func (b *InputBuffer) Cap() int { return cap(b.runes) }

func (b *InputBuffer) String() string { return string(b.runes) }

// Reset empties the buffer, keeping its capacity.
func (b *InputBuffer) Reset() {
	b.runes = b.runes[:0]
}
