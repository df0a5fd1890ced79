package tui

import (
	"strings"
	"sync"

	"github.com/codefionn/threadchat/internal/consts"
)

const maxFrameCapacity = consts.BufferSize64KB

// framePool recycles the builders a frame is assembled in. Frames are
// rebuilt on every keystroke and every received message.
var framePool = sync.Pool{
	New: func() any {
		return new(strings.Builder)
	},
}

func acquireFrame(size int) *strings.Builder {
	b := framePool.Get().(*strings.Builder)
	b.Reset()
	b.Grow(size)
	return b
}

// frameString returns the built frame and puts b back unless it grew past
// maxFrameCapacity.
func frameString(b *strings.Builder) string {
	s := strings.Clone(b.String())
	if b.Cap() <= maxFrameCapacity {
		b.Reset()
		framePool.Put(b)
	}
	return s
}
