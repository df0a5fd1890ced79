package consts

import "time"

// Network defaults
const (
	// DefaultPort is the TCP port the server listens on and clients dial
	DefaultPort = 9002
	// DefaultListenHost binds every interface
	DefaultListenHost = "0.0.0.0"
)

// Protocol limits
const (
	// MaxFieldLength caps author/text lengths accepted off the wire. Anything
	// larger means the stream is desynchronized.
	MaxFieldLength = 1 << 20
)

// Session limits
const (
	// DefaultMaxConnections bounds concurrently served clients
	DefaultMaxConnections = 256
	// DefaultSendQueueSize is the per-client outbound mailbox depth
	DefaultSendQueueSize = 256
	// DefaultConnectAttempts is the number of immediate dial attempts per (re)connect
	DefaultConnectAttempts = 10
	// DefaultInputCapacity is the initial compose buffer size in runes
	DefaultInputCapacity = 256
)

// Timeouts for various operations
const (
	// AcceptPollInterval is how often the accept loop rechecks the stop signal
	AcceptPollInterval = 250 * time.Millisecond
	// Timeout1Second is a 1 second timeout
	Timeout1Second = 1 * time.Second
	// Timeout5Seconds is a 5 second timeout
	Timeout5Seconds = 5 * time.Second
	// Timeout10Seconds is a 10 second timeout
	Timeout10Seconds = 10 * time.Second
)

// Buffer sizes
const (
	// BufferSize64KB bounds builders returned to the render pool
	BufferSize64KB = 64 * 1024
)
