package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no traffic)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw frame bytes with the local receive time.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// State describes where a supervisor is in its connect cycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribing
	StateStreaming
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribing:
		return "subscribing"
	case StateStreaming:
		return "streaming"
	}
	return "unknown"
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket endpoint
	HandshakeTimeout time.Duration // Dial deadline
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Transport ping cadence
	StaleTimeout     time.Duration // Max quiet time before the connection is declared dead
	BufferSize       int           // Frame channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     20 * time.Second,
		StaleTimeout:     40 * time.Second, // One ping cycle plus a 20s pong wait
		BufferSize:       4096,
	}
}

// Backoff computes reconnect waits: base doubled per consecutive failure,
// capped at max. Attempt counting restarts after a healthy stream.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff returns the standard 1s..60s schedule.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: 60 * time.Second}
}

// Wait returns the pause before reconnect attempt n (0-based).
func (b Backoff) Wait(attempt int) time.Duration {
	wait := b.Base
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= b.Max {
			return b.Max
		}
	}
	if wait > b.Max {
		return b.Max
	}
	return wait
}

// SupervisorConfig configures one feed supervisor.
type SupervisorConfig struct {
	Client  ClientConfig // URL field is ignored; the adapter supplies it
	Backoff Backoff

	// HealthyAfter is how long a stream must survive before the backoff
	// attempt counter resets.
	HealthyAfter time.Duration
}

// DefaultSupervisorConfig returns sensible defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		Client:       DefaultClientConfig(),
		Backoff:      DefaultBackoff(),
		HealthyAfter: 30 * time.Second,
	}
}

// Stats is a snapshot of one supervisor's counters.
type Stats struct {
	State      State
	Connects   int64
	Frames     int64
	TicksOut   int64
	Malformed  int64
	LastTickAt time.Time
}
