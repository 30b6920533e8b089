// Package exchange defines the adapter contract every exchange variant
// implements, and a registry of the supported variants.
//
// An adapter knows one exchange's wire quirks: subscribe message format and
// batching limits, application-level keep-alive, payload envelopes,
// compression, and symbol spelling. It never owns a socket; the connection
// supervisor drives it.
package exchange

import (
	"fmt"
	"time"

	"github.com/dkotov/pricefeed/internal/model"
)

// Limits describes an exchange's subscription constraints.
type Limits struct {
	// PerConnection is the maximum number of symbols one connection may
	// carry. 0 means a single connection takes the whole list.
	PerConnection int

	// PerMessage is the maximum number of symbols one subscribe message may
	// name. 0 means all of the connection's symbols fit in one message.
	PerMessage int

	// SubscribeDelay is the minimum pause the supervisor must insert
	// between consecutive subscribe sends on one connection.
	SubscribeDelay time.Duration

	// Replicas is the number of redundant connections to run per batch.
	// At least 1; MEXC runs 2 for resilience.
	Replicas int
}

// ResultKind classifies a decoded frame.
type ResultKind int

const (
	// Ignored marks control frames: subscribe acks, pongs, heartbeats,
	// events on channels we did not ask for.
	Ignored ResultKind = iota

	// Ticks marks a frame that produced one or more canonical ticks.
	Ticks

	// Ping marks an application-level ping the supervisor must answer
	// with Result.Pong immediately.
	Ping

	// Malformed marks a frame that could not be decoded. Non-fatal: the
	// supervisor logs it and keeps reading.
	Malformed
)

// Result is the outcome of decoding one inbound frame.
type Result struct {
	Kind  ResultKind
	Ticks []model.Tick // set when Kind == Ticks
	Pong  []byte       // set when Kind == Ping
	Err   error        // set when Kind == Malformed, for logging only
}

// Adapter is the per-exchange protocol variant. Implementations must be
// safe for use by a single supervisor goroutine; they hold no connection
// state.
type Adapter interface {
	// Name returns the uppercase canonical exchange name.
	Name() string

	// Market returns the market this adapter instance serves.
	Market() model.Market

	// URL returns the WebSocket endpoint for the given symbol batch. Most
	// exchanges ignore the batch; Binance embeds it in the stream path.
	URL(batch []string) string

	// Limits returns the exchange's subscription constraints.
	Limits() Limits

	// SubscribeMessages builds the wire messages that subscribe to
	// best-bid/ask for every symbol in the batch, already split to honor
	// Limits().PerMessage. May be empty (Binance subscribes via URL).
	SubscribeMessages(batch []string) [][]byte

	// KeepAlive returns the application-level ping payload and its send
	// interval, or a nil payload when the transport ping suffices.
	KeepAlive() ([]byte, time.Duration)

	// Decode classifies one inbound frame. It never panics and never
	// returns a tick with a missing bid or ask.
	Decode(frame []byte) Result
}

// ignored and malformed are shared Result constructors.
func ignored() Result              { return Result{Kind: Ignored} }
func malformed(err error) Result   { return Result{Kind: Malformed, Err: err} }
func ticks(ts []model.Tick) Result { return Result{Kind: Ticks, Ticks: ts} }

// NowMs is the local-clock fallback for frames without an exchange
// timestamp. Overridable in tests.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// ErrUnknownExchange is returned by New for names outside the supported set.
var ErrUnknownExchange = fmt.Errorf("unknown exchange")
