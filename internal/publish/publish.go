package publish

import (
	"log/slog"

	"github.com/dkotov/pricefeed/internal/model"
	"github.com/dkotov/pricefeed/internal/store"
)

// Publisher consumes normalized ticks. Implementations must not block:
// they run on the connection read path.
type Publisher interface {
	Publish(t model.Tick)
}

// Func adapts a plain function to a Publisher.
type Func func(t model.Tick)

// Publish calls f.
func (f Func) Publish(t model.Tick) { f(t) }

// StorePublisher merges ticks into an in-memory store.
type StorePublisher struct {
	store *store.Store
}

// NewStore wraps s as a Publisher.
func NewStore(s *store.Store) *StorePublisher {
	return &StorePublisher{store: s}
}

// Publish merges the tick, discarding it silently if stale.
func (p *StorePublisher) Publish(t model.Tick) {
	p.store.Merge(t)
}

// LogPublisher writes every tick to a structured logger at debug level.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLog creates a logging publisher.
func NewLog(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs the tick.
func (p *LogPublisher) Publish(t model.Tick) {
	p.logger.Debug("tick",
		"exchange", t.Exchange,
		"market", t.Market,
		"symbol", t.Symbol,
		"bid", t.Bid,
		"ask", t.Ask,
		"event_time_ms", t.EventTimeMs,
	)
}

// Multi fans one tick out to several publishers in order.
type Multi []Publisher

// Publish delivers t to every publisher.
func (m Multi) Publish(t model.Tick) {
	for _, p := range m {
		p.Publish(t)
	}
}
