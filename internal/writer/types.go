package writer

import (
	"time"
)

// WriterConfig contains configuration for the price writer.
type WriterConfig struct {
	// BatchSize is the number of ticks to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: time.Second,
	}
}

// priceRow represents a row for the latest_prices table.
type priceRow struct {
	Exchange    string
	Market      string
	Symbol      string
	Bid         float64
	Ask         float64
	EventTimeMs int64
	ReceivedAt  int64 // Microseconds
}

// WriterMetrics holds metrics for the price writer.
type WriterMetrics struct {
	Upserts int64
	Stale   int64 // Rows rejected by the event-time guard
	Errors  int64
	Flushes int64
	Dropped int64 // Ticks discarded because the pending buffer was full
}
