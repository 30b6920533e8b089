// Package collector receives tick datagrams from feed processes and
// aggregates them into an in-memory price store.
//
// Feeds publish one CSV line per UDP datagram. The collector is loss
// tolerant: a dropped datagram just means the price updates one tick
// later, and the store's event-time guard keeps reordered datagrams from
// rolling prices back.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/dkotov/pricefeed/internal/model"
	"github.com/dkotov/pricefeed/internal/store"
)

// maxDatagram is the read buffer size. A tick line is well under this.
const maxDatagram = 4096

// Collector listens for tick datagrams and merges them into a store.
type Collector struct {
	store  *store.Store
	logger *slog.Logger

	statsInterval time.Duration

	received  atomic.Int64
	merged    atomic.Int64
	rejected  atomic.Int64 // Stale ticks refused by the store
	malformed atomic.Int64
}

// New creates a collector backed by the given store.
func New(s *store.Store, statsInterval time.Duration, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		store:         s,
		logger:        logger.With("component", "collector"),
		statsInterval: statsInterval,
	}
}

// Store returns the backing price store.
func (c *Collector) Store() *store.Store {
	return c.store
}

// Stats is a snapshot of the collector's counters.
type Stats struct {
	Received  int64
	Merged    int64
	Rejected  int64
	Malformed int64
	Keys      int
}

// Stats returns current counters.
func (c *Collector) Stats() Stats {
	return Stats{
		Received:  c.received.Load(),
		Merged:    c.merged.Load(),
		Rejected:  c.rejected.Load(),
		Malformed: c.malformed.Load(),
		Keys:      c.store.Len(),
	}
}

// Run reads datagrams from conn until ctx is cancelled. It owns conn and
// closes it on return.
func (c *Collector) Run(ctx context.Context, conn net.PacketConn) error {
	defer conn.Close()

	// Unblock the read loop on cancellation.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	if c.statsInterval > 0 {
		go c.statsLoop(ctx)
	}

	c.logger.Info("collector listening", "addr", conn.LocalAddr().String())

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		c.handleDatagram(buf[:n])
	}
}

// handleDatagram parses and merges one datagram.
func (c *Collector) handleDatagram(data []byte) {
	c.received.Add(1)

	t, err := model.ParseLine(data)
	if err != nil {
		n := c.malformed.Add(1)
		if n == 1 || n%1000 == 0 {
			c.logger.Warn("malformed datagram", "error", err, "total_malformed", n)
		}
		return
	}
	t.ReceivedAt = time.Now()

	if c.store.Merge(t) {
		c.merged.Add(1)
	} else {
		c.rejected.Add(1)
	}
}

func (c *Collector) statsLoop(ctx context.Context) {
	ticker := time.NewTicker(c.statsInterval)
	defer ticker.Stop()

	var last Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := c.Stats()
			c.logger.Info("collector stats",
				"received", s.Received,
				"received_delta", s.Received-last.Received,
				"merged", s.Merged,
				"rejected", s.Rejected,
				"malformed", s.Malformed,
				"keys", s.Keys,
			)
			last = s
		}
	}
}
