package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkotov/pricefeed/internal/model"
)

const upsertSQL = `
	INSERT INTO latest_prices (exchange, market, symbol, bid, ask, event_time_ms, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (exchange, market, symbol) DO UPDATE
	SET bid = excluded.bid,
	    ask = excluded.ask,
	    event_time_ms = excluded.event_time_ms,
	    received_at = excluded.received_at
	WHERE excluded.event_time_ms >= latest_prices.event_time_ms
`

// maxPending bounds the in-memory backlog while the database is down.
const maxPending = 100000

// PriceWriter batches ticks and upserts the latest price per instrument.
// Publish is non-blocking and safe to call from connection read paths.
type PriceWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	db *pgxpool.Pool

	mu      sync.Mutex
	pending []priceRow
	metrics WriterMetrics

	kick chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPriceWriter creates a new PriceWriter.
func NewPriceWriter(cfg WriterConfig, db *pgxpool.Pool, logger *slog.Logger) *PriceWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceWriter{
		cfg:     cfg,
		db:      db,
		logger:  logger,
		pending: make([]priceRow, 0, cfg.BatchSize),
		kick:    make(chan struct{}, 1),
	}
}

// Start begins the background flush loop.
func (w *PriceWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("price writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop flushes outstanding rows and shuts down.
func (w *PriceWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping price writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("price writer stop timed out")
	}

	// Final flush under the caller's deadline, not the cancelled run context.
	w.flush(ctx)

	w.logger.Info("price writer stopped")
	return nil
}

// Publish queues a tick for the next flush. Never blocks.
func (w *PriceWriter) Publish(t model.Tick) {
	row := priceRow{
		Exchange:    t.Exchange,
		Market:      string(t.Market),
		Symbol:      t.Symbol,
		Bid:         t.Bid,
		Ask:         t.Ask,
		EventTimeMs: t.EventTimeMs,
		ReceivedAt:  t.ReceivedAt.UnixMicro(),
	}

	w.mu.Lock()
	if len(w.pending) >= maxPending {
		w.metrics.Dropped++
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, row)
	full := len(w.pending) >= w.cfg.BatchSize
	w.mu.Unlock()

	if full {
		select {
		case w.kick <- struct{}{}:
		default:
		}
	}
}

// Stats returns current metrics.
func (w *PriceWriter) Stats() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// flushLoop flushes on the interval and on batch-full kicks.
func (w *PriceWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		case <-w.kick:
			w.flush(w.ctx)
		}
	}
}

// flush collapses the pending batch to one row per instrument and upserts it.
func (w *PriceWriter) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make([]priceRow, 0, w.cfg.BatchSize)
	w.mu.Unlock()

	rows := collapse(batch)
	start := time.Now()

	stale, err := w.batchUpsert(ctx, rows)

	w.mu.Lock()
	if err != nil {
		w.metrics.Errors++
	} else {
		w.metrics.Upserts += int64(len(rows) - stale)
		w.metrics.Stale += int64(stale)
		w.metrics.Flushes++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("batch upsert failed", "error", err, "count", len(rows))
		return
	}

	w.logger.Debug("flushed prices",
		"ticks", len(batch),
		"rows", len(rows),
		"stale", stale,
		"duration", time.Since(start),
	)
}

// collapse keeps only the newest row per (exchange, market, symbol),
// preserving first-seen order of instruments.
func collapse(rows []priceRow) []priceRow {
	type key struct{ exchange, market, symbol string }

	idx := make(map[key]int, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := key{r.Exchange, r.Market, r.Symbol}
		if i, ok := idx[k]; ok {
			if r.EventTimeMs >= out[i].EventTimeMs {
				out[i] = r
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, r)
	}
	return out
}

// batchUpsert sends the rows in one pgx batch. Returns how many rows the
// event-time guard rejected.
func (w *PriceWriter) batchUpsert(ctx context.Context, rows []priceRow) (stale int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertSQL, r.Exchange, r.Market, r.Symbol, r.Bid, r.Ask, r.EventTimeMs, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			stale++
		}
	}

	return stale, nil
}
