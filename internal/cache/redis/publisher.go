package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dkotov/pricefeed/internal/model"
)

const (
	publisherQueueSize = 8192
	setTimeout         = 2 * time.Second
)

// Setter is the cache write surface the publisher drains into.
type Setter interface {
	Set(ctx context.Context, t model.Tick) error
}

// Publisher is a non-blocking sink that mirrors ticks into the price
// cache. A single worker drains the queue; ticks are dropped when Redis
// cannot keep up.
type Publisher struct {
	cache  Setter
	logger *slog.Logger

	queue chan model.Tick

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	dropped int64
	errors  int64
}

// NewPublisher starts the cache worker.
func NewPublisher(cache Setter, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		cache:  cache,
		logger: logger.With("component", "redis_publisher"),
		queue:  make(chan model.Tick, publisherQueueSize),
		done:   make(chan struct{}),
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.worker()
	}()

	return p
}

// Publish enqueues the tick for caching. Never blocks.
func (p *Publisher) Publish(t model.Tick) {
	select {
	case p.queue <- t:
	default:
		p.mu.Lock()
		p.dropped++
		n := p.dropped
		p.mu.Unlock()
		if n == 1 || n%10000 == 0 {
			p.logger.Warn("cache queue full, dropping tick", "total_dropped", n)
		}
	}
}

// Dropped returns how many ticks were discarded on a full queue.
func (p *Publisher) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Errors returns how many cache writes have failed.
func (p *Publisher) Errors() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errors
}

// Close stops the worker after draining queued ticks.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
	return nil
}

func (p *Publisher) worker() {
	for {
		select {
		case t := <-p.queue:
			p.set(t)
		case <-p.done:
			// Drain what is already queued, then stop.
			for {
				select {
				case t := <-p.queue:
					p.set(t)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) set(t model.Tick) {
	ctx, cancel := context.WithTimeout(context.Background(), setTimeout)
	defer cancel()

	if err := p.cache.Set(ctx, t); err != nil {
		p.mu.Lock()
		p.errors++
		n := p.errors
		p.mu.Unlock()
		if n == 1 || n%1000 == 0 {
			p.logger.Warn("cache write failed", "error", err, "total_errors", n)
		}
	}
}
