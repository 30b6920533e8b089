package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkotov/pricefeed/internal/model"
)

// fakeCache records every Set. An optional gate blocks the worker so the
// queue can be filled deterministically.
type fakeCache struct {
	mu    sync.Mutex
	ticks []model.Tick
	err   error

	gate    chan struct{} // When non-nil, each Set waits for a receive
	started chan struct{} // Closed once the first Set is entered
	once    sync.Once
}

func (f *fakeCache) Set(ctx context.Context, t model.Tick) error {
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, t)
	return f.err
}

func (f *fakeCache) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ticks)
}

func testTick(symbol string, ts int64) model.Tick {
	return model.Tick{
		Exchange:    "BINANCE",
		Market:      model.MarketSpot,
		Symbol:      symbol,
		Bid:         1.0,
		Ask:         1.1,
		EventTimeMs: ts,
	}
}

func TestPublisher_DrainsOnClose(t *testing.T) {
	fake := &fakeCache{}
	p := NewPublisher(fake, nil)

	const n = 50
	for i := 0; i < n; i++ {
		p.Publish(testTick("BTCUSDT", int64(i)))
	}
	p.Close()

	if got := fake.count(); got != n {
		t.Errorf("cached %d ticks after Close, want %d", got, n)
	}
	if got := p.Dropped(); got != 0 {
		t.Errorf("Dropped() = %d, want 0", got)
	}
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	fake := &fakeCache{
		gate:    make(chan struct{}),
		started: make(chan struct{}),
	}
	p := NewPublisher(fake, nil)

	// Park the worker inside one Set, then fill the queue exactly.
	p.Publish(testTick("BTCUSDT", 0))
	select {
	case <-fake.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never picked up the first tick")
	}
	for i := 0; i < publisherQueueSize; i++ {
		p.Publish(testTick("BTCUSDT", int64(i+1)))
	}

	const extra = 3
	for i := 0; i < extra; i++ {
		p.Publish(testTick("ETHUSDT", int64(i)))
	}
	if got := p.Dropped(); got != extra {
		t.Errorf("Dropped() = %d, want %d", got, extra)
	}

	close(fake.gate)
	p.Close()

	if got := fake.count(); got != publisherQueueSize+1 {
		t.Errorf("cached %d ticks, want %d", got, publisherQueueSize+1)
	}
}

func TestPublisher_CountsWriteErrors(t *testing.T) {
	fake := &fakeCache{err: errors.New("connection refused")}
	p := NewPublisher(fake, nil)

	p.Publish(testTick("BTCUSDT", 1))
	p.Publish(testTick("BTCUSDT", 2))
	p.Close()

	if got := p.Errors(); got != 2 {
		t.Errorf("Errors() = %d, want 2", got)
	}
}

func TestPublisher_CloseIdempotent(t *testing.T) {
	p := NewPublisher(&fakeCache{}, nil)
	p.Close()
	p.Close()
}
