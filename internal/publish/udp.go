package publish

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dkotov/pricefeed/internal/model"
)

const (
	udpQueueInitial = 256
	udpQueueMax     = 65536

	udpStatsInterval = 30 * time.Second
)

// UDPPublisher serializes ticks to CSV lines and sends each as one UDP
// datagram. Publish enqueues and returns immediately; a single sender
// goroutine drains the queue. Ticks are dropped when the queue is full
// or the socket write fails, never retried.
type UDPPublisher struct {
	conn   net.Conn
	queue  *queue[model.Tick]
	logger *slog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu         sync.Mutex
	sent       int64
	sendErrors int64
}

// NewUDP resolves addr (host:port) and starts the sender goroutine.
func NewUDP(addr string, logger *slog.Logger) (*UDPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp %s: %w", addr, err)
	}

	p := &UDPPublisher{
		conn:   conn,
		queue:  newQueue[model.Tick](udpQueueInitial, udpQueueMax),
		logger: logger.With("component", "udp_publisher", "addr", addr),
		done:   make(chan struct{}),
	}

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.sendLoop()
	}()
	go func() {
		defer p.wg.Done()
		p.statsLoop()
	}()

	return p, nil
}

// Publish enqueues the tick for sending. Never blocks.
func (p *UDPPublisher) Publish(t model.Tick) {
	p.queue.Push(t)
}

// Close stops the sender after draining queued ticks and closes the socket.
func (p *UDPPublisher) Close() error {
	p.closeOnce.Do(func() {
		p.queue.Close()
		close(p.done)
		p.wg.Wait()
		p.conn.Close()
	})
	return nil
}

func (p *UDPPublisher) sendLoop() {
	for {
		t, ok := p.queue.Pop()
		if !ok {
			return
		}
		if _, err := p.conn.Write([]byte(t.Line())); err != nil {
			p.mu.Lock()
			p.sendErrors++
			n := p.sendErrors
			p.mu.Unlock()
			if n == 1 || n%1000 == 0 {
				p.logger.Warn("udp send failed", "error", err, "total_errors", n)
			}
			continue
		}
		p.mu.Lock()
		p.sent++
		p.mu.Unlock()
	}
}

func (p *UDPPublisher) statsLoop() {
	ticker := time.NewTicker(udpStatsInterval)
	defer ticker.Stop()

	var lastSent, lastDropped int64
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		sent := p.sent
		errs := p.sendErrors
		p.mu.Unlock()
		dropped := p.queue.Dropped()

		if sent == lastSent && dropped == lastDropped {
			continue
		}
		p.logger.Info("publish stats",
			"sent", sent,
			"sent_delta", sent-lastSent,
			"dropped", dropped,
			"send_errors", errs,
			"queued", p.queue.Len(),
		)
		lastSent, lastDropped = sent, dropped
	}
}
