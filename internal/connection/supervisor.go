package connection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkotov/pricefeed/internal/exchange"
	"github.com/dkotov/pricefeed/internal/publish"
)

// Supervisor runs one symbol batch of one exchange feed: it connects,
// subscribes, streams ticks to the publisher, and reconnects forever on
// any failure. Replicated batches get one supervisor per replica.
type Supervisor struct {
	adapter exchange.Adapter
	batch   []string
	replica int
	cfg     SupervisorConfig
	pub     publish.Publisher
	logger  *slog.Logger

	// newClient is swappable for tests.
	newClient func(cfg ClientConfig, logger *slog.Logger) Client

	state     atomic.Int32
	connects  atomic.Int64
	frames    atomic.Int64
	ticksOut  atomic.Int64
	malformed atomic.Int64

	mu         sync.Mutex
	lastTickAt time.Time
}

// NewSupervisor creates a supervisor for one (adapter, batch, replica).
func NewSupervisor(adapter exchange.Adapter, batch []string, replica int, cfg SupervisorConfig, pub publish.Publisher, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{
		adapter: adapter,
		batch:   batch,
		replica: replica,
		cfg:     cfg,
		pub:     pub,
		logger: logger.With(
			"exchange", adapter.Name(),
			"market", adapter.Market(),
			"batch_size", len(batch),
			"replica", replica,
		),
		newClient: NewClient,
	}
}

// ID identifies the supervisor in logs and health output.
func (s *Supervisor) ID() string {
	return fmt.Sprintf("%s/%s/%d/r%d", s.adapter.Name(), s.adapter.Market(), len(s.batch), s.replica)
}

// Stats returns a snapshot of the supervisor's counters.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	lastTick := s.lastTickAt
	s.mu.Unlock()

	return Stats{
		State:      State(s.state.Load()),
		Connects:   s.connects.Load(),
		Frames:     s.frames.Load(),
		TicksOut:   s.ticksOut.Load(),
		Malformed:  s.malformed.Load(),
		LastTickAt: lastTick,
	}
}

// Run blocks until ctx is cancelled, cycling through connect, subscribe,
// stream, backoff. It returns ctx.Err() and nothing else: individual
// connection failures are never fatal.
func (s *Supervisor) Run(ctx context.Context) error {
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			s.state.Store(int32(StateDisconnected))
			return err
		}

		startedAt := time.Now()
		err := s.runOnce(ctx)
		s.state.Store(int32(StateDisconnected))

		if ctx.Err() != nil {
			return ctx.Err()
		}

		// A stream that survived long enough resets the backoff schedule.
		if time.Since(startedAt) >= s.cfg.HealthyAfter {
			attempt = 0
		}

		wait := s.cfg.Backoff.Wait(attempt)
		attempt++

		s.logger.Warn("feed disconnected, reconnecting",
			"error", err,
			"wait", wait,
			"attempt", attempt,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// runOnce performs a single connect-subscribe-stream cycle. It returns
// when the connection dies or ctx is cancelled.
func (s *Supervisor) runOnce(ctx context.Context) error {
	s.state.Store(int32(StateConnecting))

	clientCfg := s.cfg.Client
	clientCfg.URL = s.adapter.URL(s.batch)

	client := s.newClient(clientCfg, s.logger)
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.connects.Add(1)

	s.state.Store(int32(StateSubscribing))
	if err := s.subscribe(ctx, client); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	kaStop := make(chan struct{})
	kaDone := s.startKeepalive(ctx, client, kaStop)

	s.state.Store(int32(StateStreaming))
	s.logger.Info("feed streaming", "symbols", len(s.batch))

	err := s.stream(ctx, client)

	close(kaStop)
	if kaDone != nil {
		<-kaDone
	}
	return err
}

// subscribe sends the adapter's subscribe messages, pacing them by the
// exchange's SubscribeDelay.
func (s *Supervisor) subscribe(ctx context.Context, client Client) error {
	msgs := s.adapter.SubscribeMessages(s.batch)
	delay := s.adapter.Limits().SubscribeDelay

	for i, msg := range msgs {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := client.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// startKeepalive launches the application-level ping loop when the
// adapter needs one. Returns nil when the transport ping suffices.
func (s *Supervisor) startKeepalive(ctx context.Context, client Client, stop <-chan struct{}) <-chan struct{} {
	payload, interval := s.adapter.KeepAlive()
	if payload == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := client.Send(payload); err != nil {
					// The read side notices the dead connection; just stop.
					return
				}
			}
		}
	}()
	return done
}

// stream consumes frames until the connection errors or ctx is cancelled.
func (s *Supervisor) stream(ctx context.Context, client Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-client.Errors():
			return err

		case msg, ok := <-client.Messages():
			if !ok {
				return ErrNotConnected
			}
			s.frames.Add(1)
			s.handleFrame(client, msg)
		}
	}
}

// handleFrame decodes one frame and acts on the result.
func (s *Supervisor) handleFrame(client Client, msg TimestampedMessage) {
	res := s.adapter.Decode(msg.Data)

	switch res.Kind {
	case exchange.Ticks:
		for _, t := range res.Ticks {
			t.ReceivedAt = msg.ReceivedAt
			s.pub.Publish(t)
		}
		s.ticksOut.Add(int64(len(res.Ticks)))
		s.mu.Lock()
		s.lastTickAt = msg.ReceivedAt
		s.mu.Unlock()

	case exchange.Ping:
		if err := client.Send(res.Pong); err != nil {
			s.logger.Debug("failed to answer ping", "error", err)
		}

	case exchange.Malformed:
		n := s.malformed.Add(1)
		if n == 1 || n%100 == 0 {
			s.logger.Warn("malformed frame",
				"error", res.Err,
				"total_malformed", n,
			)
		}

	case exchange.Ignored:
		// Control traffic: acks, pongs, heartbeats.
	}
}
