package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dkotov/pricefeed/internal/exchange"
	"github.com/dkotov/pricefeed/internal/model"
)

// fakeAdapter speaks a minimal line protocol for supervisor tests:
// subscribe frames are "SUB <symbol>", ticks arrive as
// "TICK sym bid ask ts", "PING" expects "PONG" back.
type fakeAdapter struct {
	url       string
	keepalive []byte
	limits    exchange.Limits
}

func (f *fakeAdapter) Name() string            { return "FAKE" }
func (f *fakeAdapter) Market() model.Market    { return model.MarketSpot }
func (f *fakeAdapter) URL(_ []string) string   { return f.url }
func (f *fakeAdapter) Limits() exchange.Limits { return f.limits }

func (f *fakeAdapter) SubscribeMessages(batch []string) [][]byte {
	msgs := make([][]byte, 0, len(batch))
	for _, s := range batch {
		msgs = append(msgs, []byte("SUB "+s))
	}
	return msgs
}

func (f *fakeAdapter) KeepAlive() ([]byte, time.Duration) {
	if f.keepalive == nil {
		return nil, 0
	}
	return f.keepalive, 20 * time.Millisecond
}

func (f *fakeAdapter) Decode(frame []byte) exchange.Result {
	var fields []string
	if err := json.Unmarshal(frame, &fields); err != nil {
		if string(frame) == "PING" {
			return exchange.Result{Kind: exchange.Ping, Pong: []byte("PONG")}
		}
		return exchange.Result{Kind: exchange.Malformed, Err: err}
	}
	if len(fields) != 4 {
		return exchange.Result{Kind: exchange.Ignored}
	}
	bid, err1 := strconv.ParseFloat(fields[1], 64)
	ask, err2 := strconv.ParseFloat(fields[2], 64)
	ts, err3 := strconv.ParseInt(fields[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return exchange.Result{Kind: exchange.Malformed, Err: fmt.Errorf("bad tick frame")}
	}
	return exchange.Result{
		Kind: exchange.Ticks,
		Ticks: []model.Tick{{
			Exchange:    "FAKE",
			Market:      model.MarketSpot,
			Symbol:      fields[0],
			Bid:         bid,
			Ask:         ask,
			EventTimeMs: ts,
		}},
	}
}

// tickFrame builds the JSON array frame fakeAdapter decodes into a tick.
func tickFrame(sym string, bid, ask float64, ts int64) []byte {
	b, _ := json.Marshal([]string{
		sym,
		strconv.FormatFloat(bid, 'f', -1, 64),
		strconv.FormatFloat(ask, 'f', -1, 64),
		strconv.FormatInt(ts, 10),
	})
	return b
}

// collector accumulates published ticks.
type collector struct {
	mu    sync.Mutex
	ticks []model.Tick
}

func (c *collector) Publish(t model.Tick) {
	c.mu.Lock()
	c.ticks = append(c.ticks, t)
	c.mu.Unlock()
}

func (c *collector) snapshot() []model.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Tick(nil), c.ticks...)
}

func testSupervisorConfig() SupervisorConfig {
	cfg := DefaultSupervisorConfig()
	cfg.Client.BufferSize = 100
	cfg.Backoff = Backoff{Base: 10 * time.Millisecond, Max: 50 * time.Millisecond}
	cfg.HealthyAfter = 50 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestSupervisor_SubscribesAndStreams(t *testing.T) {
	var subMu sync.Mutex
	var subs []string

	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Collect the two subscribe frames, then push ticks.
		for i := 0; i < 2; i++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			subMu.Lock()
			subs = append(subs, string(msg))
			subMu.Unlock()
		}
		conn.WriteMessage(websocket.TextMessage, tickFrame("BTCUSDT", 61000, 61001, 100))
		conn.WriteMessage(websocket.TextMessage, tickFrame("ETHUSDT", 3000, 3001, 200))
		time.Sleep(time.Second)
	})
	defer server.Close()

	adapter := &fakeAdapter{url: wsURL(server)}
	sink := &collector{}
	sup := NewSupervisor(adapter, []string{"BTCUSDT", "ETHUSDT"}, 0, testSupervisorConfig(), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return len(sink.snapshot()) >= 2 })

	subMu.Lock()
	gotSubs := append([]string(nil), subs...)
	subMu.Unlock()
	if len(gotSubs) != 2 || gotSubs[0] != "SUB BTCUSDT" || gotSubs[1] != "SUB ETHUSDT" {
		t.Errorf("subscribe frames = %v", gotSubs)
	}

	ticks := sink.snapshot()
	if ticks[0].Symbol != "BTCUSDT" || ticks[0].Bid != 61000 {
		t.Errorf("first tick = %+v", ticks[0])
	}
	if ticks[0].ReceivedAt.IsZero() {
		t.Error("ReceivedAt not stamped on published tick")
	}

	stats := sup.Stats()
	if stats.State != StateStreaming {
		t.Errorf("State = %v, want streaming", stats.State)
	}
	if stats.TicksOut < 2 {
		t.Errorf("TicksOut = %d, want >= 2", stats.TicksOut)
	}
}

func TestSupervisor_ReconnectsAfterDrop(t *testing.T) {
	var connMu sync.Mutex
	connCount := 0

	server := mockWSServer(t, func(conn *websocket.Conn) {
		connMu.Lock()
		connCount++
		n := connCount
		connMu.Unlock()

		// Drain the subscribe frame.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}

		if n == 1 {
			// First connection dies right after subscribing.
			return
		}
		conn.WriteMessage(websocket.TextMessage, tickFrame("BTCUSDT", 61000, 61001, 100))
		time.Sleep(time.Second)
	})
	defer server.Close()

	adapter := &fakeAdapter{url: wsURL(server)}
	sink := &collector{}
	sup := NewSupervisor(adapter, []string{"BTCUSDT"}, 0, testSupervisorConfig(), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	waitFor(t, 3*time.Second, func() bool { return len(sink.snapshot()) >= 1 })

	if got := sup.Stats().Connects; got < 2 {
		t.Errorf("Connects = %d, want >= 2", got)
	}
}

func TestSupervisor_AnswersApplicationPing(t *testing.T) {
	gotPong := make(chan string, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("PING"))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case gotPong <- string(msg):
		default:
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	adapter := &fakeAdapter{url: wsURL(server)}
	sup := NewSupervisor(adapter, []string{"BTCUSDT"}, 0, testSupervisorConfig(), &collector{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	select {
	case pong := <-gotPong:
		if pong != "PONG" {
			t.Errorf("pong frame = %q, want PONG", pong)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("application ping never answered")
	}
}

func TestSupervisor_SendsKeepalive(t *testing.T) {
	gotKeepalive := make(chan string, 1)

	server := mockWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		// Next frame should be the adapter's keepalive payload.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case gotKeepalive <- string(msg):
		default:
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	adapter := &fakeAdapter{url: wsURL(server), keepalive: []byte(`{"op":"ping"}`)}
	sup := NewSupervisor(adapter, []string{"BTCUSDT"}, 0, testSupervisorConfig(), &collector{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	select {
	case ka := <-gotKeepalive:
		if ka != `{"op":"ping"}` {
			t.Errorf("keepalive frame = %q", ka)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("keepalive never sent")
	}
}

func TestSupervisor_MalformedFramesAreNotFatal(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		conn.WriteMessage(websocket.TextMessage, tickFrame("BTCUSDT", 61000, 61001, 100))
		time.Sleep(time.Second)
	})
	defer server.Close()

	adapter := &fakeAdapter{url: wsURL(server)}
	sink := &collector{}
	sup := NewSupervisor(adapter, []string{"BTCUSDT"}, 0, testSupervisorConfig(), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	waitFor(t, 2*time.Second, func() bool { return len(sink.snapshot()) >= 1 })

	stats := sup.Stats()
	if stats.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", stats.Malformed)
	}
	if stats.Connects != 1 {
		t.Errorf("Connects = %d: malformed frame triggered a reconnect", stats.Connects)
	}
}

func TestSupervisor_StopsOnContextCancel(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	adapter := &fakeAdapter{url: wsURL(server)}
	sup := NewSupervisor(adapter, []string{"BTCUSDT"}, 0, testSupervisorConfig(), &collector{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return sup.Stats().State == StateStreaming })
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if sup.Stats().State != StateDisconnected {
		t.Errorf("State = %v after stop, want disconnected", sup.Stats().State)
	}
}

func TestBackoff_Schedule(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 60 * time.Second}

	wants := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for attempt, want := range wants {
		if got := b.Wait(attempt); got != want {
			t.Errorf("Wait(%d) = %v, want %v", attempt, got, want)
		}
	}
}
