package exchange

import (
	"strings"
	"testing"

	"github.com/dkotov/pricefeed/internal/model"
)

func TestBinance_URL(t *testing.T) {
	spot := NewBinance(model.MarketSpot)
	url := spot.URL([]string{"BTCUSDT", "ETHUSDT"})
	want := "wss://stream.binance.com:9443/stream?streams=btcusdt@bookTicker/ethusdt@bookTicker"
	if url != want {
		t.Errorf("URL() = %q, want %q", url, want)
	}

	fut := NewBinance(model.MarketFutures)
	if !strings.HasPrefix(fut.URL([]string{"BTCUSDT"}), "wss://fstream.binance.com/") {
		t.Errorf("futures URL = %q, want fstream host", fut.URL([]string{"BTCUSDT"}))
	}
}

func TestBinance_NoSubscribeMessages(t *testing.T) {
	a := NewBinance(model.MarketSpot)
	if msgs := a.SubscribeMessages([]string{"BTCUSDT"}); len(msgs) != 0 {
		t.Errorf("SubscribeMessages() = %d messages, want 0 (URL carries the subscription)", len(msgs))
	}
	if payload, _ := a.KeepAlive(); payload != nil {
		t.Error("KeepAlive() returned a payload, transport ping should suffice")
	}
}

func TestBinance_Decode_BareBookTicker(t *testing.T) {
	a := NewBinance(model.MarketSpot)

	res := a.Decode([]byte(`{"s":"BTCUSDT","b":"61234.5","a":"61234.6","E":1710000000000}`))
	if res.Kind != Ticks {
		t.Fatalf("Decode() kind = %v, want Ticks (err=%v)", res.Kind, res.Err)
	}
	if len(res.Ticks) != 1 {
		t.Fatalf("Decode() produced %d ticks, want 1", len(res.Ticks))
	}

	got := res.Ticks[0]
	want := model.Tick{
		Exchange:    "BINANCE",
		Market:      model.MarketSpot,
		Symbol:      "BTCUSDT",
		Bid:         61234.5,
		Ask:         61234.6,
		EventTimeMs: 1710000000000,
	}
	if got != want {
		t.Errorf("Decode() = %+v, want %+v", got, want)
	}
}

func TestBinance_Decode_CombinedStreamEnvelope(t *testing.T) {
	a := NewBinance(model.MarketFutures)

	frame := `{"stream":"ethusdt@bookTicker","data":{"s":"ETHUSDT","b":"3010.25","a":"3010.30","E":1710000000001,"T":1710000000002}}`
	res := a.Decode([]byte(frame))
	if res.Kind != Ticks {
		t.Fatalf("Decode() kind = %v, want Ticks (err=%v)", res.Kind, res.Err)
	}

	got := res.Ticks[0]
	if got.Market != model.MarketFutures {
		t.Errorf("Market = %q, want FUTURES", got.Market)
	}
	// Trade time wins over event time when both are present.
	if got.EventTimeMs != 1710000000002 {
		t.Errorf("EventTimeMs = %d, want 1710000000002", got.EventTimeMs)
	}
}

func TestBinance_Decode_SubscribeAckIgnored(t *testing.T) {
	a := NewBinance(model.MarketSpot)
	res := a.Decode([]byte(`{"result":null,"id":1}`))
	if res.Kind != Ignored {
		t.Errorf("Decode(ack) kind = %v, want Ignored", res.Kind)
	}
}

func TestBinance_Decode_Malformed(t *testing.T) {
	a := NewBinance(model.MarketSpot)

	frames := []string{
		`not json`,
		`{}`,
		`{"s":"BTCUSDT","b":"","a":"1.0","E":1}`,
		`{"s":"BTCUSDT","b":"1.0","a":"","E":1}`,
		`{"s":"BTCUSDT","b":"abc","a":"1.0","E":1}`,
		`{"s":"BTCUSDT","b":"-5","a":"1.0","E":1}`,
		`{"s":"BTCUSDT","b":"0","a":"1.0","E":1}`,
	}
	for _, f := range frames {
		res := a.Decode([]byte(f))
		if res.Kind != Malformed {
			t.Errorf("Decode(%q) kind = %v, want Malformed", f, res.Kind)
		}
		if len(res.Ticks) != 0 {
			t.Errorf("Decode(%q) produced ticks from a malformed frame", f)
		}
	}
}

func TestBinance_Decode_LocalTimeFallback(t *testing.T) {
	a := NewBinance(model.MarketSpot)

	restore := NowMs
	NowMs = func() int64 { return 4242 }
	defer func() { NowMs = restore }()

	res := a.Decode([]byte(`{"s":"BTCUSDT","b":"1.5","a":"1.6"}`))
	if res.Kind != Ticks {
		t.Fatalf("Decode() kind = %v, want Ticks", res.Kind)
	}
	if res.Ticks[0].EventTimeMs != 4242 {
		t.Errorf("EventTimeMs = %d, want local fallback 4242", res.Ticks[0].EventTimeMs)
	}
}
