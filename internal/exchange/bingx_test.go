package exchange

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/dkotov/pricefeed/internal/model"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func zlibBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func deflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecompress_AllVariants(t *testing.T) {
	payload := []byte(`{"dataType":"BTC-USDT@ticker","data":{"b":"1.0","a":"1.1","E":1}}`)

	variants := map[string][]byte{
		"gzip":        gzipBytes(t, payload),
		"zlib":        zlibBytes(t, payload),
		"raw-deflate": deflateBytes(t, payload),
	}

	for name, compressed := range variants {
		got, err := decompress(compressed)
		if err != nil {
			t.Errorf("decompress(%s) error = %v", name, err)
			continue
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("decompress(%s) = %q, want %q", name, got, payload)
		}
	}
}

func TestDecompress_Garbage(t *testing.T) {
	if _, err := decompress([]byte{0x00, 0x01, 0x02, 0x03}); err == nil {
		t.Error("decompress(garbage) succeeded, want error")
	}
}

func TestBingX_SubscribeMessages_OnePerSymbol(t *testing.T) {
	a := NewBingX(model.MarketSpot)

	msgs := a.SubscribeMessages([]string{"BTC-USDT", "ETH-USDT"})
	if len(msgs) != 2 {
		t.Fatalf("SubscribeMessages() = %d messages, want one per symbol", len(msgs))
	}

	for i, raw := range msgs {
		var sub bingxSubscribe
		if err := json.Unmarshal(raw, &sub); err != nil {
			t.Fatalf("message %d: %v", i, err)
		}
		if sub.ReqType != "sub" {
			t.Errorf("message %d reqType = %q, want sub", i, sub.ReqType)
		}
		if _, err := uuid.Parse(sub.ID); err != nil {
			t.Errorf("message %d id %q is not a uuid: %v", i, sub.ID, err)
		}
	}

	var first bingxSubscribe
	json.Unmarshal(msgs[0], &first)
	if first.DataType != "BTC-USDT@ticker" {
		t.Errorf("dataType = %q, want BTC-USDT@ticker", first.DataType)
	}
}

func TestBingX_Decode_ApplicationPing(t *testing.T) {
	a := NewBingX(model.MarketSpot)

	for name, frame := range map[string][]byte{
		"plain":      []byte("Ping"),
		"compressed": gzipBytes(t, []byte("Ping")),
	} {
		res := a.Decode(frame)
		if res.Kind != Ping {
			t.Errorf("Decode(%s Ping) kind = %v, want Ping", name, res.Kind)
			continue
		}
		if string(res.Pong) != "Pong" {
			t.Errorf("Decode(%s Ping) pong = %q, want Pong", name, res.Pong)
		}
	}
}

func TestBingX_Decode_CompressedTicker(t *testing.T) {
	a := NewBingX(model.MarketFutures)

	payload := []byte(`{"dataType":"BTC-USDT@ticker","data":{"b":"61234.5","a":"61234.6","E":1710000000000}}`)
	res := a.Decode(gzipBytes(t, payload))
	if res.Kind != Ticks {
		t.Fatalf("Decode() kind = %v, want Ticks (err=%v)", res.Kind, res.Err)
	}

	got := res.Ticks[0]
	want := model.Tick{
		Exchange:    "BINGX",
		Market:      model.MarketFutures,
		Symbol:      "BTCUSDT",
		Bid:         61234.5,
		Ask:         61234.6,
		EventTimeMs: 1710000000000,
	}
	if got != want {
		t.Errorf("Decode() = %+v, want %+v", got, want)
	}
}

func TestBingX_Decode_AlternateKeys(t *testing.T) {
	a := NewBingX(model.MarketSpot)

	frame := `{"topic":"ETH-USDT@ticker","data":{"bestBidPrice":"3010.25","bestAskPrice":"3010.30","time":99}}`
	res := a.Decode([]byte(frame))
	if res.Kind != Ticks {
		t.Fatalf("Decode() kind = %v, want Ticks (err=%v)", res.Kind, res.Err)
	}
	got := res.Ticks[0]
	if got.Symbol != "ETHUSDT" || got.Bid != 3010.25 || got.Ask != 3010.3 || got.EventTimeMs != 99 {
		t.Errorf("Decode() = %+v", got)
	}
}

func TestBingX_Decode_NoDataEnvelope(t *testing.T) {
	a := NewBingX(model.MarketSpot)

	// Ticker fields at the top level, no data key.
	frame := `{"dataType":"BTC-USDT@ticker","b":"61234.5","a":"61234.6","E":1710000000000}`
	res := a.Decode([]byte(frame))
	if res.Kind != Ticks {
		t.Fatalf("Decode() kind = %v, want Ticks (err=%v)", res.Kind, res.Err)
	}
	got := res.Ticks[0]
	if got.Symbol != "BTCUSDT" || got.Bid != 61234.5 || got.Ask != 61234.6 || got.EventTimeMs != 1710000000000 {
		t.Errorf("Decode() = %+v", got)
	}
}

func TestBingX_Decode_AckIgnored(t *testing.T) {
	a := NewBingX(model.MarketSpot)

	res := a.Decode([]byte(`{"id":"a1b2","code":0,"msg":"SUCCESS"}`))
	if res.Kind != Ignored {
		t.Errorf("Decode(ack) kind = %v, want Ignored", res.Kind)
	}
}

func TestBingX_Decode_Malformed(t *testing.T) {
	a := NewBingX(model.MarketSpot)

	frames := [][]byte{
		{0xde, 0xad, 0xbe, 0xef},
		[]byte(`{"dataType":"BTC-USDT@ticker","data":{"E":1}}`),
		[]byte(`{"dataType":"","data":{"b":"1","a":"2"}}`),
		gzipBytes(t, []byte(`{"broken`)),
	}
	for _, f := range frames {
		res := a.Decode(f)
		if res.Kind != Malformed {
			t.Errorf("Decode(%q) kind = %v, want Malformed", f, res.Kind)
		}
	}
}
