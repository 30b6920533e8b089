package exchange

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/dkotov/pricefeed/internal/model"
)

const (
	okxPublicURL = "wss://ws.okx.com:8443/ws/v5/public"

	// OKX rate-limits subscribe requests to ~3/sec, so batches of 200
	// instruments are sent 500ms apart on one connection.
	okxBatchSize      = 200
	okxSubscribeDelay = 500 * time.Millisecond
)

// OKX serves spot and swap instruments from the same public endpoint; the
// instrument id (BTC-USDT vs BTC-USDT-SWAP) selects the market.
type OKX struct {
	market model.Market
}

// NewOKX returns the OKX tickers-channel adapter for the given market.
func NewOKX(market model.Market) *OKX {
	return &OKX{market: market}
}

func (o *OKX) Name() string              { return "OKX" }
func (o *OKX) Market() model.Market      { return o.market }
func (o *OKX) URL(batch []string) string { return okxPublicURL }

func (o *OKX) Limits() Limits {
	return Limits{PerMessage: okxBatchSize, SubscribeDelay: okxSubscribeDelay, Replicas: 1}
}

type okxSubArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type okxSubscribe struct {
	Op   string      `json:"op"`
	Args []okxSubArg `json:"args"`
}

func (o *OKX) SubscribeMessages(batch []string) [][]byte {
	var msgs [][]byte
	for _, chunk := range chunked(batch, okxBatchSize) {
		args := make([]okxSubArg, len(chunk))
		for i, inst := range chunk {
			args[i] = okxSubArg{Channel: "tickers", InstID: inst}
		}
		data, _ := json.Marshal(okxSubscribe{Op: "subscribe", Args: args})
		msgs = append(msgs, data)
	}
	return msgs
}

func (o *OKX) KeepAlive() ([]byte, time.Duration) { return nil, 0 }

type okxMessage struct {
	Event string          `json:"event"`
	Arg   okxSubArg       `json:"arg"`
	Data  []okxTickerItem `json:"data"`
}

type okxTickerItem struct {
	InstID string `json:"instId"`
	BidPx  string `json:"bidPx"`
	AskPx  string `json:"askPx"`
	TS     string `json:"ts"`
}

var errOKXNoTicks = errors.New("tickers frame without usable items")

func (o *OKX) Decode(frame []byte) Result {
	// OKX answers our transport pings, but also echoes literal "pong".
	if string(frame) == "pong" {
		return ignored()
	}

	var msg okxMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return malformed(err)
	}

	// Subscribe acks and channel errors arrive as event messages.
	if msg.Event != "" {
		return ignored()
	}
	if msg.Arg.Channel != "tickers" {
		return ignored()
	}

	out := make([]model.Tick, 0, len(msg.Data))
	for _, item := range msg.Data {
		if item.InstID == "" || item.BidPx == "" || item.AskPx == "" {
			continue
		}
		bid, err := strconv.ParseFloat(item.BidPx, 64)
		if err != nil || bid <= 0 {
			continue
		}
		ask, err := strconv.ParseFloat(item.AskPx, 64)
		if err != nil || ask <= 0 {
			continue
		}
		ts, err := strconv.ParseInt(item.TS, 10, 64)
		if err != nil || ts == 0 {
			ts = NowMs()
		}
		out = append(out, model.Tick{
			Exchange:    o.Name(),
			Market:      o.market,
			Symbol:      model.NormalizeSymbol(item.InstID),
			Bid:         bid,
			Ask:         ask,
			EventTimeMs: ts,
		})
	}
	if len(out) == 0 {
		return malformed(errOKXNoTicks)
	}
	return ticks(out)
}

// chunked splits items into contiguous chunks of at most size. Small local
// helper so adapters do not depend on the symbols package.
func chunked(items []string, size int) [][]string {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]string{items}
	}
	var out [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
