package exchange

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dkotov/pricefeed/internal/model"
)

const (
	bybitSpotURL    = "wss://stream.bybit.com/v5/public/spot"
	bybitLinearURL  = "wss://stream.bybit.com/v5/public/linear"
	bybitL1Topic    = "orderbook.1."
	bybitPingEvery  = 20 * time.Second
	bybitSpotArgs   = 10  // spot: at most 10 args per subscribe request
	bybitLinearArgs = 100 // linear tolerates larger requests
)

// Bybit streams L1 orderbook snapshots per symbol; best bid/ask come from
// the top of each side.
type Bybit struct {
	market model.Market
	url    string
	perMsg int
}

// NewBybit returns the Bybit V5 orderbook.1 adapter for the given market.
func NewBybit(market model.Market) *Bybit {
	if market == model.MarketFutures {
		return &Bybit{market: market, url: bybitLinearURL, perMsg: bybitLinearArgs}
	}
	return &Bybit{market: market, url: bybitSpotURL, perMsg: bybitSpotArgs}
}

func (b *Bybit) Name() string              { return "BYBIT" }
func (b *Bybit) Market() model.Market      { return b.market }
func (b *Bybit) URL(batch []string) string { return b.url }

func (b *Bybit) Limits() Limits {
	return Limits{PerMessage: b.perMsg, SubscribeDelay: 250 * time.Millisecond, Replicas: 1}
}

type bybitRequest struct {
	Op    string   `json:"op"`
	ReqID string   `json:"req_id,omitempty"`
	Args  []string `json:"args,omitempty"`
}

func (b *Bybit) SubscribeMessages(batch []string) [][]byte {
	topics := make([]string, len(batch))
	for i, s := range batch {
		topics[i] = bybitL1Topic + s
	}

	var msgs [][]byte
	for _, chunk := range chunked(topics, b.perMsg) {
		data, _ := json.Marshal(bybitRequest{Op: "subscribe", Args: chunk})
		msgs = append(msgs, data)
	}
	return msgs
}

func (b *Bybit) KeepAlive() ([]byte, time.Duration) {
	data, _ := json.Marshal(bybitRequest{
		Op:    "ping",
		ReqID: strings.ToLower(string(b.market)) + "_ping",
	})
	return data, bybitPingEvery
}

type bybitMessage struct {
	Topic string `json:"topic"`
	TS    int64  `json:"ts"`
	CTS   int64  `json:"cts"`
	Data  struct {
		Symbol string     `json:"s"`
		Bids   [][]string `json:"b"`
		Asks   [][]string `json:"a"`
	} `json:"data"`
}

var errBybitNoTop = errors.New("orderbook frame without both top levels")

func (b *Bybit) Decode(frame []byte) Result {
	var msg bybitMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return malformed(err)
	}

	// Subscribe acks and pong responses carry no topic.
	if msg.Topic == "" {
		return ignored()
	}
	if !strings.HasPrefix(msg.Topic, bybitL1Topic) {
		return ignored()
	}

	// A delta touching only one side cannot form a best-bid/ask pair.
	if msg.Data.Symbol == "" || len(msg.Data.Bids) == 0 || len(msg.Data.Asks) == 0 ||
		len(msg.Data.Bids[0]) == 0 || len(msg.Data.Asks[0]) == 0 {
		return ignored()
	}

	bid, err := strconv.ParseFloat(msg.Data.Bids[0][0], 64)
	if err != nil || bid <= 0 {
		return malformed(errBybitNoTop)
	}
	ask, err := strconv.ParseFloat(msg.Data.Asks[0][0], 64)
	if err != nil || ask <= 0 {
		return malformed(errBybitNoTop)
	}

	ts := msg.CTS
	if ts == 0 {
		ts = msg.TS
	}
	if ts == 0 {
		ts = NowMs()
	}

	return ticks([]model.Tick{{
		Exchange:    b.Name(),
		Market:      b.market,
		Symbol:      model.NormalizeSymbol(msg.Data.Symbol),
		Bid:         bid,
		Ask:         ask,
		EventTimeMs: ts,
	}})
}
