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
	binanceSpotURL    = "wss://stream.binance.com:9443/stream?streams="
	binanceFuturesURL = "wss://fstream.binance.com/stream?streams="

	// Binance caps combined streams well above this, but past ~200 the
	// subscribe URL gets unwieldy and a disconnect costs too many symbols.
	binanceSymbolsPerConn = 200
)

// Binance subscribes via the combined-stream URL; the connection itself is
// the subscription, so SubscribeMessages is empty and a reconnect
// re-subscribes for free.
type Binance struct {
	market model.Market
	base   string
}

// NewBinance returns the Binance bookTicker adapter for the given market.
func NewBinance(market model.Market) *Binance {
	base := binanceSpotURL
	if market == model.MarketFutures {
		base = binanceFuturesURL
	}
	return &Binance{market: market, base: base}
}

func (b *Binance) Name() string         { return "BINANCE" }
func (b *Binance) Market() model.Market { return b.market }

func (b *Binance) URL(batch []string) string {
	streams := make([]string, len(batch))
	for i, s := range batch {
		streams[i] = strings.ToLower(s) + "@bookTicker"
	}
	return b.base + strings.Join(streams, "/")
}

func (b *Binance) Limits() Limits {
	return Limits{PerConnection: binanceSymbolsPerConn, Replicas: 1}
}

func (b *Binance) SubscribeMessages(batch []string) [][]byte { return nil }

func (b *Binance) KeepAlive() ([]byte, time.Duration) { return nil, 0 }

// binanceBookTicker is the bookTicker payload, either bare or wrapped in
// the combined-stream envelope.
type binanceBookTicker struct {
	Symbol    string `json:"s"`
	Bid       string `json:"b"`
	Ask       string `json:"a"`
	EventTime int64  `json:"E"`
	TradeTime int64  `json:"T"`
}

type binanceEnvelope struct {
	Stream string            `json:"stream"`
	Data   binanceBookTicker `json:"data"`
	// Subscribe ack shape: {"result":null,"id":1}
	ID json.RawMessage `json:"id"`
}

var errBinanceEmptyTick = errors.New("bookTicker frame without symbol or prices")

func (b *Binance) Decode(frame []byte) Result {
	var env binanceEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return malformed(err)
	}

	data := env.Data
	if data.Symbol == "" {
		// Not the envelope form: either a bare bookTicker or an ack.
		if err := json.Unmarshal(frame, &data); err != nil {
			return malformed(err)
		}
	}
	if data.Symbol == "" {
		if len(env.ID) > 0 {
			return ignored()
		}
		return malformed(errBinanceEmptyTick)
	}
	if data.Bid == "" || data.Ask == "" {
		return malformed(errBinanceEmptyTick)
	}

	bid, err := strconv.ParseFloat(data.Bid, 64)
	if err != nil || bid <= 0 {
		return malformed(errBinanceEmptyTick)
	}
	ask, err := strconv.ParseFloat(data.Ask, 64)
	if err != nil || ask <= 0 {
		return malformed(errBinanceEmptyTick)
	}

	ts := data.TradeTime
	if ts == 0 {
		ts = data.EventTime
	}
	if ts == 0 {
		ts = NowMs()
	}

	return ticks([]model.Tick{{
		Exchange:    b.Name(),
		Market:      b.market,
		Symbol:      model.NormalizeSymbol(data.Symbol),
		Bid:         bid,
		Ask:         ask,
		EventTimeMs: ts,
	}})
}
